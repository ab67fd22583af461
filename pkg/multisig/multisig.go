/*
Package multisig holds the coordinator's domain model: multisig accounts
with their ordered approver sets, proposed transactions and their signature
collection state. Values here are storage- and wire-agnostic, the store and
the HTTP layer translate from and to them.
*/
package multisig

import "time"

// Timestamps carries entity creation/update times. The store keeps creation
// times only, so loaded entities mirror CreatedAt into UpdatedAt.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTimestamps returns Timestamps with both fields set to the given time.
func NewTimestamps(createdAt time.Time) Timestamps {
	return Timestamps{CreatedAt: createdAt, UpdatedAt: createdAt}
}
