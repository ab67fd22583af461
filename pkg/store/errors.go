package store

import "errors"

// Store errors surfaced to callers. Driver, pool and row decoding failures
// are wrapped with context instead of getting sentinels of their own.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on duplicate entity creation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrDuplicateSignature is returned when an approver signs the same
	// transaction twice.
	ErrDuplicateSignature = errors.New("duplicate signature")
	// ErrTxNotPending is returned on writes against a transaction that
	// already reached a terminal status.
	ErrTxNotPending = errors.New("tx is not pending")
	// ErrInvalidValue is returned when a value is out of its permitted
	// range.
	ErrInvalidValue = errors.New("invalid value")
)
