package multisig

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// TxID identifies a proposed multisig transaction.
type TxID struct {
	uuid.UUID
}

// NewTxID returns a fresh random TxID.
func NewTxID() TxID {
	return TxID{uuid.New()}
}

// ParseTxID converts a canonical UUID string into a TxID.
func ParseTxID(s string) (TxID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TxID{}, fmt.Errorf("invalid tx id: %w", err)
	}
	return TxID{id}, nil
}

// Status is the lifecycle state of a proposed transaction. Transactions
// start pending and move to exactly one of the terminal states.
type Status uint8

const (
	// StatusPending marks a transaction still collecting signatures.
	StatusPending Status = iota
	// StatusSuccess marks a transaction submitted to the chain.
	StatusSuccess
	// StatusFailure marks a transaction whose final processing failed.
	StatusFailure
)

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "success":
		return StatusSuccess, nil
	case "failure":
		return StatusFailure, nil
	default:
		return 0, fmt.Errorf("unknown tx status %q", s)
	}
}

// String implements the stringer interface.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// MarshalJSON implements the json.Marshaler interface.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusPending, StatusSuccess, StatusFailure:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("unknown tx status %d", uint8(s))
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Tx is a proposed multisig transaction with its signature collection
// state. Request and Summary carry the SDK's serialized transaction request
// and the summary approvers sign, SummaryCommit is the commitment being
// signed.
type Tx struct {
	ID             TxID
	AccountAddress miden.AccountID
	NetworkID      miden.NetworkID
	Status         Status
	Request        []byte
	Summary        miden.TransactionSummary
	SummaryCommit  miden.Word
	SignatureCount uint32
	Timestamps
}

// InputNoteIDs lists the ids of the input notes the transaction consumes,
// parsed out of the stored request.
func (t *Tx) InputNoteIDs() ([]miden.NoteID, error) {
	req, err := miden.ParseTransactionRequest(t.Request)
	if err != nil {
		return nil, err
	}
	return req.InputNoteIDs(), nil
}

// TxStats aggregates an account's transaction history.
type TxStats struct {
	Total        uint64
	LastMonth    uint64
	TotalSuccess uint64
}
