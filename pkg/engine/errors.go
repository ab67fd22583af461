package engine

import (
	"errors"

	"github.com/0xMiden/MultiSig/pkg/store"
)

// Kind classifies engine errors for the transport layer: validation
// failures map to client errors, missing entities to not-found responses
// and everything else to internal ones.
type Kind int

const (
	// KindOther covers failures with no better classification.
	KindOther Kind = iota
	// KindValidation marks errors caused by a malformed or impermissible
	// request.
	KindValidation
	// KindNotFound marks lookups of entities that do not exist.
	KindNotFound
	// KindStore marks database failures.
	KindStore
	// KindRuntime marks wallet runtime failures outside the two
	// transaction paths.
	KindRuntime
	// KindPropose marks transaction dry-run failures.
	KindPropose
	// KindProcess marks final execution or submission failures.
	KindProcess
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindStore:
		return "store"
	case KindRuntime:
		return "runtime"
	case KindPropose:
		return "propose multisig tx"
	case KindProcess:
		return "process multisig tx"
	default:
		return "other"
	}
}

// Error is the engine's boundary error: any failure leaving the engine is
// wrapped into one, carrying the Kind the transport layer maps to a status
// code. The underlying error stays reachable through errors.Is/As.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap supports the errors.Is/As chain.
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNotStarted is returned by operations invoked before Start.
	ErrNotStarted = errors.New("engine is not started")
	// ErrAlreadyStarted is returned by Start on a started engine.
	ErrAlreadyStarted = errors.New("engine is already started")
	// ErrApproverNotPermitted is returned by AddSignature when the signer
	// is not an approver of the transaction's account.
	ErrApproverNotPermitted = errors.New("approver not permitted")

	// ErrEmptyApprovers is returned when an account creation request
	// carries no approver addresses.
	ErrEmptyApprovers = errors.New("approvers must not be empty")
	// ErrEmptyPubKeyCommits is returned when an account creation request
	// carries no public key commitments.
	ErrEmptyPubKeyCommits = errors.New("pub key commitments must not be empty")
	// ErrLengthMismatch is returned when approver addresses and public key
	// commitments differ in number.
	ErrLengthMismatch = errors.New("approvers and pub key commitments must match in number")
	// ErrExcessThreshold is returned when the threshold exceeds the number
	// of approvers.
	ErrExcessThreshold = errors.New("threshold exceeds the number of approvers")
	// ErrZeroThreshold is returned when the threshold is zero.
	ErrZeroThreshold = errors.New("threshold must be positive")
)

func wrapKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// wrapStore classifies a store error: missing entities keep their own kind,
// state-machine and uniqueness rejections count as client errors, the rest
// is internal.
func wrapStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Err: err}
	case errors.Is(err, store.ErrTxNotPending),
		errors.Is(err, store.ErrDuplicateSignature),
		errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrInvalidValue):
		return &Error{Kind: KindValidation, Err: err}
	default:
		return &Error{Kind: KindStore, Err: err}
	}
}
