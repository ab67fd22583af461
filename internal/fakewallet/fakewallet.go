package fakewallet

import (
	"context"
	"fmt"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// Wallet implements the miden.Client interface without a real backend.
// Method behaviour is overridden per test through the corresponding function
// field; a nil field falls back to a permissive default. Every call appends
// its method name to Calls. Like any miden.Client it expects to be driven
// from a single goroutine.
type Wallet struct {
	SyncStateF          func(ctx context.Context) error
	NewMultisigAccountF func(ctx context.Context, threshold uint32, pubKeyCommits []miden.Word) (*miden.Account, error)
	ImportAccountF      func(ctx context.Context, id miden.AccountID) error
	AccountF            func(ctx context.Context, id miden.AccountID) (*miden.Account, error)
	ImportNoteF         func(ctx context.Context, id miden.NoteID) error
	ConsumableNotesF    func(ctx context.Context, id *miden.AccountID) ([]miden.ConsumableNote, error)
	ExecuteTransactionF func(ctx context.Context, id miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error)
	SubmitTransactionF  func(ctx context.Context, res miden.TransactionResult) error
	CloseF              func() error

	Calls []string
}

// New returns an empty fake wallet.
func New() *Wallet {
	return &Wallet{}
}

// SyncState implements the miden.Client interface.
func (w *Wallet) SyncState(ctx context.Context) error {
	w.Calls = append(w.Calls, "SyncState")
	if w.SyncStateF != nil {
		return w.SyncStateF(ctx)
	}
	return nil
}

// NewMultisigAccount implements the miden.Client interface.
func (w *Wallet) NewMultisigAccount(ctx context.Context, threshold uint32, pubKeyCommits []miden.Word) (*miden.Account, error) {
	w.Calls = append(w.Calls, "NewMultisigAccount")
	if w.NewMultisigAccountF != nil {
		return w.NewMultisigAccountF(ctx, threshold, pubKeyCommits)
	}
	return NewAccount(miden.AccountID{}, threshold, pubKeyCommits), nil
}

// ImportAccount implements the miden.Client interface.
func (w *Wallet) ImportAccount(ctx context.Context, id miden.AccountID) error {
	w.Calls = append(w.Calls, fmt.Sprintf("ImportAccount(%s)", id))
	if w.ImportAccountF != nil {
		return w.ImportAccountF(ctx, id)
	}
	return nil
}

// Account implements the miden.Client interface.
func (w *Wallet) Account(ctx context.Context, id miden.AccountID) (*miden.Account, error) {
	w.Calls = append(w.Calls, "Account")
	if w.AccountF != nil {
		return w.AccountF(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", miden.ErrAccountNotFound, id)
}

// ImportNote implements the miden.Client interface.
func (w *Wallet) ImportNote(ctx context.Context, id miden.NoteID) error {
	w.Calls = append(w.Calls, fmt.Sprintf("ImportNote(%s)", id))
	if w.ImportNoteF != nil {
		return w.ImportNoteF(ctx, id)
	}
	return nil
}

// ConsumableNotes implements the miden.Client interface.
func (w *Wallet) ConsumableNotes(ctx context.Context, id *miden.AccountID) ([]miden.ConsumableNote, error) {
	w.Calls = append(w.Calls, "ConsumableNotes")
	if w.ConsumableNotesF != nil {
		return w.ConsumableNotesF(ctx, id)
	}
	return nil, nil
}

// ExecuteTransaction implements the miden.Client interface.
func (w *Wallet) ExecuteTransaction(ctx context.Context, id miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error) {
	w.Calls = append(w.Calls, "ExecuteTransaction")
	if w.ExecuteTransactionF != nil {
		return w.ExecuteTransactionF(ctx, id, req)
	}
	return nil, &miden.UnauthorizedError{Summary: miden.NewTransactionSummary(miden.Word{}, nil)}
}

// SubmitTransaction implements the miden.Client interface.
func (w *Wallet) SubmitTransaction(ctx context.Context, res miden.TransactionResult) error {
	w.Calls = append(w.Calls, "SubmitTransaction")
	if w.SubmitTransactionF != nil {
		return w.SubmitTransactionF(ctx, res)
	}
	return nil
}

// MergeCommitments implements the miden.Client interface with a simple
// deterministic word combinator.
func (w *Wallet) MergeCommitments(a, b miden.Word) miden.Word {
	return miden.NewWord(a[0]^b[1], a[1]^b[2], a[2]^b[3], a[3]^b[0])
}

// Close implements the miden.Client interface.
func (w *Wallet) Close() error {
	w.Calls = append(w.Calls, "Close")
	if w.CloseF != nil {
		return w.CloseF()
	}
	return nil
}

// NewAccount builds an account with the multisig storage layout the
// coordinator expects: approver count in the config slot, indexed public
// key commitments in the pub keys map slot.
func NewAccount(id miden.AccountID, threshold uint32, pubKeyCommits []miden.Word) *miden.Account {
	storage := miden.NewAccountStorage()
	storage.SetSlot(miden.ConfigStorageSlot, miden.Word{miden.Felt(threshold), miden.Felt(len(pubKeyCommits)), 0, 0})
	for i, commit := range pubKeyCommits {
		storage.SetMapItem(miden.PubKeysStorageSlot, miden.IndexWord(uint32(i)), commit)
	}
	return &miden.Account{ID: id, Storage: storage}
}
