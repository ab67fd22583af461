package miden

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Client is the wallet SDK surface the coordinator drives. Implementations
// are stateful and not safe for concurrent use: every method must be called
// from the single goroutine that owns the client (see engine/runtime), and
// the client must not be moved between goroutines.
type Client interface {
	// SyncState refreshes the client's local view of the chain. It is
	// idempotent and called before every handled request.
	SyncState(ctx context.Context) error
	// NewMultisigAccount creates and starts tracking a multisig account
	// with the given threshold and ordered public key commitments.
	NewMultisigAccount(ctx context.Context, threshold uint32, pubKeyCommits []Word) (*Account, error)
	// ImportAccount starts tracking an existing on-chain account.
	ImportAccount(ctx context.Context, id AccountID) error
	// Account returns the tracked account with its storage.
	Account(ctx context.Context, id AccountID) (*Account, error)
	// ImportNote fetches an input note by id into the local store.
	ImportNote(ctx context.Context, id NoteID) error
	// ConsumableNotes lists notes available to spend, optionally filtered
	// by the account that would consume them.
	ConsumableNotes(ctx context.Context, id *AccountID) ([]ConsumableNote, error)
	// ExecuteTransaction executes the request against the account. It
	// returns *UnauthorizedError carrying the transaction summary when the
	// request lacks threshold approvals in its advice map.
	ExecuteTransaction(ctx context.Context, id AccountID, req *TransactionRequest) (TransactionResult, error)
	// SubmitTransaction proves a previously executed transaction, submits
	// it to the chain and applies it to the local state.
	SubmitTransaction(ctx context.Context, res TransactionResult) error
	// MergeCommitments combines two words into the witness key under which
	// a signature is presented to the proving circuit.
	MergeCommitments(a, b Word) Word
	// Close releases the client's resources.
	Close() error
}

// ClientConfig carries the parameters needed to set up a wallet client.
type ClientConfig struct {
	// NodeURL selects the backend, see Dial.
	NodeURL string
	// StorePath is the path to the wallet's own on-disk store.
	StorePath string
	// KeystorePath is the path to the wallet's keystore directory.
	KeystorePath string
	// Timeout bounds individual backend requests.
	Timeout time.Duration
}

// DialFunc constructs a wallet client. The runtime invokes it on the worker
// goroutine that will own the client.
type DialFunc func(ctx context.Context, cfg ClientConfig) (Client, error)

// Dial constructs a wallet client selected by the NodeURL scheme. The
// embedded local node backend is available under the local scheme
// (e.g. "local://devnet").
func Dial(ctx context.Context, cfg ClientConfig) (Client, error) {
	u, err := url.Parse(cfg.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse node url %q: %w", cfg.NodeURL, err)
	}
	switch u.Scheme {
	case "local":
		return OpenLocalClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported node url scheme %q", u.Scheme)
	}
}
