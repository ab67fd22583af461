// Package engine coordinates multisig account and transaction flows between
// the persistence store and the wallet runtime. It owns no mutable shared
// state of its own: concurrent callers are arbitrated by the database (for
// signature counting) and by the runtime's FIFO queue (for wallet calls),
// so every operation is safe to invoke from any goroutine.
package engine

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/engine/runtime"
	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// Store abstracts away the persistence layer as used by the engine.
type Store interface {
	Account(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (*multisig.Account, error)
	Accounts(ctx context.Context) ([]multisig.Account, error)
	AddSignature(ctx context.Context, txID multisig.TxID, networkID miden.NetworkID, approver miden.AccountID, sig miden.Signature) (permitted bool, met bool, err error)
	ApproversByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) ([]multisig.Approver, error)
	CreateAccount(ctx context.Context, account *multisig.Account) error
	CreateTx(ctx context.Context, id miden.AccountID, networkID miden.NetworkID, txRequest []byte, txSummary miden.TransactionSummary) (multisig.TxID, error)
	ListTxsByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID, status *multisig.Status) ([]multisig.Tx, error)
	LoadOrderedSignaturesAndTx(ctx context.Context, txID multisig.TxID) ([]miden.Signature, *multisig.Tx, error)
	TxStats(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (multisig.TxStats, error)
	UpdateStatus(ctx context.Context, txID multisig.TxID, status multisig.Status) error
}

// Config holds the engine dependencies.
type Config struct {
	// NetworkID is the bech32 human-readable prefix all addresses handled
	// by this engine are rendered and persisted with.
	NetworkID miden.NetworkID
	// Store is the persistence layer.
	Store Store
	// Runtime configures the wallet runtime the engine starts and owns.
	// Its tracked account set is extended with every stored account on
	// Start.
	Runtime runtime.Config
	// Log is the logger, zap.NewNop when nil.
	Log *zap.Logger
}

// Engine exposes the coordinator operations. Operations require a started
// engine and fail with ErrNotStarted otherwise; Shutdown must not be called
// concurrently with operations.
type Engine struct {
	cfg   Config
	log   *zap.Logger
	store Store

	startMtx sync.Mutex
	rt       *runtime.Runtime
	started  *atomic.Bool
}

// New returns a stopped engine over the given dependencies.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		log:     log,
		store:   cfg.Store,
		started: atomic.NewBool(false),
	}
}

// Start brings up the wallet runtime with every stored account in its
// tracked set and makes the engine operational.
func (e *Engine) Start(ctx context.Context) error {
	e.startMtx.Lock()
	defer e.startMtx.Unlock()
	if e.started.Load() {
		return ErrAlreadyStarted
	}

	accounts, err := e.store.Accounts(ctx)
	if err != nil {
		return wrapStore(err)
	}
	rcfg := e.cfg.Runtime
	if rcfg.Log == nil {
		rcfg.Log = e.log
	}
	tracked := make([]miden.AccountID, 0, len(rcfg.TrackAccounts)+len(accounts))
	tracked = append(tracked, rcfg.TrackAccounts...)
	for _, account := range accounts {
		tracked = append(tracked, account.Address)
	}
	rcfg.TrackAccounts = tracked

	rt := runtime.New(rcfg)
	if err := rt.Start(); err != nil {
		return wrapKind(KindRuntime, err)
	}
	e.rt = rt
	e.started.Store(true)
	e.log.Info("multisig engine started", zap.Int("tracked accounts", len(accounts)))
	return nil
}

// Shutdown stops the wallet runtime. The engine can be started again
// afterwards.
func (e *Engine) Shutdown() {
	e.startMtx.Lock()
	defer e.startMtx.Unlock()
	if !e.started.Load() {
		return
	}
	e.started.Store(false)
	e.rt.Stop()
	e.log.Info("multisig engine stopped")
}

// runtime returns the started runtime or ErrNotStarted. The started flag is
// written after the runtime pointer, so observing it set guarantees the
// pointer is visible.
func (e *Engine) runtime() (*runtime.Runtime, error) {
	if !e.started.Load() {
		return nil, wrapKind(KindOther, ErrNotStarted)
	}
	return e.rt, nil
}

// await blocks until the runtime delivers a reply or the context is done.
// An abandoned reply is discarded by the runtime, never redelivered.
func await[T any](ctx context.Context, ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, wrapKind(KindRuntime, ctx.Err())
	}
}
