// Package fakestore provides an in-memory persistence store for testing
// the engine and its HTTP facade without a database.
package fakestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
	"github.com/0xMiden/MultiSig/pkg/store"
)

// Store keeps accounts, transactions and signatures in maps guarded by one
// mutex and mimics the real store's contract, including its sentinel
// errors and the exactly-one threshold-met signal under concurrent
// signing. Method behaviour is overridden per test through the
// corresponding function field.
type Store struct {
	CreateAccountF              func(ctx context.Context, account *multisig.Account) error
	AccountF                    func(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (*multisig.Account, error)
	AccountsF                   func(ctx context.Context) ([]multisig.Account, error)
	ApproversByAccountF         func(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) ([]multisig.Approver, error)
	CreateTxF                   func(ctx context.Context, id miden.AccountID, networkID miden.NetworkID, txRequest []byte, txSummary miden.TransactionSummary) (multisig.TxID, error)
	AddSignatureF               func(ctx context.Context, txID multisig.TxID, networkID miden.NetworkID, approver miden.AccountID, sig miden.Signature) (bool, bool, error)
	UpdateStatusF               func(ctx context.Context, txID multisig.TxID, status multisig.Status) error
	LoadOrderedSignaturesAndTxF func(ctx context.Context, txID multisig.TxID) ([]miden.Signature, *multisig.Tx, error)
	TxStatsF                    func(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (multisig.TxStats, error)
	ListTxsByAccountF           func(ctx context.Context, id miden.AccountID, networkID miden.NetworkID, status *multisig.Status) ([]multisig.Tx, error)

	// Now stamps created_at values, time.Now when nil.
	Now func() time.Time

	mtx          sync.Mutex
	accounts     map[miden.AccountID]*multisig.Account
	accountOrder []miden.AccountID
	txs          map[multisig.TxID]*txRecord
	nextTxSeq    uint64
}

type txRecord struct {
	tx         multisig.Tx
	signatures map[miden.AccountID]miden.Signature
}

// New returns an empty fake store.
func New() *Store {
	return &Store{
		accounts: make(map[miden.AccountID]*multisig.Account),
		txs:      make(map[multisig.TxID]*txRecord),
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateAccount implements the engine.Store interface.
func (s *Store) CreateAccount(ctx context.Context, account *multisig.Account) error {
	if s.CreateAccountF != nil {
		return s.CreateAccountF(ctx, account)
	}
	if account.Threshold == 0 || uint64(account.Threshold) > uint64(len(account.Approvers)) {
		return fmt.Errorf("%w: threshold %d for %d approvers",
			store.ErrInvalidValue, account.Threshold, len(account.Approvers))
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.accounts[account.Address]; ok {
		return fmt.Errorf("%w: account %s", store.ErrAlreadyExists, account.Bech32())
	}
	account.Timestamps = multisig.NewTimestamps(s.now())
	for i := range account.Approvers {
		account.Approvers[i].Timestamps = account.Timestamps
	}
	stored := *account
	stored.Approvers = append([]multisig.Approver(nil), account.Approvers...)
	s.accounts[account.Address] = &stored
	s.accountOrder = append(s.accountOrder, account.Address)
	return nil
}

// Account implements the engine.Store interface. Like the real store it
// returns the account row alone, without the approver set.
func (s *Store) Account(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (*multisig.Account, error) {
	if s.AccountF != nil {
		return s.AccountF(ctx, id, networkID)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	stored, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", store.ErrNotFound, id.Bech32(networkID))
	}
	row := *stored
	row.Approvers = nil
	return &row, nil
}

// Accounts implements the engine.Store interface.
func (s *Store) Accounts(ctx context.Context) ([]multisig.Account, error) {
	if s.AccountsF != nil {
		return s.AccountsF(ctx)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	accounts := make([]multisig.Account, 0, len(s.accountOrder))
	for _, addr := range s.accountOrder {
		row := *s.accounts[addr]
		row.Approvers = nil
		accounts = append(accounts, row)
	}
	return accounts, nil
}

// ApproversByAccount implements the engine.Store interface.
func (s *Store) ApproversByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) ([]multisig.Approver, error) {
	if s.ApproversByAccountF != nil {
		return s.ApproversByAccountF(ctx, id, networkID)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	stored, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return append([]multisig.Approver(nil), stored.Approvers...), nil
}

// CreateTx implements the engine.Store interface.
func (s *Store) CreateTx(ctx context.Context, id miden.AccountID, networkID miden.NetworkID,
	txRequest []byte, txSummary miden.TransactionSummary) (multisig.TxID, error) {
	if s.CreateTxF != nil {
		return s.CreateTxF(ctx, id, networkID, txRequest, txSummary)
	}
	commit, err := txSummary.Commitment()
	if err != nil {
		return multisig.TxID{}, fmt.Errorf("%w: %s", store.ErrInvalidValue, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	txID := multisig.NewTxID()
	s.nextTxSeq++
	s.txs[txID] = &txRecord{
		tx: multisig.Tx{
			ID:             txID,
			AccountAddress: id,
			NetworkID:      networkID,
			Status:         multisig.StatusPending,
			Request:        append([]byte(nil), txRequest...),
			Summary:        append(miden.TransactionSummary(nil), txSummary...),
			SummaryCommit:  commit,
			// Transactions list newest first; a strictly increasing
			// nanosecond offset keeps same-instant creations ordered.
			Timestamps: multisig.NewTimestamps(s.now().Add(time.Duration(s.nextTxSeq))),
		},
		signatures: make(map[miden.AccountID]miden.Signature),
	}
	return txID, nil
}

// AddSignature implements the engine.Store interface with the same
// tri-state result as the real store: unknown transactions and outside
// signers are not permitted, terminal transactions and duplicate
// signatures fail, and exactly one insert observes the signature count
// reaching the account threshold.
func (s *Store) AddSignature(ctx context.Context, txID multisig.TxID, networkID miden.NetworkID,
	approver miden.AccountID, sig miden.Signature) (bool, bool, error) {
	if s.AddSignatureF != nil {
		return s.AddSignatureF(ctx, txID, networkID, approver, sig)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	rec, ok := s.txs[txID]
	if !ok {
		return false, false, nil
	}
	account, ok := s.accounts[rec.tx.AccountAddress]
	if !ok {
		return false, false, nil
	}
	joined := false
	for _, a := range account.Approvers {
		if a.Address == approver {
			joined = true
			break
		}
	}
	if !joined {
		return false, false, nil
	}
	if rec.tx.Status != multisig.StatusPending {
		return true, false, fmt.Errorf("%w: tx %s", store.ErrTxNotPending, txID)
	}
	if _, ok := rec.signatures[approver]; ok {
		return true, false, fmt.Errorf("%w: approver %s on tx %s",
			store.ErrDuplicateSignature, approver.Bech32(networkID), txID)
	}
	rec.signatures[approver] = append(miden.Signature(nil), sig...)
	return true, len(rec.signatures) == int(account.Threshold), nil
}

// UpdateStatus implements the engine.Store interface.
func (s *Store) UpdateStatus(ctx context.Context, txID multisig.TxID, status multisig.Status) error {
	if s.UpdateStatusF != nil {
		return s.UpdateStatusF(ctx, txID, status)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	rec, ok := s.txs[txID]
	if !ok {
		return fmt.Errorf("%w: tx %s", store.ErrNotFound, txID)
	}
	if rec.tx.Status != multisig.StatusPending {
		return fmt.Errorf("%w: tx %s", store.ErrTxNotPending, txID)
	}
	rec.tx.Status = status
	return nil
}

// LoadOrderedSignaturesAndTx implements the engine.Store interface.
func (s *Store) LoadOrderedSignaturesAndTx(ctx context.Context, txID multisig.TxID) ([]miden.Signature, *multisig.Tx, error) {
	if s.LoadOrderedSignaturesAndTxF != nil {
		return s.LoadOrderedSignaturesAndTxF(ctx, txID)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	rec, ok := s.txs[txID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: tx %s", store.ErrNotFound, txID)
	}
	account, ok := s.accounts[rec.tx.AccountAddress]
	if !ok {
		return nil, nil, fmt.Errorf("%w: account of tx %s", store.ErrNotFound, txID)
	}
	signatures := make([]miden.Signature, len(account.Approvers))
	for i, a := range account.Approvers {
		if sig, ok := rec.signatures[a.Address]; ok {
			signatures[i] = sig
		}
	}
	tx := rec.tx
	tx.SignatureCount = uint32(len(rec.signatures))
	return signatures, &tx, nil
}

// TxStats implements the engine.Store interface.
func (s *Store) TxStats(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (multisig.TxStats, error) {
	if s.TxStatsF != nil {
		return s.TxStatsF(ctx, id, networkID)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var stats multisig.TxStats
	monthAgo := s.now().AddDate(0, -1, 0)
	for _, rec := range s.txs {
		if rec.tx.AccountAddress != id {
			continue
		}
		stats.Total++
		if rec.tx.CreatedAt.After(monthAgo) {
			stats.LastMonth++
		}
		if rec.tx.Status == multisig.StatusSuccess {
			stats.TotalSuccess++
		}
	}
	return stats, nil
}

// ListTxsByAccount implements the engine.Store interface.
func (s *Store) ListTxsByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID,
	status *multisig.Status) ([]multisig.Tx, error) {
	if s.ListTxsByAccountF != nil {
		return s.ListTxsByAccountF(ctx, id, networkID, status)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var txs []multisig.Tx
	for _, rec := range s.txs {
		if rec.tx.AccountAddress != id {
			continue
		}
		if status != nil && rec.tx.Status != *status {
			continue
		}
		tx := rec.tx
		tx.SignatureCount = uint32(len(rec.signatures))
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}
