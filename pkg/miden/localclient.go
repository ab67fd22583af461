package miden

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/0xMiden/MultiSig/pkg/io"
)

// Bucket layout of the local client's store.
var (
	accountsBucket = []byte("accounts")
	notesBucket    = []byte("notes")
	spentBucket    = []byte("spent")
	metaBucket     = []byte("meta")
)

var heightKey = []byte("height")

// LocalClient is the embedded local node wallet backend. It keeps tracked
// accounts, notes and chain height in a bbolt database under the configured
// store path and simulates execution and submission in-process. Like every
// Client it is single-goroutine only.
type LocalClient struct {
	db     *bbolt.DB
	closed bool
}

// OpenLocalClient opens (creating as needed) the local wallet backend at
// cfg.StorePath with its keystore directory at cfg.KeystorePath.
func OpenLocalClient(cfg ClientConfig) (*LocalClient, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create dir for the wallet store: %w", err)
	}
	if cfg.KeystorePath != "" {
		if err := os.MkdirAll(cfg.KeystorePath, os.ModePerm); err != nil {
			return nil, fmt.Errorf("could not create keystore dir: %w", err)
		}
	}

	db, err := bbolt.Open(cfg.StorePath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{accountsBucket, notesBucket, spentBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("could not create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}
	return &LocalClient{db: db}, nil
}

// SyncState advances the simulated chain height. There is no remote node to
// reconcile with, the bump keeps repeated syncs observable.
func (c *LocalClient) SyncState(_ context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		var h uint64
		if v := b.Get(heightKey); v != nil {
			h = binary.LittleEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, h+1)
		return b.Put(heightKey, buf)
	})
}

// Height returns the current simulated chain height.
func (c *LocalClient) Height() (h uint64, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get(heightKey); v != nil {
			h = binary.LittleEndian.Uint64(v)
		}
		return nil
	})
	return
}

// NewMultisigAccount creates a multisig account with the configured
// threshold, writes the multisig state layout into the account's storage and
// starts tracking it.
func (c *LocalClient) NewMultisigAccount(_ context.Context, threshold uint32, pubKeyCommits []Word) (*Account, error) {
	if threshold == 0 {
		return nil, errors.New("threshold must be positive")
	}
	if len(pubKeyCommits) == 0 {
		return nil, errors.New("no public key commitments")
	}
	if uint64(threshold) > uint64(len(pubKeyCommits)) {
		return nil, fmt.Errorf("threshold %d exceeds approver count %d", threshold, len(pubKeyCommits))
	}

	var id AccountID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("failed to generate account id: %w", err)
	}

	storage := NewAccountStorage()
	storage.SetSlot(ConfigStorageSlot, Word{Felt(threshold), Felt(len(pubKeyCommits)), 0, 0})
	for i, commit := range pubKeyCommits {
		storage.SetMapItem(PubKeysStorageSlot, IndexWord(uint32(i)), commit)
	}

	account := &Account{ID: id, Storage: storage}
	if err := c.putAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ImportAccount starts tracking an existing account. The local backend has
// no remote chain to fetch unknown accounts from, so importing an account
// this client never created fails with ErrAccountNotFound.
func (c *LocalClient) ImportAccount(_ context.Context, id AccountID) error {
	return c.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(accountsBucket).Get(id.Bytes()) == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return nil
	})
}

// Account returns a tracked account.
func (c *LocalClient) Account(_ context.Context, id AccountID) (*Account, error) {
	var account *Account
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get(id.Bytes())
		if v == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		account = new(Account)
		return io.FromBytes(v, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ImportNote fetches a note into the local store. Only notes minted into
// this backend exist.
func (c *LocalClient) ImportNote(_ context.Context, id NoteID) error {
	return c.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(notesBucket).Get(id.Bytes()) == nil {
			return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
		}
		return nil
	})
}

// MintNote adds a spendable note to the simulated chain. It is the local
// backend's stand-in for notes produced by other parties.
func (c *LocalClient) MintNote(note *ConsumableNote) error {
	b, err := io.ToBytes(note)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(notesBucket).Put(note.ID.Bytes(), b)
	})
}

// ConsumableNotes lists unspent notes, optionally filtered by the account
// that would consume them.
func (c *LocalClient) ConsumableNotes(_ context.Context, id *AccountID) ([]ConsumableNote, error) {
	var notes []ConsumableNote
	err := c.db.View(func(tx *bbolt.Tx) error {
		spent := tx.Bucket(spentBucket)
		return tx.Bucket(notesBucket).ForEach(func(k, v []byte) error {
			if spent.Get(k) != nil {
				return nil
			}
			var note ConsumableNote
			if err := io.FromBytes(v, &note); err != nil {
				return err
			}
			if id != nil && !note.ConsumableBy(*id) {
				return nil
			}
			notes = append(notes, note)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// ExecuteTransaction executes the request against the account. Without
// threshold-many witness signatures in the advice map it fails with
// *UnauthorizedError carrying the summary to sign; with them it verifies the
// input notes and returns the execution result to be submitted.
func (c *LocalClient) ExecuteTransaction(ctx context.Context, id AccountID, req *TransactionRequest) (TransactionResult, error) {
	account, err := c.Account(ctx, id)
	if err != nil {
		return nil, err
	}

	config := account.Storage.Slot(ConfigStorageSlot)
	threshold := uint32(config[0])
	numApprovers, err := account.NumApprovers()
	if err != nil {
		return nil, err
	}

	summary := c.transactionSummary(id, req)
	commit, err := summary.Commitment()
	if err != nil {
		return nil, err
	}

	var signers uint32
	for i := uint32(0); i < numApprovers; i++ {
		pubKeyCommit, err := account.PubKeyCommit(i)
		if err != nil {
			return nil, err
		}
		if sig, ok := req.Advice(c.MergeCommitments(pubKeyCommit, commit)); ok && len(sig) > 0 {
			signers++
		}
	}
	if signers < threshold {
		return nil, &UnauthorizedError{Summary: summary}
	}

	err = c.db.View(func(tx *bbolt.Tx) error {
		notes := tx.Bucket(notesBucket)
		spent := tx.Bucket(spentBucket)
		for _, nid := range req.InputNoteIDs() {
			if notes.Get(nid.Bytes()) == nil {
				return fmt.Errorf("%w: %s", ErrNoteNotFound, nid)
			}
			if spent.Get(nid.Bytes()) != nil {
				return fmt.Errorf("note %s already consumed", nid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := localTxResult{Account: id, Notes: req.InputNoteIDs(), Commit: commit}
	b, err := io.ToBytes(&res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction result: %w", err)
	}
	return b, nil
}

// SubmitTransaction proves and submits an executed transaction: input notes
// become consumed and the chain height advances.
func (c *LocalClient) SubmitTransaction(_ context.Context, res TransactionResult) error {
	var parsed localTxResult
	if err := io.FromBytes(res, &parsed); err != nil {
		return fmt.Errorf("failed to decode transaction result: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		spent := tx.Bucket(spentBucket)
		for _, nid := range parsed.Notes {
			if spent.Get(nid.Bytes()) != nil {
				return fmt.Errorf("note %s already consumed", nid)
			}
		}
		for _, nid := range parsed.Notes {
			if err := spent.Put(nid.Bytes(), []byte{1}); err != nil {
				return err
			}
		}
		meta := tx.Bucket(metaBucket)
		var h uint64
		if v := meta.Get(heightKey); v != nil {
			h = binary.LittleEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, h+1)
		return meta.Put(heightKey, buf)
	})
}

// MergeCommitments implements the witness key derivation with the local
// backend's digest.
func (c *LocalClient) MergeCommitments(a, b Word) Word {
	h := sha256.New()
	h.Write(a.Bytes())
	h.Write(b.Bytes())
	w, err := WordDecodeBytes(h.Sum(nil))
	if err != nil {
		panic(err)
	}
	return w
}

// Close releases the client's resources.
func (c *LocalClient) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *LocalClient) putAccount(account *Account) error {
	b, err := io.ToBytes(account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucket).Put(account.ID.Bytes(), b)
	})
}

// transactionSummary derives the signing artifact for the request. The
// commitment covers the account and the request's effects (input notes and
// script), never the advice map, so it is stable between the dry run and the
// final execution.
func (c *LocalClient) transactionSummary(id AccountID, req *TransactionRequest) TransactionSummary {
	h := sha256.New()
	h.Write(id.Bytes())
	for _, nid := range req.InputNoteIDs() {
		h.Write(nid.Bytes())
	}
	h.Write(req.Script())

	commit, err := WordDecodeBytes(h.Sum(nil))
	if err != nil {
		panic(err)
	}

	bw := io.NewBufBinWriter()
	id.EncodeBinary(bw.BinWriter)
	io.WriteArray(bw.BinWriter, req.InputNoteIDs())
	payload := bw.Bytes()

	return NewTransactionSummary(commit, payload)
}

type localTxResult struct {
	Account AccountID
	Notes   []NoteID
	Commit  Word
}

// EncodeBinary implements the io.Serializable interface.
func (r *localTxResult) EncodeBinary(bw *io.BinWriter) {
	r.Account.EncodeBinary(bw)
	io.WriteArray(bw, r.Notes)
	r.Commit.EncodeBinary(bw)
}

// DecodeBinary implements the io.Serializable interface.
func (r *localTxResult) DecodeBinary(br *io.BinReader) {
	r.Account.DecodeBinary(br)
	io.ReadArray(br, &r.Notes)
	r.Commit.DecodeBinary(br)
}
