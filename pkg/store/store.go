/*
Package store implements the coordinator's persistence layer on PostgreSQL.

It owns the textual form of account identifiers: rows keep bech32-encoded
addresses, reads parse them back into native ids, so everything above the
store works with miden.AccountID values only. Signature collection relies on
the database for its correctness guarantees: the signature insert and the
following recount run in one transaction holding the tx row lock, making the
count==threshold observation unique across concurrent signers.
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// Store provides persistence for multisig accounts, transactions and
// signatures. It is safe for concurrent use, every call acquires a pool
// connection for the duration of one logical operation.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store working on the given pool. The pool is expected to be
// migrated already, see RunMigrations.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool connects a pgx pool to the given database URL with the configured
// connection limit.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return pool, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// parseStoredAddress decodes a stored bech32 address, mapping malformed rows
// to a decoding error mentioning the offender.
func parseStoredAddress(address string) (miden.NetworkID, miden.AccountID, error) {
	networkID, id, err := miden.ParseAddress(address)
	if err != nil {
		return "", miden.AccountID{}, fmt.Errorf("failed to decode stored address %q: %w", address, err)
	}
	return networkID, id, nil
}
