package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// CreateAccount persists a fully-built account with its ordered approver
// set in a single database transaction. Approvers already known from other
// accounts get their public key commitment overwritten. On success the
// account's and its approvers' timestamps are set to the row creation time.
func (s *Store) CreateAccount(ctx context.Context, account *multisig.Account) error {
	if account.Threshold == 0 || uint64(account.Threshold) > uint64(len(account.Approvers)) {
		return fmt.Errorf("%w: threshold %d for %d approvers", ErrInvalidValue, account.Threshold, len(account.Approvers))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO account (address, kind, threshold) VALUES ($1, $2::account_kind, $3) RETURNING created_at`,
		account.Bech32(), account.Kind.String(), int64(account.Threshold))
	var ts multisig.Timestamps
	if err := row.Scan(&ts.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account %s", ErrAlreadyExists, account.Bech32())
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	ts.UpdatedAt = ts.CreatedAt

	for i := range account.Approvers {
		approver := &account.Approvers[i]
		address := approver.Address.Bech32(account.NetworkID)
		_, err := tx.Exec(ctx,
			`INSERT INTO approver (address, pub_key_commit, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (address) DO UPDATE SET pub_key_commit = EXCLUDED.pub_key_commit`,
			address, approver.PubKeyCommit.Bytes(), ts.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert approver %s: %w", address, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO account_approver (account_address, approver_address, approver_index) VALUES ($1, $2, $3)`,
			account.Bech32(), address, int64(i))
		if err != nil {
			return fmt.Errorf("failed to join approver %s: %w", address, err)
		}
		approver.Timestamps = ts
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit account creation: %w", err)
	}
	account.Timestamps = ts
	return nil
}

// Account loads the account row for the given id. The approver set is not
// loaded, see ApproversByAccount.
func (s *Store) Account(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (*multisig.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT kind::text, threshold, created_at FROM account WHERE address = $1`,
		id.Bech32(networkID))
	var (
		kind      string
		threshold int64
		account   = &multisig.Account{Address: id, NetworkID: networkID}
	)
	if err := row.Scan(&kind, &threshold, &account.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", ErrNotFound, id.Bech32(networkID))
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if err := fillAccountRow(account, kind, threshold); err != nil {
		return nil, err
	}
	return account, nil
}

// Accounts enumerates every stored account ordered by creation time. The
// approver sets are not loaded.
func (s *Store) Accounts(ctx context.Context) ([]multisig.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, kind::text, threshold, created_at FROM account ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []multisig.Account
	for rows.Next() {
		var (
			address   string
			kind      string
			threshold int64
			account   multisig.Account
		)
		if err := rows.Scan(&address, &kind, &threshold, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if account.NetworkID, account.Address, err = parseStoredAddress(address); err != nil {
			return nil, err
		}
		if err := fillAccountRow(&account, kind, threshold); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func fillAccountRow(account *multisig.Account, kind string, threshold int64) error {
	parsedKind, err := multisig.ParseKind(kind)
	if err != nil {
		return fmt.Errorf("failed to decode stored account: %w", err)
	}
	if threshold <= 0 || threshold > int64(^uint32(0)) {
		return fmt.Errorf("%w: stored threshold %d", ErrInvalidValue, threshold)
	}
	account.Kind = parsedKind
	account.Threshold = uint32(threshold)
	account.UpdatedAt = account.CreatedAt
	return nil
}

// ApproversByAccount returns the account's approvers ordered by their
// signing index.
func (s *Store) ApproversByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) ([]multisig.Approver, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ap.address, ap.pub_key_commit, ap.created_at
		 FROM approver ap
		 JOIN account_approver aa ON aa.approver_address = ap.address
		 WHERE aa.account_address = $1
		 ORDER BY aa.approver_index`,
		id.Bech32(networkID))
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	defer rows.Close()

	var approvers []multisig.Approver
	for rows.Next() {
		approver, err := scanApprover(rows)
		if err != nil {
			return nil, err
		}
		approvers = append(approvers, approver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	return approvers, nil
}

// ApproverByAddress loads a single approver.
func (s *Store) ApproverByAddress(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (*multisig.Approver, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT address, pub_key_commit, created_at FROM approver WHERE address = $1`,
		id.Bech32(networkID))
	approver, err := scanApprover(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: approver %s", ErrNotFound, id.Bech32(networkID))
		}
		return nil, err
	}
	return &approver, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApprover(row rowScanner) (multisig.Approver, error) {
	var (
		address  string
		commit   []byte
		approver multisig.Approver
	)
	if err := row.Scan(&address, &commit, &approver.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approver, err
		}
		return approver, fmt.Errorf("failed to scan approver: %w", err)
	}
	var err error
	if _, approver.Address, err = parseStoredAddress(address); err != nil {
		return approver, err
	}
	if approver.PubKeyCommit, err = miden.WordDecodeBytes(commit); err != nil {
		return approver, fmt.Errorf("failed to decode stored pub key commitment: %w", err)
	}
	approver.UpdatedAt = approver.CreatedAt
	return approver, nil
}
