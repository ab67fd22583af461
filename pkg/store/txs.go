package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// CreateTx inserts a pending transaction for the given account and returns
// its generated id. The summary commitment is derived from the summary and
// stored alongside it.
func (s *Store) CreateTx(ctx context.Context, id miden.AccountID, networkID miden.NetworkID,
	txRequest []byte, txSummary miden.TransactionSummary) (multisig.TxID, error) {
	commit, err := txSummary.Commitment()
	if err != nil {
		return multisig.TxID{}, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tx (account_address, status, tx_request, tx_summary, tx_summary_commit)
		 VALUES ($1, 'pending', $2, $3, $4) RETURNING id::text`,
		id.Bech32(networkID), txRequest, []byte(txSummary), commit.Bytes())
	var rawID string
	if err := row.Scan(&rawID); err != nil {
		return multisig.TxID{}, fmt.Errorf("failed to insert tx: %w", err)
	}
	txID, err := multisig.ParseTxID(rawID)
	if err != nil {
		return multisig.TxID{}, fmt.Errorf("failed to decode generated tx id: %w", err)
	}
	return txID, nil
}

// AddSignature records an approver's signature on a pending transaction and
// reports whether the signature count reached the account's threshold. The
// whole operation runs in one database transaction holding the tx row lock:
// concurrent signers are serialised per transaction, so exactly one insert
// observes count == threshold. A signer arriving after that sees the count
// above the threshold and reports met=false.
//
// Returns permitted=false (with no signature recorded) when the approver is
// not part of the transaction's account or the transaction is unknown.
// Returns ErrTxNotPending when the transaction reached a terminal status and
// ErrDuplicateSignature when the approver already signed it.
func (s *Store) AddSignature(ctx context.Context, txID multisig.TxID, networkID miden.NetworkID,
	approver miden.AccountID, sig miden.Signature) (permitted bool, met bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	approverAddress := approver.Bech32(networkID)
	row := tx.QueryRow(ctx,
		`SELECT t.status::text,
		        EXISTS (SELECT 1 FROM account_approver aa
		                WHERE aa.account_address = t.account_address AND aa.approver_address = $2)
		 FROM tx t WHERE t.id = $1::uuid FOR UPDATE OF t`,
		txID.String(), approverAddress)
	var (
		rawStatus string
		joined    bool
	)
	if err := row.Scan(&rawStatus, &joined); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to check approver permission: %w", err)
	}
	if !joined {
		return false, false, nil
	}

	status, err := multisig.ParseStatus(rawStatus)
	if err != nil {
		return false, false, fmt.Errorf("failed to decode stored tx status: %w", err)
	}
	if status != multisig.StatusPending {
		return true, false, fmt.Errorf("%w: tx %s is %s", ErrTxNotPending, txID, status)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO signature (tx_id, approver_address, signature_bytes) VALUES ($1::uuid, $2, $3)`,
		txID.String(), approverAddress, []byte(sig))
	if err != nil {
		if isUniqueViolation(err) {
			return true, false, fmt.Errorf("%w: approver %s on tx %s", ErrDuplicateSignature, approverAddress, txID)
		}
		return true, false, fmt.Errorf("failed to insert signature: %w", err)
	}

	row = tx.QueryRow(ctx,
		`SELECT count(*), a.threshold
		 FROM signature s
		 JOIN tx t ON t.id = s.tx_id
		 JOIN account a ON a.address = t.account_address
		 WHERE s.tx_id = $1::uuid
		 GROUP BY a.threshold`,
		txID.String())
	var count, threshold int64
	if err := row.Scan(&count, &threshold); err != nil {
		return true, false, fmt.Errorf("failed to recount signatures: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return true, false, fmt.Errorf("failed to commit signature: %w", err)
	}
	return true, count == threshold, nil
}

// UpdateStatus transitions a pending transaction to the given status.
// Terminal statuses accept no further transitions: ErrTxNotPending is
// returned when the transaction already reached one.
func (s *Store) UpdateStatus(ctx context.Context, txID multisig.TxID, status multisig.Status) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE tx SET status = $2::tx_status WHERE id = $1::uuid AND status = 'pending'`,
		txID.String(), status.String())
	if err != nil {
		return fmt.Errorf("failed to update tx status: %w", err)
	}
	switch n := ct.RowsAffected(); {
	case n == 1:
		return nil
	case n > 1:
		return fmt.Errorf("status update affected %d rows for tx %s", n, txID)
	}

	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tx WHERE id = $1::uuid)`, txID.String())
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("failed to check tx existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: tx %s", ErrTxNotPending, txID)
	}
	return fmt.Errorf("%w: tx %s", ErrNotFound, txID)
}

// LoadOrderedSignaturesAndTx returns the transaction together with its
// signature vector ordered by approver index: one position per account
// approver, nil where that approver has not signed.
func (s *Store) LoadOrderedSignaturesAndTx(ctx context.Context, txID multisig.TxID) ([]miden.Signature, *multisig.Tx, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT t.id::text, t.account_address, t.status::text, t.tx_request, t.tx_summary, t.tx_summary_commit, t.created_at,
		        array_agg(s.signature_bytes ORDER BY aa.approver_index)
		 FROM tx t
		 JOIN account_approver aa ON aa.account_address = t.account_address
		 LEFT JOIN signature s ON s.tx_id = t.id AND s.approver_address = aa.approver_address
		 WHERE t.id = $1::uuid
		 GROUP BY t.id`,
		txID.String())

	var (
		raw    rawTx
		sigArr pgtype.ByteaArray
	)
	err := row.Scan(&raw.id, &raw.address, &raw.status, &raw.request, &raw.summary, &raw.commit, &raw.createdAt, &sigArr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: tx %s", ErrNotFound, txID)
		}
		return nil, nil, fmt.Errorf("failed to load tx: %w", err)
	}

	tx, err := raw.toTx()
	if err != nil {
		return nil, nil, err
	}

	sigs := make([]miden.Signature, len(sigArr.Elements))
	for i := range sigArr.Elements {
		if sigArr.Elements[i].Status != pgtype.Present {
			continue
		}
		sigs[i] = miden.Signature(sigArr.Elements[i].Bytes)
		tx.SignatureCount++
	}
	return sigs, tx, nil
}

// TxByID loads a transaction with its current signature count.
func (s *Store) TxByID(ctx context.Context, txID multisig.TxID) (*multisig.Tx, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT t.id::text, t.account_address, t.status::text, t.tx_request, t.tx_summary, t.tx_summary_commit, t.created_at,
		        count(s.tx_id)
		 FROM tx t
		 LEFT JOIN signature s ON s.tx_id = t.id
		 WHERE t.id = $1::uuid
		 GROUP BY t.id`,
		txID.String())
	tx, err := scanTx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: tx %s", ErrNotFound, txID)
		}
		return nil, err
	}
	return tx, nil
}

// TxStats aggregates the account's transaction history: total count, count
// over the trailing month and total successfully submitted.
func (s *Store) TxStats(ctx context.Context, id miden.AccountID, networkID miden.NetworkID) (multisig.TxStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE created_at >= now() - interval '1 month'),
		        count(*) FILTER (WHERE status = 'success')
		 FROM tx WHERE account_address = $1`,
		id.Bech32(networkID))
	var total, lastMonth, totalSuccess int64
	if err := row.Scan(&total, &lastMonth, &totalSuccess); err != nil {
		return multisig.TxStats{}, fmt.Errorf("failed to load tx stats: %w", err)
	}
	return multisig.TxStats{
		Total:        uint64(total),
		LastMonth:    uint64(lastMonth),
		TotalSuccess: uint64(totalSuccess),
	}, nil
}

// ListTxsByAccount returns the account's transactions newest first,
// optionally narrowed to one status, each with its signature count.
func (s *Store) ListTxsByAccount(ctx context.Context, id miden.AccountID, networkID miden.NetworkID,
	status *multisig.Status) ([]multisig.Tx, error) {
	query := `SELECT t.id::text, t.account_address, t.status::text, t.tx_request, t.tx_summary, t.tx_summary_commit, t.created_at,
	                 count(s.tx_id)
	          FROM tx t
	          LEFT JOIN signature s ON s.tx_id = t.id
	          WHERE t.account_address = $1`
	args := []interface{}{id.Bech32(networkID)}
	if status != nil {
		query += ` AND t.status = $2::tx_status`
		args = append(args, status.String())
	}
	query += ` GROUP BY t.id ORDER BY t.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list txs: %w", err)
	}
	defer rows.Close()

	var txs []multisig.Tx
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list txs: %w", err)
	}
	return txs, nil
}

type rawTx struct {
	id        string
	address   string
	status    string
	request   []byte
	summary   []byte
	commit    []byte
	createdAt time.Time
	count     int64
}

func scanTx(row rowScanner) (*multisig.Tx, error) {
	var raw rawTx
	err := row.Scan(&raw.id, &raw.address, &raw.status, &raw.request, &raw.summary, &raw.commit, &raw.createdAt, &raw.count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tx: %w", err)
	}
	tx, err := raw.toTx()
	if err != nil {
		return nil, err
	}
	tx.SignatureCount = uint32(raw.count)
	return tx, nil
}

func (raw *rawTx) toTx() (*multisig.Tx, error) {
	id, err := multisig.ParseTxID(raw.id)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored tx id: %w", err)
	}
	networkID, accountID, err := parseStoredAddress(raw.address)
	if err != nil {
		return nil, err
	}
	status, err := multisig.ParseStatus(raw.status)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored tx status: %w", err)
	}
	commit, err := miden.WordDecodeBytes(raw.commit)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored summary commitment: %w", err)
	}
	tx := &multisig.Tx{
		ID:             id,
		AccountAddress: accountID,
		NetworkID:      networkID,
		Status:         status,
		Request:        raw.request,
		Summary:        miden.TransactionSummary(raw.summary),
		SummaryCommit:  commit,
	}
	tx.Timestamps = multisig.NewTimestamps(raw.createdAt)
	return tx, nil
}
