package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/engine/runtime"
	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// ProposedTx is the result of a transaction proposal: the persisted
// transaction id and the summary approvers sign over.
type ProposedTx struct {
	ID      multisig.TxID
	Summary miden.TransactionSummary
}

// CreateMultisigAccount deploys a fresh multisig account through the wallet
// runtime, persists it together with its approver set and returns the
// stored form.
func (e *Engine) CreateMultisigAccount(ctx context.Context, req *CreateMultisigAccountRequest) (*multisig.Account, error) {
	rt, err := e.runtime()
	if err != nil {
		return nil, err
	}

	ch := make(chan runtime.AccountReply, 1)
	rt.Post(runtime.CreateMultisigAccount{
		Threshold:     req.threshold,
		PubKeyCommits: req.pubKeyCommits,
		Reply:         ch,
	})
	reply, err := await(ctx, ch)
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, wrapKind(KindRuntime, fmt.Errorf("failed to create wallet account: %w", reply.Err))
	}

	builder, err := multisig.NewAccount(reply.Account.ID, e.cfg.NetworkID, multisig.KindPublic, req.threshold).
		WithApprovers(req.approvers)
	if err != nil {
		return nil, wrapKind(KindValidation, err)
	}
	account, err := builder.WithPubKeyCommits(req.pubKeyCommits)
	if err != nil {
		return nil, wrapKind(KindValidation, err)
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, wrapStore(err)
	}
	accountsCreatedInc()
	e.log.Info("multisig account created",
		zap.String("address", account.Bech32()),
		zap.Uint32("threshold", account.Threshold),
		zap.Int("approvers", len(account.Approvers)))
	return account, nil
}

// ProposeMultisigTx dry-runs the transaction request through the wallet
// runtime to obtain the summary approvers will sign, then records the
// pending transaction for the given stored account.
func (e *Engine) ProposeMultisigTx(ctx context.Context, address miden.AccountID, txRequest *miden.TransactionRequest) (ProposedTx, error) {
	rt, err := e.runtime()
	if err != nil {
		return ProposedTx{}, err
	}

	ch := make(chan runtime.SummaryReply, 1)
	rt.Post(runtime.ProposeMultisigTx{
		Account:   address,
		TxRequest: txRequest,
		Reply:     ch,
	})
	reply, err := await(ctx, ch)
	if err != nil {
		return ProposedTx{}, err
	}
	if reply.Err != nil {
		return ProposedTx{}, wrapKind(KindPropose, reply.Err)
	}

	if _, err := e.store.Account(ctx, address, e.cfg.NetworkID); err != nil {
		return ProposedTx{}, wrapStore(err)
	}
	txID, err := e.store.CreateTx(ctx, address, e.cfg.NetworkID, txRequest.Bytes(), reply.Summary)
	if err != nil {
		return ProposedTx{}, wrapStore(err)
	}
	txsProposedInc()
	e.log.Info("multisig tx proposed",
		zap.Stringer("tx", txID),
		zap.String("address", address.Bech32(e.cfg.NetworkID)))
	return ProposedTx{ID: txID, Summary: reply.Summary}, nil
}

// AddSignature records an approver's signature on a pending transaction.
// Below the account threshold it returns a nil result. The signature that
// reaches the threshold triggers final execution: the stored signatures are
// assembled in approver order, the transaction is executed and submitted
// through the wallet runtime, and the stored status flips to success. When
// execution fails the status flips to failure and the execution error is
// returned; the transaction is terminal either way.
func (e *Engine) AddSignature(ctx context.Context, txID multisig.TxID, approver miden.AccountID, sig miden.Signature) (miden.TransactionResult, error) {
	rt, err := e.runtime()
	if err != nil {
		return nil, err
	}

	permitted, met, err := e.store.AddSignature(ctx, txID, e.cfg.NetworkID, approver, sig)
	if err != nil {
		return nil, wrapStore(err)
	}
	if !permitted {
		return nil, wrapKind(KindValidation, fmt.Errorf("%w: %s on tx %s",
			ErrApproverNotPermitted, approver.Bech32(e.cfg.NetworkID), txID))
	}
	signaturesAcceptedInc()
	if !met {
		return nil, nil
	}

	signatures, tx, err := e.store.LoadOrderedSignaturesAndTx(ctx, txID)
	if err != nil {
		return nil, wrapStore(err)
	}
	txRequest, err := miden.ParseTransactionRequest(tx.Request)
	if err != nil {
		return nil, wrapKind(KindOther, fmt.Errorf("stored tx request is unreadable: %w", err))
	}

	ch := make(chan runtime.ResultReply, 1)
	rt.Post(runtime.ProcessMultisigTx{
		Account:    tx.AccountAddress,
		TxRequest:  txRequest,
		TxSummary:  tx.Summary,
		Signatures: signatures,
		Reply:      ch,
	})
	reply, err := await(ctx, ch)
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		if err := e.store.UpdateStatus(ctx, txID, multisig.StatusFailure); err != nil {
			e.log.Error("failed to mark tx failed", zap.Stringer("tx", txID), zap.Error(err))
			return nil, wrapStore(err)
		}
		txsProcessedInc(multisig.StatusFailure)
		e.log.Warn("multisig tx failed", zap.Stringer("tx", txID), zap.Error(reply.Err))
		return nil, wrapKind(KindProcess, reply.Err)
	}

	// The transaction is already on chain at this point; a crash before
	// the update leaves it pending in the store until reconciled by hand.
	if err := e.store.UpdateStatus(ctx, txID, multisig.StatusSuccess); err != nil {
		e.log.Error("tx submitted but not marked successful", zap.Stringer("tx", txID), zap.Error(err))
		return nil, wrapStore(err)
	}
	txsProcessedInc(multisig.StatusSuccess)
	e.log.Info("multisig tx executed", zap.Stringer("tx", txID))
	return reply.Result, nil
}

// GetConsumableNotes lists the notes currently spendable by the given
// account, or by any tracked account when the address is nil. This is the
// only read served by the wallet runtime rather than the store.
func (e *Engine) GetConsumableNotes(ctx context.Context, address *miden.AccountID) ([]miden.ConsumableNote, error) {
	rt, err := e.runtime()
	if err != nil {
		return nil, err
	}

	ch := make(chan runtime.NotesReply, 1)
	rt.Post(runtime.GetConsumableNotes{Account: address, Reply: ch})
	reply, err := await(ctx, ch)
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, wrapKind(KindRuntime, reply.Err)
	}
	return reply.Notes, nil
}

// GetMultisigAccount returns the stored account row for the address.
func (e *Engine) GetMultisigAccount(ctx context.Context, address miden.AccountID) (*multisig.Account, error) {
	if !e.started.Load() {
		return nil, wrapKind(KindOther, ErrNotStarted)
	}
	account, err := e.store.Account(ctx, address, e.cfg.NetworkID)
	if err != nil {
		return nil, wrapStore(err)
	}
	return account, nil
}

// ListMultisigApprovers returns the account's approvers in index order.
func (e *Engine) ListMultisigApprovers(ctx context.Context, address miden.AccountID) ([]multisig.Approver, error) {
	if !e.started.Load() {
		return nil, wrapKind(KindOther, ErrNotStarted)
	}
	approvers, err := e.store.ApproversByAccount(ctx, address, e.cfg.NetworkID)
	if err != nil {
		return nil, wrapStore(err)
	}
	return approvers, nil
}

// GetMultisigTxStats returns transaction counters for the account. An
// address with no transactions yields all-zero stats.
func (e *Engine) GetMultisigTxStats(ctx context.Context, address miden.AccountID) (multisig.TxStats, error) {
	if !e.started.Load() {
		return multisig.TxStats{}, wrapKind(KindOther, ErrNotStarted)
	}
	stats, err := e.store.TxStats(ctx, address, e.cfg.NetworkID)
	if err != nil {
		return multisig.TxStats{}, wrapStore(err)
	}
	return stats, nil
}

// ListMultisigTx returns the account's transactions, newest first,
// optionally narrowed to one status.
func (e *Engine) ListMultisigTx(ctx context.Context, address miden.AccountID, status *multisig.Status) ([]multisig.Tx, error) {
	if !e.started.Load() {
		return nil, wrapKind(KindOther, ErrNotStarted)
	}
	txs, err := e.store.ListTxsByAccount(ctx, address, e.cfg.NetworkID, status)
	if err != nil {
		return nil, wrapStore(err)
	}
	return txs, nil
}
