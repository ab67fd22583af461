package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// ErrDryRunExpected is returned when a transaction dry run succeeds instead
// of failing with the unauthorized error carrying the summary to sign. An
// execution authorized without any collected signature is a bug.
var ErrDryRunExpected = errors.New("transaction dry run unexpectedly succeeded")

// ErrNumSignaturesMismatch is returned when the positional signature vector
// length differs from the account's approver count.
var ErrNumSignaturesMismatch = errors.New("signature vector length mismatch")

func (r *Runtime) dispatch(ctx context.Context, client miden.Client, msg Message) {
	switch m := msg.(type) {
	case CreateMultisigAccount:
		account, err := client.NewMultisigAccount(ctx, m.Threshold, m.PubKeyCommits)
		reply(r.log, m.Reply, AccountReply{Account: account, Err: err}, err)
	case GetConsumableNotes:
		notes, err := client.ConsumableNotes(ctx, m.Account)
		reply(r.log, m.Reply, NotesReply{Notes: notes, Err: err}, err)
	case ProposeMultisigTx:
		summary, err := r.propose(ctx, client, m)
		reply(r.log, m.Reply, SummaryReply{Summary: summary, Err: err}, err)
	case ProcessMultisigTx:
		result, err := r.process(ctx, client, m)
		reply(r.log, m.Reply, ResultReply{Result: result, Err: err}, err)
	default:
		r.log.Error("unknown runtime message", zap.Any("message", msg))
	}
}

// propose dry-runs the request. The wallet is expected to reject the
// execution as unauthorized, no signatures are wired in yet, and that
// rejection carries the summary approvers will sign.
func (r *Runtime) propose(ctx context.Context, client miden.Client, m ProposeMultisigTx) (miden.TransactionSummary, error) {
	for _, id := range m.TxRequest.InputNoteIDs() {
		if err := client.ImportNote(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to import note %s: %w", id, err)
		}
		if err := client.SyncState(ctx); err != nil {
			return nil, fmt.Errorf("failed to sync state after note import: %w", err)
		}
	}

	_, err := client.ExecuteTransaction(ctx, m.Account, m.TxRequest)
	if err == nil {
		return nil, ErrDryRunExpected
	}
	var unauth *miden.UnauthorizedError
	if errors.As(err, &unauth) {
		return unauth.Summary, nil
	}
	return nil, err
}

// process assembles the witness advice from the positional signature vector
// and runs the final execute-then-submit sequence.
func (r *Runtime) process(ctx context.Context, client miden.Client, m ProcessMultisigTx) (miden.TransactionResult, error) {
	account, err := client.Account(ctx, m.Account)
	if err != nil {
		return nil, err
	}
	numApprovers, err := account.NumApprovers()
	if err != nil {
		return nil, err
	}
	if uint64(len(m.Signatures)) != uint64(numApprovers) {
		return nil, fmt.Errorf("%w: %d signature slots for %d approvers",
			ErrNumSignaturesMismatch, len(m.Signatures), numApprovers)
	}

	summaryCommit, err := m.TxSummary.Commitment()
	if err != nil {
		return nil, err
	}
	for i, sig := range m.Signatures {
		if sig == nil {
			continue
		}
		pubKeyCommit, err := account.PubKeyCommit(uint32(i))
		if err != nil {
			return nil, err
		}
		m.TxRequest.InsertAdvice(client.MergeCommitments(pubKeyCommit, summaryCommit), sig)
	}

	result, err := client.ExecuteTransaction(ctx, m.Account, m.TxRequest)
	if err != nil {
		return nil, err
	}
	if err := client.SubmitTransaction(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to submit transaction: %w", err)
	}
	return result, nil
}

// reply delivers v into the message's reply channel without blocking,
// logging handler errors and dropped replies on the way.
func reply[T any](log *zap.Logger, ch chan<- T, v T, err error) {
	if err != nil {
		log.Warn("runtime handler failed", zap.Error(err))
	}
	if ch == nil {
		log.Warn("message without reply channel")
		return
	}
	select {
	case ch <- v:
	default:
		log.Warn("reply channel is not writable, dropping reply")
	}
}

// replyError sends err on whichever reply channel the message carries.
func (r *Runtime) replyError(msg Message, err error) {
	switch m := msg.(type) {
	case CreateMultisigAccount:
		reply(r.log, m.Reply, AccountReply{Err: err}, err)
	case GetConsumableNotes:
		reply(r.log, m.Reply, NotesReply{Err: err}, err)
	case ProposeMultisigTx:
		reply(r.log, m.Reply, SummaryReply{Err: err}, err)
	case ProcessMultisigTx:
		reply(r.log, m.Reply, ResultReply{Err: err}, err)
	}
}
