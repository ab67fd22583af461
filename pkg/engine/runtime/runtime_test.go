package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/0xMiden/MultiSig/internal/fakewallet"
	"github.com/0xMiden/MultiSig/pkg/miden"
)

func testRuntime(t *testing.T, wallet *fakewallet.Wallet, track ...miden.AccountID) *Runtime {
	rt := New(Config{
		Client:        miden.ClientConfig{NodeURL: "fake://node"},
		Dial:          func(_ context.Context, _ miden.ClientConfig) (miden.Client, error) { return wallet, nil },
		TrackAccounts: track,
		Log:           zaptest.NewLogger(t),
	})
	return rt
}

func TestRuntimeStartStop(t *testing.T) {
	wallet := fakewallet.New()
	var tracked miden.AccountID
	tracked[0] = 0xAA

	rt := testRuntime(t, wallet, tracked)
	require.NoError(t, rt.Start())
	require.NoError(t, rt.Start(), "second start is no-op")
	rt.Stop()
	rt.Stop()

	assert.Equal(t, []string{"SyncState", "ImportAccount(" + tracked.String() + ")", "Close"}, wallet.Calls)
}

func TestRuntimeDialFailure(t *testing.T) {
	rt := New(Config{
		Client: miden.ClientConfig{NodeURL: "fake://node"},
		Dial: func(_ context.Context, _ miden.ClientConfig) (miden.Client, error) {
			return nil, errors.New("node unreachable")
		},
		Log: zaptest.NewLogger(t),
	})
	require.ErrorContains(t, rt.Start(), "node unreachable")
}

func TestRuntimeFIFO(t *testing.T) {
	wallet := fakewallet.New()
	rt := testRuntime(t, wallet)

	// Queue both messages before the worker starts taking: handling must
	// follow posting order.
	createCh := make(chan AccountReply, 1)
	rt.Post(CreateMultisigAccount{
		Threshold:     1,
		PubKeyCommits: []miden.Word{miden.NewWord(1, 0, 0, 0)},
		Reply:         createCh,
	})
	notesCh := make(chan NotesReply, 1)
	rt.Post(GetConsumableNotes{Reply: notesCh})

	require.NoError(t, rt.Start())
	require.NoError(t, (<-createCh).Err)
	require.NoError(t, (<-notesCh).Err)
	rt.Stop()

	assert.Equal(t, []string{
		"SyncState",
		"SyncState", "NewMultisigAccount",
		"SyncState", "ConsumableNotes",
		"Close",
	}, wallet.Calls)
}

func TestRuntimeSyncFailureIsPerMessage(t *testing.T) {
	wallet := fakewallet.New()
	syncErr := errors.New("sync broke")
	failing := true
	wallet.SyncStateF = func(_ context.Context) error {
		if failing {
			return syncErr
		}
		return nil
	}

	rt := testRuntime(t, wallet)
	require.NoError(t, rt.Start(), "startup sync failure is logged, not fatal")
	see := func() NotesReply {
		ch := make(chan NotesReply, 1)
		rt.Post(GetConsumableNotes{Reply: ch})
		return <-ch
	}
	reply := see()
	require.ErrorIs(t, reply.Err, syncErr)

	failing = false
	reply = see()
	require.NoError(t, reply.Err)
	rt.Stop()
}

func TestRuntimePropose(t *testing.T) {
	var account miden.AccountID
	account[0] = 0xA1
	var note1, note2 miden.NoteID
	note1[0], note2[0] = 1, 2
	summary := miden.NewTransactionSummary(miden.NewWord(9, 9, 9, 9), []byte("to-sign"))

	t.Run("unauthorized dry run returns the summary", func(t *testing.T) {
		wallet := fakewallet.New()
		wallet.ExecuteTransactionF = func(_ context.Context, id miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error) {
			assert.Equal(t, account, id)
			assert.Zero(t, req.AdviceLen())
			return nil, &miden.UnauthorizedError{Summary: summary}
		}
		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan SummaryReply, 1)
		rt.Post(ProposeMultisigTx{
			Account:   account,
			TxRequest: miden.NewTransactionRequest([]miden.NoteID{note1, note2}, []byte("script")),
			Reply:     ch,
		})
		reply := <-ch
		require.NoError(t, reply.Err)
		assert.Equal(t, summary, reply.Summary)

		// Input notes are imported (with a sync each) before the dry run.
		assert.Equal(t, []string{
			"SyncState",
			"SyncState",
			"ImportNote(" + note1.String() + ")", "SyncState",
			"ImportNote(" + note2.String() + ")", "SyncState",
			"ExecuteTransaction",
		}, wallet.Calls)
	})

	t.Run("successful dry run is a bug", func(t *testing.T) {
		wallet := fakewallet.New()
		wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, _ *miden.TransactionRequest) (miden.TransactionResult, error) {
			return miden.TransactionResult("ok"), nil
		}
		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan SummaryReply, 1)
		rt.Post(ProposeMultisigTx{Account: account, TxRequest: miden.NewTransactionRequest(nil, nil), Reply: ch})
		require.ErrorIs(t, (<-ch).Err, ErrDryRunExpected)
	})

	t.Run("other execution errors propagate", func(t *testing.T) {
		wallet := fakewallet.New()
		execErr := errors.New("vm fault")
		wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, _ *miden.TransactionRequest) (miden.TransactionResult, error) {
			return nil, execErr
		}
		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan SummaryReply, 1)
		rt.Post(ProposeMultisigTx{Account: account, TxRequest: miden.NewTransactionRequest(nil, nil), Reply: ch})
		require.ErrorIs(t, (<-ch).Err, execErr)
	})

	t.Run("note import failure fails the proposal", func(t *testing.T) {
		wallet := fakewallet.New()
		importErr := errors.New("no such note")
		wallet.ImportNoteF = func(_ context.Context, _ miden.NoteID) error { return importErr }
		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan SummaryReply, 1)
		rt.Post(ProposeMultisigTx{
			Account:   account,
			TxRequest: miden.NewTransactionRequest([]miden.NoteID{note1}, nil),
			Reply:     ch,
		})
		require.ErrorIs(t, (<-ch).Err, importErr)
	})
}

func TestRuntimeProcess(t *testing.T) {
	var accountID miden.AccountID
	accountID[0] = 0xB2
	commits := []miden.Word{
		miden.NewWord(1, 1, 1, 1),
		miden.NewWord(2, 2, 2, 2),
		miden.NewWord(3, 3, 3, 3),
	}
	summary := miden.NewTransactionSummary(miden.NewWord(4, 4, 4, 4), []byte("payload"))
	summaryCommit, err := summary.Commitment()
	require.NoError(t, err)

	newWallet := func() *fakewallet.Wallet {
		wallet := fakewallet.New()
		wallet.AccountF = func(_ context.Context, id miden.AccountID) (*miden.Account, error) {
			assert.Equal(t, accountID, id)
			return fakewallet.NewAccount(id, 2, commits), nil
		}
		return wallet
	}

	t.Run("advice assembly and submit", func(t *testing.T) {
		wallet := newWallet()
		result := miden.TransactionResult("executed")
		wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error) {
			assert.Equal(t, 2, req.AdviceLen(), "one advice entry per present signature")
			sig, ok := req.Advice(wallet.MergeCommitments(commits[0], summaryCommit))
			assert.True(t, ok)
			assert.Equal(t, []byte("sig-0"), sig)
			sig, ok = req.Advice(wallet.MergeCommitments(commits[2], summaryCommit))
			assert.True(t, ok)
			assert.Equal(t, []byte("sig-2"), sig)
			_, ok = req.Advice(wallet.MergeCommitments(commits[1], summaryCommit))
			assert.False(t, ok, "missing signature adds no advice")
			return result, nil
		}
		var submitted miden.TransactionResult
		wallet.SubmitTransactionF = func(_ context.Context, res miden.TransactionResult) error {
			submitted = res
			return nil
		}

		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan ResultReply, 1)
		rt.Post(ProcessMultisigTx{
			Account:    accountID,
			TxRequest:  miden.NewTransactionRequest(nil, []byte("script")),
			TxSummary:  summary,
			Signatures: []miden.Signature{miden.Signature("sig-0"), nil, miden.Signature("sig-2")},
			Reply:      ch,
		})
		reply := <-ch
		require.NoError(t, reply.Err)
		assert.Equal(t, result, reply.Result)
		assert.Equal(t, result, submitted, "submit happens before the reply")
	})

	t.Run("signature vector length mismatch", func(t *testing.T) {
		wallet := newWallet()
		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan ResultReply, 1)
		rt.Post(ProcessMultisigTx{
			Account:    accountID,
			TxRequest:  miden.NewTransactionRequest(nil, nil),
			TxSummary:  summary,
			Signatures: []miden.Signature{miden.Signature("sig-0"), nil},
			Reply:      ch,
		})
		require.ErrorIs(t, (<-ch).Err, ErrNumSignaturesMismatch)
	})

	t.Run("submit failure propagates", func(t *testing.T) {
		wallet := newWallet()
		wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, _ *miden.TransactionRequest) (miden.TransactionResult, error) {
			return miden.TransactionResult("executed"), nil
		}
		submitErr := errors.New("chain rejected")
		wallet.SubmitTransactionF = func(_ context.Context, _ miden.TransactionResult) error { return submitErr }

		rt := testRuntime(t, wallet)
		require.NoError(t, rt.Start())
		defer rt.Stop()

		ch := make(chan ResultReply, 1)
		rt.Post(ProcessMultisigTx{
			Account:    accountID,
			TxRequest:  miden.NewTransactionRequest(nil, nil),
			TxSummary:  summary,
			Signatures: []miden.Signature{miden.Signature("s"), nil, nil},
			Reply:      ch,
		})
		require.ErrorIs(t, (<-ch).Err, submitErr)
	})
}

func TestRuntimeNilReplyChannel(t *testing.T) {
	wallet := fakewallet.New()
	rt := testRuntime(t, wallet)
	require.NoError(t, rt.Start())

	rt.Post(GetConsumableNotes{})

	ch := make(chan NotesReply, 1)
	rt.Post(GetConsumableNotes{Reply: ch})
	require.NoError(t, (<-ch).Err, "worker survives a message without reply channel")
	rt.Stop()
}
