package apisrv

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/0xMiden/MultiSig/internal/fakestore"
	"github.com/0xMiden/MultiSig/internal/fakewallet"
	"github.com/0xMiden/MultiSig/pkg/engine"
	"github.com/0xMiden/MultiSig/pkg/engine/runtime"
	"github.com/0xMiden/MultiSig/pkg/miden"
)

const testNetworkID = miden.NetworkID("mtst")

// testWallet hands out sequenced account ids, remembers created accounts
// and executes for real once signature advice is attached.
func testWallet(summary miden.TransactionSummary, result miden.TransactionResult) *fakewallet.Wallet {
	wallet := fakewallet.New()
	accounts := make(map[miden.AccountID]*miden.Account)
	var seq byte
	wallet.NewMultisigAccountF = func(_ context.Context, threshold uint32, commits []miden.Word) (*miden.Account, error) {
		seq++
		var id miden.AccountID
		id[0] = seq
		id[1] = 0xAC
		account := fakewallet.NewAccount(id, threshold, commits)
		accounts[id] = account
		return account, nil
	}
	wallet.AccountF = func(_ context.Context, id miden.AccountID) (*miden.Account, error) {
		if account, ok := accounts[id]; ok {
			return account, nil
		}
		return nil, miden.ErrAccountNotFound
	}
	wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error) {
		if req.AdviceLen() == 0 {
			return nil, &miden.UnauthorizedError{Summary: summary}
		}
		return result, nil
	}
	return wallet
}

func testServer(t *testing.T, wallet *fakewallet.Wallet) *Server {
	e := engine.New(engine.Config{
		NetworkID: testNetworkID,
		Store:     fakestore.New(),
		Runtime: runtime.Config{
			Client: miden.ClientConfig{NodeURL: "fake://node"},
			Dial:   func(_ context.Context, _ miden.ClientConfig) (miden.Client, error) { return wallet, nil },
		},
		Log: zaptest.NewLogger(t),
	})
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Shutdown)

	errCh := make(chan error, 1)
	s := New(Config{
		Listen:    "127.0.0.1:0",
		NetworkID: testNetworkID,
		Log:       zaptest.NewLogger(t),
	}, e, errCh)
	s.Start()
	t.Cleanup(s.Shutdown)
	select {
	case err := <-errCh:
		t.Fatalf("api server failed to start: %v", err)
	default:
	}
	return s
}

func (s *Server) url(path string) string {
	return "http://" + s.Addr + path
}

func doPost(t *testing.T, s *Server, path string, body any) (int, map[string]json.RawMessage) {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.url(path), "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func unmarshal[T any](t *testing.T, raw json.RawMessage) T {
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func testApprover(b byte) miden.AccountID {
	var id miden.AccountID
	id[0] = b
	id[1] = 0xEE
	return id
}

func createAccountPayload(threshold uint32, approvers ...miden.AccountID) createAccountRequest {
	req := createAccountRequest{Threshold: threshold}
	for i, approver := range approvers {
		req.Approvers = append(req.Approvers, approver.Bech32(testNetworkID))
		req.PubKeyCommits = append(req.PubKeyCommits,
			base64.StdEncoding.EncodeToString(miden.IndexWord(uint32(i+100)).Bytes()))
	}
	return req
}

func TestHealth(t *testing.T) {
	s := testServer(t, testWallet(nil, nil))

	resp, err := http.Get(s.url("/health"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(s.url("/health"), "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCreateAccountAndReads(t *testing.T) {
	s := testServer(t, testWallet(nil, nil))
	alice, bob, charlie := testApprover(1), testApprover(2), testApprover(3)

	status, body := doPost(t, s, "/api/v1/multisig-account/create",
		createAccountPayload(2, alice, bob, charlie))
	require.Equal(t, http.StatusOK, status)
	address := unmarshal[string](t, body["address"])

	t.Run("details", func(t *testing.T) {
		status, body := doPost(t, s, "/api/v1/multisig-account/details",
			accountRequest{MultisigAccountAddress: address})
		require.Equal(t, http.StatusOK, status)
		account := unmarshal[accountPayload](t, body["multisig_account"])
		assert.Equal(t, address, account.Address)
		assert.Equal(t, "public", account.Kind.String())
		assert.EqualValues(t, 2, account.Threshold)
		assert.False(t, account.CreatedAt.IsZero())
	})

	t.Run("approver list keeps insertion order", func(t *testing.T) {
		status, body := doPost(t, s, "/api/v1/multisig-account/approver/list",
			accountRequest{MultisigAccountAddress: address})
		require.Equal(t, http.StatusOK, status)
		approvers := unmarshal[[]approverPayload](t, body["approvers"])
		require.Len(t, approvers, 3)
		for i, approver := range []miden.AccountID{alice, bob, charlie} {
			assert.Equal(t, approver.Bech32(testNetworkID), approvers[i].Address)
			assert.Equal(t, miden.IndexWord(uint32(i+100)).Bytes(), approvers[i].PubKeyCommit)
		}
	})

	t.Run("unknown account is 404", func(t *testing.T) {
		status, _ := doPost(t, s, "/api/v1/multisig-account/details",
			accountRequest{MultisigAccountAddress: testApprover(0x99).Bech32(testNetworkID)})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("foreign network id is 400", func(t *testing.T) {
		status, body := doPost(t, s, "/api/v1/multisig-account/details",
			accountRequest{MultisigAccountAddress: testApprover(1).Bech32("mm")})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, unmarshal[string](t, body["error"]), "network id")
	})

	t.Run("malformed commitment is 400", func(t *testing.T) {
		req := createAccountPayload(1, testApprover(9))
		req.PubKeyCommits = []string{"AAAA"} // 3 bytes, not a word
		status, body := doPost(t, s, "/api/v1/multisig-account/create", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, unmarshal[string](t, body["error"]), "pub key commitment")
	})

	t.Run("excess threshold is 400", func(t *testing.T) {
		status, _ := doPost(t, s, "/api/v1/multisig-account/create",
			createAccountPayload(3, testApprover(11), testApprover(12)))
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestSignatureFlow(t *testing.T) {
	summary := miden.NewTransactionSummary(miden.NewWord(5, 6, 7, 8), []byte("sign me"))
	result := miden.TransactionResult("chain result")
	s := testServer(t, testWallet(summary, result))
	alice, bob, charlie := testApprover(1), testApprover(2), testApprover(3)

	status, body := doPost(t, s, "/api/v1/multisig-account/create",
		createAccountPayload(2, alice, bob, charlie))
	require.Equal(t, http.StatusOK, status)
	address := unmarshal[string](t, body["address"])

	var note miden.NoteID
	note[0] = 0x4E
	txRequest := miden.NewTransactionRequest([]miden.NoteID{note}, []byte("script"))
	status, body = doPost(t, s, "/api/v1/multisig-tx/propose", proposeTxRequest{
		MultisigAccountAddress: address,
		TxRequest:              base64.StdEncoding.EncodeToString(txRequest.Bytes()),
	})
	require.Equal(t, http.StatusOK, status)
	txID := unmarshal[string](t, body["tx_id"])
	assert.Equal(t, []byte(summary), unmarshal[[]byte](t, body["tx_summary"]))

	sign := func(approver miden.AccountID, sig string) (int, map[string]json.RawMessage) {
		return doPost(t, s, "/api/v1/signature/add", addSignatureRequest{
			TxID:      txID,
			Approver:  approver.Bech32(testNetworkID),
			Signature: base64.StdEncoding.EncodeToString([]byte(sig)),
		})
	}

	t.Run("pending tx row omits signature_count", func(t *testing.T) {
		status, body := doPost(t, s, "/api/v1/multisig-tx/list",
			txListRequest{MultisigAccountAddress: address})
		require.Equal(t, http.StatusOK, status)
		var rows []map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body["txs"], &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "pending", unmarshal[string](t, rows[0]["status"]))
		assert.NotContains(t, rows[0], "signature_count")
		assert.Equal(t, []string{note.String()}, unmarshal[[]string](t, rows[0]["input_note_ids"]))
	})

	t.Run("below threshold returns null result", func(t *testing.T) {
		status, body := sign(alice, "sig-alice")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "null", string(body["tx_result"]))
	})

	t.Run("signer from outside the account is 400", func(t *testing.T) {
		status, body := sign(testApprover(4), "sig-dave")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, unmarshal[string](t, body["error"]), "approver not permitted")
	})

	t.Run("threshold signature returns the result", func(t *testing.T) {
		status, body := sign(charlie, "sig-charlie")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []byte(result), unmarshal[[]byte](t, body["tx_result"]))
	})

	t.Run("late signer hits the terminal state machine", func(t *testing.T) {
		status, _ := sign(bob, "sig-bob")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("executed tx row", func(t *testing.T) {
		for _, tc := range []struct {
			filter string
			rows   int
		}{
			{"success", 1},
			{"pending", 0},
			{"failure", 0},
		} {
			filter := tc.filter
			status, body := doPost(t, s, "/api/v1/multisig-tx/list",
				txListRequest{MultisigAccountAddress: address, TxStatusFilter: &filter})
			require.Equal(t, http.StatusOK, status)
			rows := unmarshal[[]txPayload](t, body["txs"])
			require.Len(t, rows, tc.rows, "filter %q", filter)
			if tc.rows > 0 {
				assert.Equal(t, txID, rows[0].ID)
				assert.EqualValues(t, 2, rows[0].SignatureCount)
			}
		}
	})

	t.Run("unknown status filter is 400", func(t *testing.T) {
		filter := "limbo"
		status, _ := doPost(t, s, "/api/v1/multisig-tx/list",
			txListRequest{MultisigAccountAddress: address, TxStatusFilter: &filter})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("stats", func(t *testing.T) {
		status, body := doPost(t, s, "/api/v1/multisig-tx/stats",
			accountRequest{MultisigAccountAddress: address})
		require.Equal(t, http.StatusOK, status)
		stats := unmarshal[txStatsPayload](t, body["tx_stats"])
		assert.Equal(t, txStatsPayload{Total: 1, LastMonth: 1, TotalSuccess: 1}, stats)
	})
}

func TestProcessFailureIs500(t *testing.T) {
	summary := miden.NewTransactionSummary(miden.NewWord(1, 1, 2, 3), []byte("sign me"))
	wallet := testWallet(summary, nil)
	wallet.ExecuteTransactionF = func(_ context.Context, _ miden.AccountID, req *miden.TransactionRequest) (miden.TransactionResult, error) {
		if req.AdviceLen() == 0 {
			return nil, &miden.UnauthorizedError{Summary: summary}
		}
		return nil, fmt.Errorf("proof rejected")
	}
	s := testServer(t, wallet)
	alice := testApprover(1)

	status, body := doPost(t, s, "/api/v1/multisig-account/create", createAccountPayload(1, alice))
	require.Equal(t, http.StatusOK, status)
	address := unmarshal[string](t, body["address"])

	status, body = doPost(t, s, "/api/v1/multisig-tx/propose", proposeTxRequest{
		MultisigAccountAddress: address,
		TxRequest:              base64.StdEncoding.EncodeToString(miden.NewTransactionRequest(nil, []byte("s")).Bytes()),
	})
	require.Equal(t, http.StatusOK, status)
	txID := unmarshal[string](t, body["tx_id"])

	status, body = doPost(t, s, "/api/v1/signature/add", addSignatureRequest{
		TxID:      txID,
		Approver:  alice.Bech32(testNetworkID),
		Signature: base64.StdEncoding.EncodeToString([]byte("sig")),
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, unmarshal[string](t, body["error"]), "proof rejected")

	filter := "failure"
	status, listBody := doPost(t, s, "/api/v1/multisig-tx/list",
		txListRequest{MultisigAccountAddress: address, TxStatusFilter: &filter})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, unmarshal[[]txPayload](t, listBody["txs"]), 1)
}

func TestConsumableNotes(t *testing.T) {
	wallet := testWallet(nil, nil)
	var note miden.ConsumableNote
	note.ID[0] = 0x11
	note.FileBytes = []byte("note file")
	wallet.ConsumableNotesF = func(_ context.Context, id *miden.AccountID) ([]miden.ConsumableNote, error) {
		return []miden.ConsumableNote{note}, nil
	}
	s := testServer(t, wallet)

	status, body := doPost(t, s, "/api/v1/consumable-notes/list", consumableNotesRequest{})
	require.Equal(t, http.StatusOK, status)
	notes := unmarshal[[]notePayload](t, body["note_ids"])
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID.String(), notes[0].NoteID)
	assert.Equal(t, note.FileBytes, notes[0].NoteIDFileBytes)
}

func TestMalformedBody(t *testing.T) {
	s := testServer(t, testWallet(nil, nil))

	resp, err := http.Post(s.url("/api/v1/multisig-account/details"), "application/json",
		bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
