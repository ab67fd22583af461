package apisrv

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/0xMiden/MultiSig/pkg/engine"
	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// Validation errors produced at the request edge.
var (
	errInvalidNetworkID  = errors.New("address network id does not match the configured one")
	errInvalidAddress    = errors.New("invalid account id address")
	errInvalidPubKey     = errors.New("invalid pub key commitment")
	errInvalidTxRequest  = errors.New("invalid transaction request")
	errInvalidSignature  = errors.New("invalid signature")
	errInvalidTxStatus   = errors.New("invalid multisig tx status")
	errInvalidTxID       = errors.New("invalid tx id")
	errMissingAccountKey = errors.New("multisig_account_address is required")
)

type createAccountRequest struct {
	Threshold     uint32   `json:"threshold"`
	Approvers     []string `json:"approvers"`
	PubKeyCommits []string `json:"pub_key_commits"`
}

type createAccountResponse struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type accountRequest struct {
	MultisigAccountAddress string `json:"multisig_account_address"`
}

type accountPayload struct {
	Address   string        `json:"address"`
	Kind      multisig.Kind `json:"kind"`
	Threshold uint32        `json:"threshold"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type accountDetailsResponse struct {
	MultisigAccount accountPayload `json:"multisig_account"`
}

type approverPayload struct {
	Address      string    `json:"address"`
	PubKeyCommit []byte    `json:"pub_key_commit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type approverListResponse struct {
	Approvers []approverPayload `json:"approvers"`
}

type proposeTxRequest struct {
	MultisigAccountAddress string `json:"multisig_account_address"`
	TxRequest              string `json:"tx_request"`
}

type proposeTxResponse struct {
	TxID      string `json:"tx_id"`
	TxSummary []byte `json:"tx_summary"`
}

type addSignatureRequest struct {
	TxID      string `json:"tx_id"`
	Approver  string `json:"approver"`
	Signature string `json:"signature"`
}

type addSignatureResponse struct {
	TxResult []byte `json:"tx_result"`
}

type txStatsResponse struct {
	TxStats txStatsPayload `json:"tx_stats"`
}

type txStatsPayload struct {
	Total        uint64 `json:"total"`
	LastMonth    uint64 `json:"last_month"`
	TotalSuccess uint64 `json:"total_success"`
}

type txListRequest struct {
	MultisigAccountAddress string  `json:"multisig_account_address"`
	TxStatusFilter         *string `json:"tx_status_filter"`
}

type txPayload struct {
	ID                     string          `json:"id"`
	MultisigAccountAddress string          `json:"multisig_account_address"`
	Status                 multisig.Status `json:"status"`
	TxRequest              []byte          `json:"tx_request"`
	TxSummary              []byte          `json:"tx_summary"`
	TxSummaryCommit        []byte          `json:"tx_summary_commit"`
	InputNoteIDs           []string        `json:"input_note_ids"`
	SignatureCount         uint32          `json:"signature_count,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

type txListResponse struct {
	Txs []txPayload `json:"txs"`
}

type consumableNotesRequest struct {
	Address *string `json:"address"`
}

type notePayload struct {
	NoteID          string `json:"note_id"`
	NoteIDFileBytes []byte `json:"note_id_file_bytes"`
}

type consumableNotesResponse struct {
	NoteIDs []notePayload `json:"note_ids"`
}

// parseAddress decodes a bech32 address and checks it against the
// configured network id.
func (s *Server) parseAddress(address string) (miden.AccountID, error) {
	networkID, id, err := miden.ParseAddress(address)
	if err != nil {
		return miden.AccountID{}, fmt.Errorf("%w: %v", errInvalidAddress, err)
	}
	if networkID != s.config.NetworkID {
		return miden.AccountID{}, fmt.Errorf("%w: got %q, expected %q",
			errInvalidNetworkID, networkID, s.config.NetworkID)
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in createAccountRequest
	if !s.decode(w, r, &in) {
		return
	}
	approvers := make([]miden.AccountID, len(in.Approvers))
	for i, address := range in.Approvers {
		id, err := s.parseAddress(address)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		approvers[i] = id
	}
	commits := make([]miden.Word, len(in.PubKeyCommits))
	for i, commit := range in.PubKeyCommits {
		b, err := base64.StdEncoding.DecodeString(commit)
		if err != nil {
			s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidPubKey, err))
			return
		}
		commits[i], err = miden.WordDecodeBytes(b)
		if err != nil {
			s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidPubKey, err))
			return
		}
	}
	req, err := engine.NewCreateMultisigAccountRequest(in.Threshold, approvers, commits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := s.engine.CreateMultisigAccount(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, createAccountResponse{
		Address:   account.Bech32(),
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	})
}

func (s *Server) handleAccountDetails(w http.ResponseWriter, r *http.Request) {
	var in accountRequest
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.parseAddress(in.MultisigAccountAddress)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	account, err := s.engine.GetMultisigAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accountDetailsResponse{
		MultisigAccount: accountPayload{
			Address:   account.Bech32(),
			Kind:      account.Kind,
			Threshold: account.Threshold,
			CreatedAt: account.CreatedAt,
			UpdatedAt: account.UpdatedAt,
		},
	})
}

func (s *Server) handleApproverList(w http.ResponseWriter, r *http.Request) {
	var in accountRequest
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.parseAddress(in.MultisigAccountAddress)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	approvers, err := s.engine.ListMultisigApprovers(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := approverListResponse{Approvers: make([]approverPayload, len(approvers))}
	for i, approver := range approvers {
		out.Approvers[i] = approverPayload{
			Address:      approver.Address.Bech32(s.config.NetworkID),
			PubKeyCommit: approver.PubKeyCommit.Bytes(),
			CreatedAt:    approver.CreatedAt,
			UpdatedAt:    approver.UpdatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProposeTx(w http.ResponseWriter, r *http.Request) {
	var in proposeTxRequest
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.parseAddress(in.MultisigAccountAddress)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	b, err := base64.StdEncoding.DecodeString(in.TxRequest)
	if err != nil {
		s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidTxRequest, err))
		return
	}
	txRequest, err := miden.ParseTransactionRequest(b)
	if err != nil {
		s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidTxRequest, err))
		return
	}
	proposed, err := s.engine.ProposeMultisigTx(r.Context(), id, txRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, proposeTxResponse{
		TxID:      proposed.ID.String(),
		TxSummary: proposed.Summary,
	})
}

func (s *Server) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	var in addSignatureRequest
	if !s.decode(w, r, &in) {
		return
	}
	txID, err := multisig.ParseTxID(in.TxID)
	if err != nil {
		s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidTxID, err))
		return
	}
	approver, err := s.parseAddress(in.Approver)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	sig, err := base64.StdEncoding.DecodeString(in.Signature)
	if err != nil {
		s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidSignature, err))
		return
	}
	result, err := s.engine.AddSignature(r.Context(), txID, approver, miden.Signature(sig))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, addSignatureResponse{TxResult: result})
}

func (s *Server) handleTxStats(w http.ResponseWriter, r *http.Request) {
	var in accountRequest
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.parseAddress(in.MultisigAccountAddress)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	stats, err := s.engine.GetMultisigTxStats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txStatsResponse{
		TxStats: txStatsPayload{
			Total:        stats.Total,
			LastMonth:    stats.LastMonth,
			TotalSuccess: stats.TotalSuccess,
		},
	})
}

func (s *Server) handleTxList(w http.ResponseWriter, r *http.Request) {
	var in txListRequest
	if !s.decode(w, r, &in) {
		return
	}
	if in.MultisigAccountAddress == "" {
		s.badRequest(w, r, errMissingAccountKey)
		return
	}
	id, err := s.parseAddress(in.MultisigAccountAddress)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var filter *multisig.Status
	if in.TxStatusFilter != nil {
		status, err := multisig.ParseStatus(*in.TxStatusFilter)
		if err != nil {
			s.badRequest(w, r, fmt.Errorf("%w: %v", errInvalidTxStatus, err))
			return
		}
		filter = &status
	}
	txs, err := s.engine.ListMultisigTx(r.Context(), id, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := txListResponse{Txs: make([]txPayload, len(txs))}
	for i := range txs {
		payload, err := s.txPayload(&txs[i])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.Txs[i] = payload
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) txPayload(tx *multisig.Tx) (txPayload, error) {
	noteIDs, err := tx.InputNoteIDs()
	if err != nil {
		return txPayload{}, fmt.Errorf("stored tx request is unreadable: %w", err)
	}
	notes := make([]string, len(noteIDs))
	for i, id := range noteIDs {
		notes[i] = id.String()
	}
	return txPayload{
		ID:                     tx.ID.String(),
		MultisigAccountAddress: tx.AccountAddress.Bech32(tx.NetworkID),
		Status:                 tx.Status,
		TxRequest:              tx.Request,
		TxSummary:              tx.Summary,
		TxSummaryCommit:        tx.SummaryCommit.Bytes(),
		InputNoteIDs:           notes,
		SignatureCount:         tx.SignatureCount,
		CreatedAt:              tx.CreatedAt,
		UpdatedAt:              tx.UpdatedAt,
	}, nil
}

func (s *Server) handleConsumableNotes(w http.ResponseWriter, r *http.Request) {
	var in consumableNotesRequest
	if !s.decode(w, r, &in) {
		return
	}
	var filter *miden.AccountID
	if in.Address != nil {
		id, err := s.parseAddress(*in.Address)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		filter = &id
	}
	notes, err := s.engine.GetConsumableNotes(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := consumableNotesResponse{NoteIDs: make([]notePayload, len(notes))}
	for i, note := range notes {
		out.NoteIDs[i] = notePayload{
			NoteID:          note.ID.String(),
			NoteIDFileBytes: note.FileBytes,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}
