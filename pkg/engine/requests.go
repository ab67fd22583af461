package engine

import (
	"github.com/0xMiden/MultiSig/pkg/miden"
)

// CreateMultisigAccountRequest is a validated account creation request:
// it can only be obtained through NewCreateMultisigAccountRequest, so a
// non-nil request always carries a consistent approver set.
type CreateMultisigAccountRequest struct {
	threshold     uint32
	approvers     []miden.AccountID
	pubKeyCommits []miden.Word
}

// NewCreateMultisigAccountRequest validates the account shape: at least one
// approver, one public key commitment per approver and a positive threshold
// the approver set can meet.
func NewCreateMultisigAccountRequest(threshold uint32, approvers []miden.AccountID, pubKeyCommits []miden.Word) (*CreateMultisigAccountRequest, error) {
	if len(approvers) == 0 {
		return nil, wrapKind(KindValidation, ErrEmptyApprovers)
	}
	if len(pubKeyCommits) == 0 {
		return nil, wrapKind(KindValidation, ErrEmptyPubKeyCommits)
	}
	if len(approvers) != len(pubKeyCommits) {
		return nil, wrapKind(KindValidation, ErrLengthMismatch)
	}
	if threshold == 0 {
		return nil, wrapKind(KindValidation, ErrZeroThreshold)
	}
	if uint64(threshold) > uint64(len(approvers)) {
		return nil, wrapKind(KindValidation, ErrExcessThreshold)
	}
	return &CreateMultisigAccountRequest{
		threshold:     threshold,
		approvers:     approvers,
		pubKeyCommits: pubKeyCommits,
	}, nil
}

// Threshold returns the number of approvals required to execute a
// transaction.
func (r *CreateMultisigAccountRequest) Threshold() uint32 {
	return r.threshold
}

// Approvers returns the ordered approver addresses.
func (r *CreateMultisigAccountRequest) Approvers() []miden.AccountID {
	return r.approvers
}

// PubKeyCommits returns the approvers' public key commitments, positionally
// matching Approvers.
func (r *CreateMultisigAccountRequest) PubKeyCommits() []miden.Word {
	return r.pubKeyCommits
}
