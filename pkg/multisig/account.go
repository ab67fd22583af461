package multisig

import (
	"encoding/json"
	"fmt"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// Kind is the on-chain storage mode of a multisig account.
type Kind uint8

const (
	// KindPublic marks an account whose state is stored on-chain.
	KindPublic Kind = iota
	// KindPrivate marks an account that keeps state off-chain and
	// publishes commitments only.
	KindPrivate
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "public":
		return KindPublic, nil
	case "private":
		return KindPrivate, nil
	default:
		return 0, fmt.Errorf("unknown account kind %q", s)
	}
}

// String implements the stringer interface.
func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindPrivate:
		return "private"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (k Kind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindPublic, KindPrivate:
		return json.Marshal(k.String())
	default:
		return nil, fmt.Errorf("unknown account kind %d", uint8(k))
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Approver is one member of a multisig account's signer set.
type Approver struct {
	Address      miden.AccountID
	PubKeyCommit miden.Word
	Timestamps
}

// Account is a coordinated multisig account together with its ordered
// approver set. Values handed to the store are built via NewAccount and the
// builder's attachment steps, which enforce that approver addresses and
// public key commitments arrive as parallel sequences compatible with the
// threshold.
type Account struct {
	Address   miden.AccountID
	NetworkID miden.NetworkID
	Kind      Kind
	Threshold uint32
	Approvers []Approver
	Timestamps
}

// Bech32 returns the account's printable address.
func (a *Account) Bech32() string {
	return a.Address.Bech32(a.NetworkID)
}

// AccountBuilder assembles an Account step by step: approver addresses
// first, their public key commitments second. Each step validates the
// attached sequence, only the final product is a usable Account.
type AccountBuilder struct {
	account   Account
	approvers []miden.AccountID
}

// NewAccount starts building an account with the given identity, kind and
// signature threshold.
func NewAccount(address miden.AccountID, networkID miden.NetworkID, kind Kind, threshold uint32) *AccountBuilder {
	return &AccountBuilder{
		account: Account{
			Address:   address,
			NetworkID: networkID,
			Kind:      kind,
			Threshold: threshold,
		},
	}
}

// WithApprovers attaches the ordered approver addresses. The set must be
// non-empty, free of duplicates and large enough to ever reach the
// threshold.
func (b *AccountBuilder) WithApprovers(addrs []miden.AccountID) (*AccountBuilder, error) {
	if b.account.Threshold == 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no approvers")
	}
	if uint64(len(addrs)) < uint64(b.account.Threshold) {
		return nil, fmt.Errorf("%d approvers cannot meet threshold %d", len(addrs), b.account.Threshold)
	}
	seen := make(map[miden.AccountID]struct{}, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			return nil, fmt.Errorf("duplicate approver %s", addr)
		}
		seen[addr] = struct{}{}
	}
	b.approvers = addrs
	return b, nil
}

// WithPubKeyCommits attaches the public key commitments matching the
// previously attached approver addresses position by position and returns
// the completed account.
func (b *AccountBuilder) WithPubKeyCommits(commits []miden.Word) (*Account, error) {
	if b.approvers == nil {
		return nil, fmt.Errorf("approvers not attached")
	}
	if len(commits) != len(b.approvers) {
		return nil, fmt.Errorf("got %d pub key commitments for %d approvers", len(commits), len(b.approvers))
	}
	account := b.account
	account.Approvers = make([]Approver, len(b.approvers))
	for i, addr := range b.approvers {
		account.Approvers[i] = Approver{Address: addr, PubKeyCommit: commits[i]}
	}
	return &account, nil
}
