package multisig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

func testNetworkID(t *testing.T) miden.NetworkID {
	n, err := miden.NewNetworkID("mtst")
	require.NoError(t, err)
	return n
}

func testApprovers(n int) ([]miden.AccountID, []miden.Word) {
	addrs := make([]miden.AccountID, n)
	commits := make([]miden.Word, n)
	for i := range addrs {
		addrs[i][0] = byte(i + 1)
		commits[i] = miden.NewWord(miden.Felt(i+1), 0, 0, 0)
	}
	return addrs, commits
}

func TestAccountBuilder(t *testing.T) {
	var address miden.AccountID
	address[0] = 0xAC
	networkID := testNetworkID(t)
	addrs, commits := testApprovers(3)

	account, err := NewAccount(address, networkID, KindPublic, 2).
		WithApprovers(addrs)
	require.NoError(t, err)
	built, err := account.WithPubKeyCommits(commits)
	require.NoError(t, err)

	assert.Equal(t, address, built.Address)
	assert.Equal(t, networkID, built.NetworkID)
	assert.EqualValues(t, 2, built.Threshold)
	require.Len(t, built.Approvers, 3)
	for i, approver := range built.Approvers {
		assert.Equal(t, addrs[i], approver.Address)
		assert.Equal(t, commits[i], approver.PubKeyCommit)
	}
}

func TestAccountBuilderRefusals(t *testing.T) {
	var address miden.AccountID
	networkID := testNetworkID(t)
	addrs, commits := testApprovers(3)

	t.Run("zero threshold", func(t *testing.T) {
		_, err := NewAccount(address, networkID, KindPublic, 0).WithApprovers(addrs)
		require.Error(t, err)
	})
	t.Run("no approvers", func(t *testing.T) {
		_, err := NewAccount(address, networkID, KindPublic, 1).WithApprovers(nil)
		require.Error(t, err)
	})
	t.Run("threshold unreachable", func(t *testing.T) {
		_, err := NewAccount(address, networkID, KindPublic, 4).WithApprovers(addrs)
		require.Error(t, err)
	})
	t.Run("duplicate approver", func(t *testing.T) {
		dup := []miden.AccountID{addrs[0], addrs[1], addrs[0]}
		_, err := NewAccount(address, networkID, KindPublic, 2).WithApprovers(dup)
		require.Error(t, err)
	})
	t.Run("commitment count mismatch", func(t *testing.T) {
		b, err := NewAccount(address, networkID, KindPublic, 2).WithApprovers(addrs)
		require.NoError(t, err)
		_, err = b.WithPubKeyCommits(commits[:2])
		require.Error(t, err)
	})
	t.Run("approvers not attached", func(t *testing.T) {
		b := NewAccount(address, networkID, KindPublic, 2)
		_, err := b.WithPubKeyCommits(commits)
		require.Error(t, err)
	})
}

func TestKindCodec(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		s    string
	}{
		{KindPublic, "public"},
		{KindPrivate, "private"},
	} {
		assert.Equal(t, tc.s, tc.kind.String())

		parsed, err := ParseKind(tc.s)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, parsed)

		data, err := json.Marshal(tc.kind)
		require.NoError(t, err)
		assert.Equal(t, `"`+tc.s+`"`, string(data))

		var decoded Kind
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, tc.kind, decoded)
	}

	_, err := ParseKind("ephemeral")
	require.Error(t, err)
	_, err = json.Marshal(Kind(42))
	require.Error(t, err)
}
