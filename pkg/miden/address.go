package miden

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// NetworkID is the human-readable part tagging bech32-printed account
// addresses with the network they belong to (e.g. "mtst").
type NetworkID string

// ErrInvalidNetworkID is returned when a network id HRP is malformed.
var ErrInvalidNetworkID = errors.New("invalid network id")

// NewNetworkID validates the given HRP and returns it as a NetworkID.
func NewNetworkID(hrp string) (NetworkID, error) {
	if len(hrp) == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidNetworkID)
	}
	for _, c := range hrp {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidNetworkID, hrp)
		}
	}
	return NetworkID(hrp), nil
}

// String implements the stringer interface.
func (n NetworkID) String() string {
	return string(n)
}

// Bech32 returns the bech32 printable form of the account id tagged with the
// given network id. It panics on an invalid network id, use NewNetworkID to
// construct validated ones.
func (id AccountID) Bech32(networkID NetworkID) string {
	grouped, err := bech32.ConvertBits(id.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	s, err := bech32.Encode(networkID.String(), grouped)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseAddress parses a bech32 account address back into its network id and
// account id.
func ParseAddress(address string) (NetworkID, AccountID, error) {
	hrp, grouped, err := bech32.Decode(address)
	if err != nil {
		return "", AccountID{}, fmt.Errorf("failed to decode address: %w", err)
	}
	networkID, err := NewNetworkID(hrp)
	if err != nil {
		return "", AccountID{}, err
	}
	b, err := bech32.ConvertBits(grouped, 5, 8, false)
	if err != nil {
		return "", AccountID{}, fmt.Errorf("failed to decode address: %w", err)
	}
	id, err := AccountIDDecodeBytes(b)
	if err != nil {
		return "", AccountID{}, fmt.Errorf("failed to decode address: %w", err)
	}
	return networkID, id, nil
}
