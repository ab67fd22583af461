package miden

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/0xMiden/MultiSig/pkg/io"
)

// NoteIDSize is the length of a serialized NoteID in bytes.
const NoteIDSize = 32

// NoteID identifies an on-chain note.
type NoteID [NoteIDSize]byte

// NoteIDDecodeBytes attempts to decode the given bytes into a NoteID.
func NoteIDDecodeBytes(b []byte) (id NoteID, err error) {
	if len(b) != NoteIDSize {
		return id, fmt.Errorf("expected []byte of size %d got %d", NoteIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NoteIDDecodeString attempts to decode the given hex string into a NoteID.
func NoteIDDecodeString(s string) (id NoteID, err error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != NoteIDSize*2 {
		return id, fmt.Errorf("expected string size of %d got %d", NoteIDSize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	return NoteIDDecodeBytes(b)
}

// Bytes returns a byte slice representation of id.
func (id NoteID) Bytes() []byte {
	return id[:]
}

// String implements the stringer interface, returning the 0x-prefixed hex
// form of the identifier.
func (id NoteID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// EncodeBinary implements the io.Serializable interface.
func (id NoteID) EncodeBinary(bw *io.BinWriter) {
	bw.WriteBytes(id[:])
}

// DecodeBinary implements the io.Serializable interface.
func (id *NoteID) DecodeBinary(br *io.BinReader) {
	br.ReadBytes(id[:])
}

// NoteRelevance describes for which account a note is consumable.
type NoteRelevance uint8

const (
	// NoteRelevanceAny marks a note spendable by any account.
	NoteRelevanceAny NoteRelevance = iota
	// NoteRelevanceAccount marks a note spendable by one specific account.
	NoteRelevanceAccount
)

// ConsumableNote is an input note the wallet reports as available to spend,
// together with its exportable note file form.
type ConsumableNote struct {
	ID        NoteID
	FileBytes []byte
	Relevance NoteRelevance
	// Account is set when Relevance is NoteRelevanceAccount.
	Account AccountID
}

// ConsumableBy reports whether the note can be spent by the given account.
func (n *ConsumableNote) ConsumableBy(id AccountID) bool {
	return n.Relevance == NoteRelevanceAny || n.Account == id
}

// EncodeBinary implements the io.Serializable interface.
func (n *ConsumableNote) EncodeBinary(bw *io.BinWriter) {
	n.ID.EncodeBinary(bw)
	bw.WriteVarBytes(n.FileBytes)
	bw.WriteB(byte(n.Relevance))
	n.Account.EncodeBinary(bw)
}

// DecodeBinary implements the io.Serializable interface.
func (n *ConsumableNote) DecodeBinary(br *io.BinReader) {
	n.ID.DecodeBinary(br)
	n.FileBytes = br.ReadVarBytes()
	n.Relevance = NoteRelevance(br.ReadB())
	n.Account.DecodeBinary(br)
}
