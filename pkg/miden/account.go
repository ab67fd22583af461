package miden

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/0xMiden/MultiSig/pkg/io"
)

// AccountIDSize is the length of a serialized AccountID in bytes.
const AccountIDSize = 15

// AccountID is an on-chain account identifier.
type AccountID [AccountIDSize]byte

// AccountIDDecodeBytes attempts to decode the given bytes into an AccountID.
func AccountIDDecodeBytes(b []byte) (id AccountID, err error) {
	if len(b) != AccountIDSize {
		return id, fmt.Errorf("expected []byte of size %d got %d", AccountIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// AccountIDDecodeString attempts to decode the given hex string into an
// AccountID.
func AccountIDDecodeString(s string) (id AccountID, err error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != AccountIDSize*2 {
		return id, fmt.Errorf("expected string size of %d got %d", AccountIDSize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	return AccountIDDecodeBytes(b)
}

// Bytes returns a byte slice representation of id.
func (id AccountID) Bytes() []byte {
	return id[:]
}

// Equals returns true if both AccountID values are the same.
func (id AccountID) Equals(other AccountID) bool {
	return id == other
}

// String implements the stringer interface, returning the 0x-prefixed hex
// form of the identifier.
func (id AccountID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// EncodeBinary implements the io.Serializable interface.
func (id AccountID) EncodeBinary(bw *io.BinWriter) {
	bw.WriteBytes(id[:])
}

// DecodeBinary implements the io.Serializable interface.
func (id *AccountID) DecodeBinary(br *io.BinReader) {
	br.ReadBytes(id[:])
}

// Multisig account state layout: the config slot word carries the approver
// count at NumApproversIndex, the pub keys slot is a map from word(i,0,0,0)
// to the i-th approver's public key commitment.
const (
	ConfigStorageSlot  = 0
	PubKeysStorageSlot = 1
	NumApproversIndex  = 1
)

// AccountStorage is the indexed storage of an on-chain account. Plain slots
// hold a single word, map slots hold a word-keyed map.
type AccountStorage struct {
	slots map[uint8]Word
	maps  map[uint8]map[Word]Word
}

// NewAccountStorage returns empty account storage.
func NewAccountStorage() *AccountStorage {
	return &AccountStorage{
		slots: make(map[uint8]Word),
		maps:  make(map[uint8]map[Word]Word),
	}
}

// Slot returns the word stored at the given plain slot.
func (s *AccountStorage) Slot(index uint8) Word {
	return s.slots[index]
}

// SetSlot stores a word at the given plain slot.
func (s *AccountStorage) SetSlot(index uint8, w Word) {
	s.slots[index] = w
}

// MapItem looks up a key in the map stored at the given slot.
func (s *AccountStorage) MapItem(index uint8, key Word) (Word, bool) {
	m, ok := s.maps[index]
	if !ok {
		return Word{}, false
	}
	w, ok := m[key]
	return w, ok
}

// SetMapItem stores a key/value pair in the map at the given slot.
func (s *AccountStorage) SetMapItem(index uint8, key, value Word) {
	m, ok := s.maps[index]
	if !ok {
		m = make(map[Word]Word)
		s.maps[index] = m
	}
	m[key] = value
}

// EncodeBinary implements the io.Serializable interface.
func (s *AccountStorage) EncodeBinary(bw *io.BinWriter) {
	bw.WriteVarUint(uint64(len(s.slots)))
	for _, index := range sortedKeys(s.slots) {
		bw.WriteB(index)
		s.slots[index].EncodeBinary(bw)
	}
	bw.WriteVarUint(uint64(len(s.maps)))
	for _, index := range sortedKeys(s.maps) {
		bw.WriteB(index)
		m := s.maps[index]
		bw.WriteVarUint(uint64(len(m)))
		for _, key := range sortedWords(m) {
			key.EncodeBinary(bw)
			m[key].EncodeBinary(bw)
		}
	}
}

// DecodeBinary implements the io.Serializable interface.
func (s *AccountStorage) DecodeBinary(br *io.BinReader) {
	s.slots = make(map[uint8]Word)
	s.maps = make(map[uint8]map[Word]Word)

	for i, n := uint64(0), br.ReadVarUint(); i < n && br.Err == nil; i++ {
		index := br.ReadB()
		var w Word
		w.DecodeBinary(br)
		s.slots[index] = w
	}
	for i, n := uint64(0), br.ReadVarUint(); i < n && br.Err == nil; i++ {
		index := br.ReadB()
		m := make(map[Word]Word)
		for j, l := uint64(0), br.ReadVarUint(); j < l && br.Err == nil; j++ {
			var key, value Word
			key.DecodeBinary(br)
			value.DecodeBinary(br)
			m[key] = value
		}
		s.maps[index] = m
	}
}

// Account is the SDK view of an on-chain account.
type Account struct {
	ID      AccountID
	Storage *AccountStorage
}

// NumApprovers reads the approver count from the account's config slot.
func (a *Account) NumApprovers() (uint32, error) {
	felt := a.Storage.Slot(ConfigStorageSlot)[NumApproversIndex]
	if uint64(felt) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("approver count %d out of range", uint64(felt))
	}
	return uint32(felt), nil
}

// PubKeyCommit reads the i-th approver's public key commitment from the
// account's pub keys slot map.
func (a *Account) PubKeyCommit(i uint32) (Word, error) {
	w, ok := a.Storage.MapItem(PubKeysStorageSlot, IndexWord(i))
	if !ok {
		return Word{}, fmt.Errorf("no pub key commitment at index %d", i)
	}
	return w, nil
}

// EncodeBinary implements the io.Serializable interface.
func (a *Account) EncodeBinary(bw *io.BinWriter) {
	a.ID.EncodeBinary(bw)
	a.Storage.EncodeBinary(bw)
}

// DecodeBinary implements the io.Serializable interface.
func (a *Account) DecodeBinary(br *io.BinReader) {
	a.ID.DecodeBinary(br)
	a.Storage = NewAccountStorage()
	a.Storage.DecodeBinary(br)
}
