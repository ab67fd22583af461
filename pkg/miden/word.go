// Package miden provides the value types and the client boundary of the
// wallet SDK the coordinator drives. The Client interface is not safe for
// concurrent use, all of its methods must be called from a single goroutine
// (see engine/runtime).
package miden

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xMiden/MultiSig/pkg/io"
)

// Felt is a base field element.
type Felt uint64

// WordLength is the number of field elements in a Word.
const WordLength = 4

// WordSize is the length of a serialized Word in bytes.
const WordSize = WordLength * 8

// Word is a group of four field elements, the unit of account storage and
// commitment values. Words are comparable and usable as map keys.
type Word [WordLength]Felt

// NewWord returns a Word built from the given elements.
func NewWord(a, b, c, d Felt) Word {
	return Word{a, b, c, d}
}

// IndexWord returns the word(i, 0, 0, 0) key form used by slot maps keyed by
// a small index.
func IndexWord(i uint32) Word {
	return Word{Felt(i), 0, 0, 0}
}

// WordDecodeBytes attempts to decode the given bytes into a Word.
func WordDecodeBytes(b []byte) (w Word, err error) {
	if len(b) != WordSize {
		return w, fmt.Errorf("expected []byte of size %d got %d", WordSize, len(b))
	}
	for i := 0; i < WordLength; i++ {
		w[i] = Felt(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return w, nil
}

// WordDecodeString attempts to decode the given hex string into a Word.
func WordDecodeString(s string) (w Word, err error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != WordSize*2 {
		return w, fmt.Errorf("expected string size of %d got %d", WordSize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return w, err
	}
	return WordDecodeBytes(b)
}

// Bytes returns the canonical little-endian byte representation of w.
func (w Word) Bytes() []byte {
	b := make([]byte, WordSize)
	for i := 0; i < WordLength; i++ {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(w[i]))
	}
	return b
}

// Equals returns true if both Word values are the same.
func (w Word) Equals(other Word) bool {
	return w == other
}

// String implements the stringer interface.
func (w Word) String() string {
	return hex.EncodeToString(w.Bytes())
}

// EncodeBinary implements the io.Serializable interface.
func (w Word) EncodeBinary(bw *io.BinWriter) {
	for i := 0; i < WordLength; i++ {
		bw.WriteU64LE(uint64(w[i]))
	}
}

// DecodeBinary implements the io.Serializable interface.
func (w *Word) DecodeBinary(br *io.BinReader) {
	for i := 0; i < WordLength; i++ {
		w[i] = Felt(br.ReadU64LE())
	}
}

// MarshalJSON implements the json marshaller interface.
func (w Word) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + w.String())
}

// UnmarshalJSON implements the json unmarshaller interface.
func (w *Word) UnmarshalJSON(data []byte) (err error) {
	var js string
	if err = json.Unmarshal(data, &js); err != nil {
		return err
	}
	*w, err = WordDecodeString(js)
	return err
}
