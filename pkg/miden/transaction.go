package miden

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/0xMiden/MultiSig/pkg/io"
)

// Signature is an approver's signature over a transaction summary
// commitment, opaque to the coordinator.
type Signature []byte

// TransactionRequest is a serialized intent to execute a transaction: the
// input notes it consumes, the transaction script and the advice map fed to
// the proving circuit.
type TransactionRequest struct {
	inputNotes []NoteID
	script     []byte
	advice     map[Word][]byte
}

// NewTransactionRequest returns a request spending the given notes with the
// given script and an empty advice map.
func NewTransactionRequest(inputNotes []NoteID, script []byte) *TransactionRequest {
	return &TransactionRequest{
		inputNotes: inputNotes,
		script:     script,
		advice:     make(map[Word][]byte),
	}
}

// ParseTransactionRequest deserializes a transaction request from its binary
// form. The whole input must be consumed.
func ParseTransactionRequest(b []byte) (*TransactionRequest, error) {
	rd := bytes.NewReader(b)
	br := io.NewBinReaderFromIO(rd)
	req := new(TransactionRequest)
	req.DecodeBinary(br)
	if br.Err != nil {
		return nil, fmt.Errorf("failed to decode transaction request: %w", br.Err)
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("failed to decode transaction request: %d unconsumed bytes", rd.Len())
	}
	return req, nil
}

// InputNoteIDs returns the ids of the notes the request consumes.
func (t *TransactionRequest) InputNoteIDs() []NoteID {
	return t.inputNotes
}

// Script returns the transaction script bytes.
func (t *TransactionRequest) Script() []byte {
	return t.script
}

// InsertAdvice adds a key/value pair to the request's advice map,
// overwriting any previous value under the key.
func (t *TransactionRequest) InsertAdvice(key Word, value []byte) {
	if t.advice == nil {
		t.advice = make(map[Word][]byte)
	}
	t.advice[key] = value
}

// Advice looks up an advice map entry.
func (t *TransactionRequest) Advice(key Word) ([]byte, bool) {
	v, ok := t.advice[key]
	return v, ok
}

// AdviceLen returns the number of advice map entries.
func (t *TransactionRequest) AdviceLen() int {
	return len(t.advice)
}

// Bytes returns the binary form of the request.
func (t *TransactionRequest) Bytes() []byte {
	b, err := io.ToBytes(t)
	if err != nil {
		panic(err)
	}
	return b
}

// EncodeBinary implements the io.Serializable interface.
func (t *TransactionRequest) EncodeBinary(bw *io.BinWriter) {
	io.WriteArray(bw, t.inputNotes)
	bw.WriteVarBytes(t.script)
	bw.WriteVarUint(uint64(len(t.advice)))
	for _, key := range sortedWords(t.advice) {
		key.EncodeBinary(bw)
		bw.WriteVarBytes(t.advice[key])
	}
}

// DecodeBinary implements the io.Serializable interface.
func (t *TransactionRequest) DecodeBinary(br *io.BinReader) {
	io.ReadArray(br, &t.inputNotes)
	t.script = br.ReadVarBytes()
	t.advice = make(map[Word][]byte)
	for i, n := uint64(0), br.ReadVarUint(); i < n && br.Err == nil; i++ {
		var key Word
		key.DecodeBinary(br)
		t.advice[key] = br.ReadVarBytes()
	}
}

// TransactionSummary is the signing artifact produced by a transaction dry
// run. Its serialized form starts with the 32-byte commitment approvers sign
// over, followed by an opaque payload.
type TransactionSummary []byte

// NewTransactionSummary builds a summary from a commitment and payload.
func NewTransactionSummary(commit Word, payload []byte) TransactionSummary {
	return append(commit.Bytes(), payload...)
}

// Commitment returns the 32-byte commitment of the summary, the message
// approvers sign.
func (s TransactionSummary) Commitment() (Word, error) {
	if len(s) < WordSize {
		return Word{}, fmt.Errorf("transaction summary too short (%d bytes)", len(s))
	}
	return WordDecodeBytes(s[:WordSize])
}

// TransactionResult is the opaque execution artifact returned by the SDK
// after a transaction has been executed, returned to clients as bytes.
type TransactionResult []byte

// UnauthorizedError is returned by Client.ExecuteTransaction when the
// executed transaction lacks threshold approvals: the dry-run signal
// carrying the summary to be signed.
type UnauthorizedError struct {
	Summary TransactionSummary
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	return "transaction unauthorized: threshold approvals missing"
}

// ErrAccountNotFound is returned by Client calls referencing an account the
// wallet does not track.
var ErrAccountNotFound = errors.New("account not found")

// ErrNoteNotFound is returned by Client calls referencing an unknown note.
var ErrNoteNotFound = errors.New("note not found")
