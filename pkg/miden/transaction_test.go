package miden

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRequestRoundtrip(t *testing.T) {
	var n1, n2 NoteID
	n1[0], n2[0] = 1, 2

	req := NewTransactionRequest([]NoteID{n1, n2}, []byte("begin consume end"))
	req.InsertAdvice(NewWord(1, 2, 3, 4), []byte{0xAA, 0xBB})
	req.InsertAdvice(NewWord(5, 6, 7, 8), []byte{0xCC})

	parsed, err := ParseTransactionRequest(req.Bytes())
	require.NoError(t, err)
	assert.Equal(t, req.InputNoteIDs(), parsed.InputNoteIDs())
	assert.Equal(t, req.Script(), parsed.Script())
	require.Equal(t, 2, parsed.AdviceLen())

	v, ok := parsed.Advice(NewWord(1, 2, 3, 4))
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB}, v)
	_, ok = parsed.Advice(NewWord(9, 9, 9, 9))
	assert.False(t, ok)

	// The wire form must not depend on advice insertion order.
	other := NewTransactionRequest([]NoteID{n1, n2}, []byte("begin consume end"))
	other.InsertAdvice(NewWord(5, 6, 7, 8), []byte{0xCC})
	other.InsertAdvice(NewWord(1, 2, 3, 4), []byte{0xAA, 0xBB})
	assert.Equal(t, req.Bytes(), other.Bytes())
}

func TestParseTransactionRequestErrors(t *testing.T) {
	_, err := ParseTransactionRequest([]byte{0xFF, 0x01})
	require.Error(t, err)

	req := NewTransactionRequest(nil, []byte("noop"))
	_, err = ParseTransactionRequest(append(req.Bytes(), 0xDE, 0xAD))
	require.Error(t, err, "trailing bytes")
}

func TestTransactionSummaryCommitment(t *testing.T) {
	commit := NewWord(11, 12, 13, 14)
	summary := NewTransactionSummary(commit, []byte("effects"))

	got, err := summary.Commitment()
	require.NoError(t, err)
	assert.Equal(t, commit, got)

	_, err = TransactionSummary([]byte("short")).Commitment()
	require.Error(t, err)
}

func TestUnauthorizedError(t *testing.T) {
	summary := NewTransactionSummary(NewWord(1, 0, 0, 0), nil)
	err := fmt.Errorf("execution failed: %w", &UnauthorizedError{Summary: summary})

	var unauth *UnauthorizedError
	require.True(t, errors.As(err, &unauth))
	assert.Equal(t, summary, unauth.Summary)
	assert.Contains(t, err.Error(), "unauthorized")
}
