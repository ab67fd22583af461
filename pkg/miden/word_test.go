package miden

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xMiden/MultiSig/pkg/io"
)

func TestWordDecodeBytes(t *testing.T) {
	b := make([]byte, WordSize)
	b[0] = 0x2a

	w, err := WordDecodeBytes(b)
	require.NoError(t, err)
	assert.Equal(t, NewWord(42, 0, 0, 0), w)
	assert.Equal(t, b, w.Bytes())

	_, err = WordDecodeBytes(b[:WordSize-1])
	require.Error(t, err)
}

func TestWordDecodeString(t *testing.T) {
	w := NewWord(1, 2, 3, 4)

	parsed, err := WordDecodeString(w.String())
	require.NoError(t, err)
	assert.True(t, w.Equals(parsed))

	parsed, err = WordDecodeString(w.String()[2:])
	require.NoError(t, err)
	assert.True(t, w.Equals(parsed))

	_, err = WordDecodeString("0x0102")
	require.Error(t, err)
	_, err = WordDecodeString("qwerty")
	require.Error(t, err)
}

func TestIndexWord(t *testing.T) {
	assert.Equal(t, NewWord(7, 0, 0, 0), IndexWord(7))
	assert.Equal(t, Word{}, IndexWord(0))
}

func TestWordSerializable(t *testing.T) {
	w := NewWord(0xFFFFFFFFFFFFFFFF, 1, 0, 0xCAFE)

	b, err := io.ToBytes(w)
	require.NoError(t, err)
	require.Len(t, b, WordSize)

	var decoded Word
	require.NoError(t, io.FromBytes(b, &decoded))
	assert.Equal(t, w, decoded)
}

func TestWordJSON(t *testing.T) {
	w := NewWord(5, 6, 7, 8)

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, `"`+w.String()+`"`, string(data))

	var decoded Word
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, w, decoded)

	require.Error(t, json.Unmarshal([]byte(`"0xzz"`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`42`), &decoded))
}
