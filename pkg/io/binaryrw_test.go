package io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteVarUint1(t *testing.T) {
	var (
		val = uint64(1)
	)
	bw := NewBufBinWriter()
	bw.WriteVarUint(val)
	assert.Nil(t, bw.Err)
	buf := bw.Bytes()
	assert.Equal(t, 1, len(buf))
}

func TestWriteVarUint1000(t *testing.T) {
	var (
		val = uint64(1000)
	)
	bw := NewBufBinWriter()
	bw.WriteVarUint(val)
	assert.Nil(t, bw.Err)
	buf := bw.Bytes()
	assert.Equal(t, 3, len(buf))
	assert.Equal(t, byte(0xfd), buf[0])
	br := NewBinReaderFromBuf(buf)
	res := br.ReadVarUint()
	assert.Nil(t, br.Err)
	assert.Equal(t, val, res)
}

func TestWriteVarUint100000(t *testing.T) {
	var (
		val = uint64(100000)
	)
	bw := NewBufBinWriter()
	bw.WriteVarUint(val)
	assert.Nil(t, bw.Err)
	buf := bw.Bytes()
	assert.Equal(t, 5, len(buf))
	assert.Equal(t, byte(0xfe), buf[0])
	br := NewBinReaderFromBuf(buf)
	res := br.ReadVarUint()
	assert.Nil(t, br.Err)
	assert.Equal(t, val, res)
}

func TestWriteVarUint100000000000(t *testing.T) {
	var (
		val = uint64(1000000000000)
	)
	bw := NewBufBinWriter()
	bw.WriteVarUint(val)
	assert.Nil(t, bw.Err)
	buf := bw.Bytes()
	assert.Equal(t, 9, len(buf))
	assert.Equal(t, byte(0xff), buf[0])
	br := NewBinReaderFromBuf(buf)
	res := br.ReadVarUint()
	assert.Nil(t, br.Err)
	assert.Equal(t, val, res)
}

func TestWriteReadU64LE(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteU64LE(0xbadcafe)
	bw.WriteU32LE(0xdeadbeef)
	bw.WriteU16LE(0xcafe)
	bw.WriteB(0x5a)
	bw.WriteBool(true)
	bw.WriteBool(false)
	require.NoError(t, bw.Err)

	br := NewBinReaderFromBuf(bw.Bytes())
	assert.Equal(t, uint64(0xbadcafe), br.ReadU64LE())
	assert.Equal(t, uint32(0xdeadbeef), br.ReadU32LE())
	assert.Equal(t, uint16(0xcafe), br.ReadU16LE())
	assert.Equal(t, byte(0x5a), br.ReadB())
	assert.Equal(t, true, br.ReadBool())
	assert.Equal(t, false, br.ReadBool())
	require.NoError(t, br.Err)
}

func TestWriteReadVarBytes(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		bw := NewBufBinWriter()
		bw.WriteVarBytes([]byte{0xde, 0xad})
		bw.WriteString("multisig")
		require.NoError(t, bw.Err)

		br := NewBinReaderFromBuf(bw.Bytes())
		assert.Equal(t, []byte{0xde, 0xad}, br.ReadVarBytes())
		assert.Equal(t, "multisig", br.ReadString())
		require.NoError(t, br.Err)
	})

	t.Run("max size exceeded", func(t *testing.T) {
		bw := NewBufBinWriter()
		bw.WriteVarBytes([]byte{0xde, 0xad, 0xbe, 0xef})
		require.NoError(t, bw.Err)

		br := NewBinReaderFromBuf(bw.Bytes())
		br.ReadVarBytes(2)
		require.Error(t, br.Err)
	})
}

func TestBufBinWriter(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(1)
	require.NoError(t, bw.Err)
	require.Equal(t, 1, bw.Len())
	require.NotNil(t, bw.Bytes())

	// A drained buffer refuses further writes until Reset.
	bw.WriteB(2)
	require.Error(t, bw.Err)
	require.Nil(t, bw.Bytes())

	bw.Reset()
	bw.WriteB(3)
	require.NoError(t, bw.Err)
	require.Equal(t, []byte{3}, bw.Bytes())
}

func TestReaderErrSticky(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{1})
	br.Err = errors.New("stop")
	assert.Equal(t, uint64(0), br.ReadU64LE())
	assert.Equal(t, uint64(0), br.ReadVarUint())
	assert.Nil(t, br.ReadVarBytes())
}

type testSerializable uint16

func (t *testSerializable) DecodeBinary(r *BinReader) {
	*t = testSerializable(r.ReadU16LE())
}

func (t testSerializable) EncodeBinary(w *BinWriter) {
	w.WriteU16LE(uint16(t))
}

func TestArrayRoundTrip(t *testing.T) {
	arr := []testSerializable{0, 1, 1000}

	bw := NewBufBinWriter()
	WriteArray(bw.BinWriter, arr)
	require.NoError(t, bw.Err)

	var out []testSerializable
	br := NewBinReaderFromBuf(bw.Bytes())
	ReadArray(br, &out)
	require.NoError(t, br.Err)
	require.Equal(t, arr, out)
}

func TestToFromBytes(t *testing.T) {
	val := testSerializable(42)

	data, err := ToBytes(val)
	require.NoError(t, err)

	var out testSerializable
	require.NoError(t, FromBytes(data, &out))
	require.Equal(t, val, out)
}
