package io

// Serializable defines the binary encoding/decoding interface. Errors are
// returned via BinReader/BinWriter Err field.
type Serializable interface {
	decodable
	encodable
}

type decodable interface {
	DecodeBinary(*BinReader)
}

type encodable interface {
	EncodeBinary(*BinWriter)
}

// ToBytes serializes a given object into a slice of bytes.
func ToBytes(s encodable) ([]byte, error) {
	bw := NewBufBinWriter()
	s.EncodeBinary(bw.BinWriter)
	if bw.Err != nil {
		return nil, bw.Err
	}
	return bw.Bytes(), nil
}

// FromBytes deserializes a given object from a slice of bytes.
func FromBytes(data []byte, s decodable) error {
	br := NewBinReaderFromBuf(data)
	s.DecodeBinary(br)
	return br.Err
}
