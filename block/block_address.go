package block

import (
	"github.com/multiformats/go-multibase"
)

// Address is the content-addressed, human-printable name of an immutable
// block: a multibase-encoded, base58-btc text form of its BLAKE3 digest.
type Address string

// NewAddress derives the address of data without constructing a full
// envelope around it.
func NewAddress(data []byte) (Address, error) {
	mh := SumBlake3(data)
	s, err := multibase.Encode(multibase.Base58BTC, mh.Digest)
	if err != nil {
		return "", err
	}
	return Address(s), nil
}

// ChunkRef locates one chunk of a file's content: the address of the BLOB
// block holding it, its offset within the reassembled content, and its
// length in bytes.
type ChunkRef struct {
	Address Address
	Offset  int64
	Length  int64
}

// EndOffset returns the offset one past the last byte this chunk covers.
func (c ChunkRef) EndOffset() int64 {
	return c.Offset + c.Length
}
