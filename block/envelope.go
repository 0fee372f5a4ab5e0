package block

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "block")

// signature is the 4-byte magic that opens every envelope on disk.
var signature = [4]byte{'S', 'B', 'V', '1'}

// Envelope is the typed, signed, hash-addressed wrapper every block on disk
// is stored as. Its wire form is:
//
//	signature(4) | multihash code (varint) | digest len (varint) | digest
//	| type (1) | data len (varint) | data
type Envelope struct {
	MH   MultiHash
	Type Type
	Data []byte
}

// New builds an envelope around data, computing its BLAKE3 digest.
func New(typ Type, data []byte) Envelope {
	return Envelope{
		MH:   SumBlake3(data),
		Type: typ,
		Data: data,
	}
}

// Address returns the content address of this envelope's data.
func (e Envelope) Address() (Address, error) {
	return NewAddress(e.Data)
}

// Marshal encodes e to its on-disk wire form.
func (e Envelope) Marshal() ([]byte, error) {
	if !e.Type.valid() {
		return nil, fmt.Errorf("block: cannot marshal %w: %w: %s", ErrCorrupt, errBadType, e.Type)
	}

	var buf bytes.Buffer
	buf.Write(signature[:])

	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], uint64(e.MH.Code))
	buf.Write(varint[:n])

	n = binary.PutUvarint(varint[:], uint64(len(e.MH.Digest)))
	buf.Write(varint[:n])
	buf.Write(e.MH.Digest)

	buf.WriteByte(byte(e.Type))

	n = binary.PutUvarint(varint[:], uint64(len(e.Data)))
	buf.Write(varint[:n])
	buf.Write(e.Data)

	return buf.Bytes(), nil
}

// Unmarshal decodes an envelope from its wire form, verifying the signature,
// the block type, and that the digest actually matches the carried data.
func Unmarshal(raw []byte) (Envelope, error) {
	var e Envelope

	if len(raw) < len(signature) {
		return e, fmt.Errorf("block: %w: %w", ErrCorrupt, errTruncated)
	}
	if !bytes.Equal(raw[:len(signature)], signature[:]) {
		log.Warn("envelope signature mismatch")
		return e, fmt.Errorf("block: %w: %w", ErrCorrupt, errBadSignature)
	}
	r := bytes.NewReader(raw[len(signature):])

	code, err := binary.ReadUvarint(r)
	if err != nil {
		return e, fmt.Errorf("block: %w: reading multihash code: %w", ErrCorrupt, errTruncated)
	}

	digestLen, err := binary.ReadUvarint(r)
	if err != nil {
		return e, fmt.Errorf("block: %w: reading digest length: %w", ErrCorrupt, errTruncated)
	}
	digest := make([]byte, digestLen)
	if _, err := readFull(r, digest); err != nil {
		return e, fmt.Errorf("block: %w: reading digest: %w", ErrCorrupt, errTruncated)
	}

	typByte, err := r.ReadByte()
	if err != nil {
		return e, fmt.Errorf("block: %w: reading type: %w", ErrCorrupt, errTruncated)
	}
	typ := Type(typByte)
	if !typ.valid() {
		return e, fmt.Errorf("block: %w: %w: %s", ErrCorrupt, errBadType, typ)
	}

	dataLen, err := binary.ReadUvarint(r)
	if err != nil {
		return e, fmt.Errorf("block: %w: reading data length: %w", ErrCorrupt, errTruncated)
	}
	data := make([]byte, dataLen)
	if _, err := readFull(r, data); err != nil {
		return e, fmt.Errorf("block: %w: reading data: %w", ErrCorrupt, errTruncated)
	}

	e = Envelope{
		MH:   MultiHash{Code: HashCode(code), Digest: digest},
		Type: typ,
		Data: data,
	}

	want := SumBlake3(data)
	if !bytes.Equal(want.Digest, e.MH.Digest) || want.Code != e.MH.Code {
		log.WithField("type", typ).Warn("envelope digest mismatch")
		return e, fmt.Errorf("block: %w: %w", ErrCorrupt, errDigestMismatch)
	}

	return e, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, errTruncated
		}
	}
	return n, nil
}
