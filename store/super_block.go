package store

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rusty-shelter/rusty-shelter/cipher"
)

// superBlockSignature opens the plaintext head of every super-block.
var superBlockSignature = [5]byte{'S', 'S', 'B', 'V', '1'}

const saltSize = 16

// superBlock is the repository's single encrypted root record. Its head is
// plaintext and fixed-width so a master key can be derived without
// decrypting anything; its body is ciphertext under that master key and
// holds the data key plus an opaque caller-supplied payload.
//
// Wire layout:
//
//	HEAD (plaintext):
//	  signature(5) | salt_len(u64) | salt(16) | cipher_code(u32)
//	  | ops_cost(u32) | mem_cost(u32)
//	BODY (ciphertext under the master key):
//	  data_key_len(varint) | data_key | payload_len(varint) | payload
type superBlock struct {
	salt    [saltSize]byte
	code    cipher.Code
	opsCost uint32
	memCost uint32

	dataKey cipher.SecretKey
	payload []byte
}

const headLen = 5 + 8 + saltSize + 4 + 4 + 4

func newSuperBlock(p cipher.Provider) (*superBlock, error) {
	sb := &superBlock{
		code:    p.Code(),
		opsCost: p.OpsCost(),
		memCost: p.MemCost(),
	}
	if _, err := io.ReadFull(rand.Reader, sb.salt[:]); err != nil {
		return nil, fmt.Errorf("store: generate salt: %w", err)
	}
	return sb, nil
}

func (sb *superBlock) masterKey(p cipher.Provider, password []byte) cipher.SecretKey {
	return p.DeriveKey(password, sb.salt[:])
}

// marshal serializes sb, encrypting its body under masterKey with p.
func (sb *superBlock) marshal(p cipher.Provider, masterKey cipher.SecretKey) ([]byte, error) {
	var head bytes.Buffer
	head.Write(superBlockSignature[:])
	writeUint64(&head, uint64(saltSize))
	head.Write(sb.salt[:])
	writeUint32(&head, uint32(sb.code))
	writeUint32(&head, sb.opsCost)
	writeUint32(&head, sb.memCost)

	var body bytes.Buffer
	writeUvarint(&body, uint64(len(sb.dataKey)))
	body.Write(sb.dataKey.Bytes())
	writeUvarint(&body, uint64(len(sb.payload)))
	body.Write(sb.payload)

	bodyCiphertext, err := p.Encrypt(masterKey, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store: seal super-block body: %w", err)
	}

	var out bytes.Buffer
	out.Write(head.Bytes())
	out.Write(bodyCiphertext)
	return out.Bytes(), nil
}

// deserializeSuperBlock reads the plaintext head from raw, deriving nothing
// yet: the caller must still call unsealBody with the master key.
func deserializeSuperBlock(raw []byte) (*superBlock, []byte, error) {
	if len(raw) < headLen {
		return nil, nil, fmt.Errorf("store: %w: truncated super-block head", ErrCorrupt)
	}
	r := bytes.NewReader(raw[:headLen])

	var sig [5]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}
	if sig != superBlockSignature {
		return nil, nil, fmt.Errorf("store: %w: bad super-block signature", ErrCorrupt)
	}

	saltLen, err := readUint64(r)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}
	if saltLen != saltSize {
		return nil, nil, fmt.Errorf("store: %w: unexpected salt length %d", ErrCorrupt, saltLen)
	}

	sb := &superBlock{}
	if _, err := io.ReadFull(r, sb.salt[:]); err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}

	code, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}
	sb.code = cipher.Code(code)

	if sb.opsCost, err = readUint32(r); err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}
	if sb.memCost, err = readUint32(r); err != nil {
		return nil, nil, fmt.Errorf("store: %w: %v", ErrCorrupt, err)
	}

	return sb, raw[headLen:], nil
}

// unsealBody decrypts bodyCiphertext with masterKey and fills in the data
// key and payload.
func (sb *superBlock) unsealBody(p cipher.Provider, masterKey cipher.SecretKey, bodyCiphertext []byte) error {
	plain, err := p.Decrypt(masterKey, bodyCiphertext)
	if err != nil {
		return ErrAuthFailure
	}

	r := bytes.NewReader(plain)
	dataKeyLen, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("store: %w: reading data key length: %v", ErrCorrupt, err)
	}
	dataKey := make([]byte, dataKeyLen)
	if _, err := io.ReadFull(r, dataKey); err != nil {
		return fmt.Errorf("store: %w: reading data key: %v", ErrCorrupt, err)
	}
	copy(sb.dataKey[:], dataKey)

	payloadLen, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("store: %w: reading payload length: %v", ErrCorrupt, err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("store: %w: reading payload: %v", ErrCorrupt, err)
	}
	sb.payload = payload

	return nil
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	w.Write(b[:n])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
