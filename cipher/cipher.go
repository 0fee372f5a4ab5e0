// Package cipher derives and applies the two-level key hierarchy that
// protects every block at rest: a master key, stretched from the
// repository password with Argon2id, that only ever unseals the
// super-block, and a random data key sealed inside it that encrypts
// everything else.
package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var log = logrus.WithField("pkg", "cipher")

// Code identifies the AEAD construction in use, following the same
// self-describing convention as a block's multihash code.
type Code uint32

// XChaCha20Poly1305Code is the only cipher this module writes. Readers treat
// any other code as corrupt.
const XChaCha20Poly1305Code Code = 0x37

// Cost parameters for Argon2id. DefaultOpsCost/DefaultMemCost match the
// reference implementation's defaults; Strong raises them for deployments
// that can afford slower opens in exchange for more brute-force resistance.
const (
	DefaultOpsCost uint32 = 3
	DefaultMemCost uint32 = 1 << 8 // KiB
	strongOpsCost  uint32 = 4
	strongMemCost  uint32 = 1 << 16 // 64 MiB

	keyLen    = chacha20poly1305.KeySize
	threads   = 4
	nonceSize = chacha20poly1305.NonceSizeX
)

// SecretKey is a derived or random 256-bit key. Zero should be called once
// the key is no longer needed so it does not linger in memory longer than
// necessary.
type SecretKey [keyLen]byte

// Zero overwrites k with zeroes.
func (k *SecretKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Bytes returns the raw key bytes.
func (k *SecretKey) Bytes() []byte {
	return k[:]
}

// ErrAuthFailure is returned when a ciphertext fails to authenticate, which
// happens both on tampering and on a wrong password.
var ErrAuthFailure = errors.New("cipher: authentication failed")

// Provider derives keys and seals/opens data under them.
type Provider interface {
	Code() Code
	OpsCost() uint32
	MemCost() uint32
	DeriveKey(password, salt []byte) SecretKey
	Encrypt(key SecretKey, plaintext []byte) ([]byte, error)
	Decrypt(key SecretKey, ciphertext []byte) ([]byte, error)
}

// XChaCha implements Provider with Argon2id key stretching and
// XChaCha20-Poly1305 authenticated encryption. The random nonce each Encrypt
// call generates is prepended to its ciphertext.
type XChaCha struct {
	opsCost uint32
	memCost uint32
}

// New returns an XChaCha provider with the given Argon2id cost parameters.
func New(opsCost, memCost uint32) *XChaCha {
	log.WithField("opsCost", opsCost).WithField("memCost", memCost).Debug("building xchacha provider")
	return &XChaCha{opsCost: opsCost, memCost: memCost}
}

// Default returns an XChaCha provider using DefaultOpsCost/DefaultMemCost.
func Default() *XChaCha {
	return New(DefaultOpsCost, DefaultMemCost)
}

// Strong returns an XChaCha provider with higher Argon2id cost parameters,
// suited to repositories where slower opens are acceptable.
func Strong() *XChaCha {
	return New(strongOpsCost, strongMemCost)
}

func (x *XChaCha) Code() Code      { return XChaCha20Poly1305Code }
func (x *XChaCha) OpsCost() uint32 { return x.opsCost }
func (x *XChaCha) MemCost() uint32 { return x.memCost }

// DeriveKey stretches password with Argon2id under salt using x's cost
// parameters.
func (x *XChaCha) DeriveKey(password, salt []byte) SecretKey {
	raw := argon2.IDKey(password, salt, x.opsCost, x.memCost, threads, keyLen)
	var key SecretKey
	copy(key[:], raw)
	for i := range raw {
		raw[i] = 0
	}
	return key
}

// Encrypt seals plaintext under key, returning nonce||ciphertext.
func (x *XChaCha) Encrypt(key SecretKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cipher: build aead: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext previously produced by Encrypt.
func (x *XChaCha) Decrypt(key SecretKey, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cipher: build aead: %w", err)
	}
	if len(ciphertext) < nonceSize {
		return nil, ErrAuthFailure
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		log.WithField("op", "decrypt").Warn("authentication failed")
		return nil, ErrAuthFailure
	}
	return plaintext, nil
}
