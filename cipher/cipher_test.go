package cipher

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func testSalt(t *testing.T) []byte {
	t.Helper()
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return salt
}

func TestXChaChaEncryptDecryptRoundTrip(t *testing.T) {
	p := New(1, 8) // cheap cost parameters for fast tests
	key := p.DeriveKey([]byte("correct horse battery staple"), testSalt(t))
	defer key.Zero()

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext, err := p.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatalf("ciphertext should not equal plaintext")
	}

	got, err := p.Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted text mismatch: got %q want %q", got, plaintext)
	}
}

func TestXChaChaDistinctNoncePerCall(t *testing.T) {
	p := New(1, 8)
	key := p.DeriveKey([]byte("password"), testSalt(t))
	defer key.Zero()

	plaintext := []byte("same plaintext every time")
	a, err := p.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := p.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestXChaChaWrongKeyFails(t *testing.T) {
	p := New(1, 8)
	salt := testSalt(t)
	key := p.DeriveKey([]byte("right password"), salt)
	defer key.Zero()
	wrongKey := p.DeriveKey([]byte("wrong password"), salt)
	defer wrongKey.Zero()

	ciphertext, err := p.Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := p.Decrypt(wrongKey, ciphertext); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestXChaChaTamperedCiphertextFails(t *testing.T) {
	p := New(1, 8)
	key := p.DeriveKey([]byte("password"), testSalt(t))
	defer key.Zero()

	ciphertext, err := p.Encrypt(key, []byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xff

	if _, err := p.Decrypt(key, ciphertext); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestSecretKeyZero(t *testing.T) {
	var key SecretKey
	for i := range key {
		key[i] = 0xaa
	}
	key.Zero()
	for i, b := range key {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
}

func TestDefaultAndStrongDistinctCosts(t *testing.T) {
	d := Default()
	s := Strong()
	if d.MemCost() >= s.MemCost() {
		t.Fatalf("Strong should request more memory than Default")
	}
}
