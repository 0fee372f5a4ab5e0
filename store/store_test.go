package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rusty-shelter/rusty-shelter/cipher"
)

// cheapOption uses minimal Argon2id cost parameters so tests run fast.
func cheapOption() Option {
	return WithProvider(cipher.New(1, 8))
}

func TestMemStoreLifecycle(t *testing.T) {
	s, err := NewMemStore(cheapOption())
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	testStorageLifecycle(t, s)
}

func TestFSStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "repo"), cheapOption())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	testStorageLifecycle(t, s)
}

func TestBoltStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(filepath.Join(dir, "repo.bolt"), cheapOption())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Destroy()
	testStorageLifecycle(t, s)
}

func testStorageLifecycle(t *testing.T, s Storage) {
	t.Helper()

	if ok, err := s.IsInitialized(); err != nil || ok {
		t.Fatalf("expected fresh storage to be uninitialized, got ok=%v err=%v", ok, err)
	}

	password := []byte("hunter2")
	if err := s.Init(password, []byte("root payload")); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.Init(password, []byte("again")); !errors.Is(err, ErrAlreadyInit) {
		t.Fatalf("expected ErrAlreadyInit on double Init, got %v", err)
	}

	payload, err := s.Open(password)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(payload) != "root payload" {
		t.Fatalf("payload mismatch: got %q", payload)
	}

	if _, err := s.Open([]byte("wrong password")); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure on wrong password, got %v", err)
	}

	if err := s.SavePayload([]byte("updated payload")); err != nil {
		t.Fatalf("SavePayload: %v", err)
	}
	payload, err = s.Open(password)
	if err != nil {
		t.Fatalf("Open after SavePayload: %v", err)
	}
	if string(payload) != "updated payload" {
		t.Fatalf("payload not updated: got %q", payload)
	}

	data := []byte("block contents")
	if err := s.Put("k1", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ok, err := s.Exists("k1"); err != nil || !ok {
		t.Fatalf("expected k1 to exist, got ok=%v err=%v", ok, err)
	}

	got, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("block mismatch: got %q want %q", got, data)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Del("k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, err := s.Exists("k1"); err != nil || ok {
		t.Fatalf("expected k1 to be gone after Del, got ok=%v err=%v", ok, err)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// TestMemStoreGetServesFromCache confirms Get consults the bounded
// ciphertext cache before touching the backend: once a block has been read
// once, removing it straight out of the backing map must not make a
// subsequent Get fail.
func TestMemStoreGetServesFromCache(t *testing.T) {
	s, err := NewMemStore(cheapOption())
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	if err := s.Init([]byte("hunter2"), []byte("root")); err != nil {
		t.Fatalf("Init: %v", err)
	}

	data := []byte("hot block")
	if err := s.Put("k1", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get("k1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, ok := s.cachedCiphertext("k1"); !ok {
		t.Fatalf("expected k1's ciphertext to be cached after Get")
	}

	s.mu.Lock()
	delete(s.blocks, "k1")
	s.mu.Unlock()

	got, err := s.Get("k1")
	if err != nil {
		t.Fatalf("expected Get to be served from cache after backend removal, got %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("cached block mismatch: got %q want %q", got, data)
	}
}
