package shelter

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rusty-shelter/rusty-shelter/cipher"
	"github.com/rusty-shelter/rusty-shelter/store"
	"github.com/rusty-shelter/rusty-shelter/vfs"
)

func newTestRepo(t *testing.T, opts Options) *Repository {
	t.Helper()
	s, err := store.NewMemStore(store.WithProvider(cipher.New(1, 8)))
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	repo, err := Create(s, []byte("hunter2"), opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return repo
}

// S1: round trip a file's content through Create, Flush, and a fresh Open.
func TestRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t, 0)

	f, err := repo.Create("/hello.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("hello, shelter")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	f2, err := repo.Open("/hello.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f2.Close()
	got, err := io.ReadAll(f2)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello, shelter" {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

// S2: versioning, with and without the Versioned option.
func TestRepositoryVersioning(t *testing.T) {
	repo := newTestRepo(t, Versioned)

	f, err := repo.Create("/v.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("one")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	f2, err := repo.OpenFile("/v.txt", vfs.OpenRead|vfs.OpenWrite)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f2.WriteOnce([]byte("two")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f2.Close()

	history, err := repo.History("/v.txt")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 versions with Versioned set, got %d", len(history))
	}
}

func TestRepositoryWithoutVersionedPrunesHistory(t *testing.T) {
	repo := newTestRepo(t, 0)

	f, err := repo.Create("/v.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("one")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	f2, err := repo.OpenFile("/v.txt", vfs.OpenRead|vfs.OpenWrite)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f2.WriteOnce([]byte("two")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f2.Close()

	history, err := repo.History("/v.txt")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected history pruned to 1 version, got %d", len(history))
	}
}

// S3: copying a file dedups its content rather than duplicating bytes.
func TestRepositoryCopyDeduplicates(t *testing.T) {
	repo := newTestRepo(t, 0)

	f, err := repo.Create("/src.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("shared")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	if err := repo.Copy("/src.txt", "/dst.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	srcHist, _ := repo.History("/src.txt")
	dstHist, _ := repo.History("/dst.txt")
	if srcHist[0].ContentID != dstHist[0].ContentID {
		t.Fatalf("expected shared content id: src=%s dst=%s", srcHist[0].ContentID, dstHist[0].ContentID)
	}
}

// S4: a large write split into many small slices round-trips exactly.
func TestRepositoryLargeStreamingWrite(t *testing.T) {
	repo := newTestRepo(t, 0)

	f, err := repo.Create("/big.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	for off := 0; off < len(payload); off += 4096 {
		end := off + 4096
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := f.Write(payload[off:end]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	f.Close()

	f2, err := repo.Open("/big.bin")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f2.Close()
	got, err := io.ReadAll(f2)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("large streaming round trip mismatch over %d bytes", len(payload))
	}
}

// S5: directory operations compose correctly through the façade.
func TestRepositoryDirectoryOps(t *testing.T) {
	repo := newTestRepo(t, 0)

	if err := repo.MkdirAll("/a/b"); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	f, err := repo.Create("/a/b/leaf.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("leaf")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	entries, err := repo.ReadDir("/a/b")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "leaf.txt" {
		t.Fatalf("unexpected directory listing: %+v", entries)
	}

	if err := repo.Rename("/a/b/leaf.txt", "/a/b/renamed.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := repo.Metadata("/a/b/leaf.txt"); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("expected old path gone, got %v", err)
	}

	if err := repo.RemoveAll("/a"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := repo.Metadata("/a"); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("expected /a gone, got %v", err)
	}
}

// S6: a wrong password on Open surfaces as a KindAuthFailure Error.
func TestRepositoryWrongPasswordFails(t *testing.T) {
	s, err := store.NewMemStore(store.WithProvider(cipher.New(1, 8)))
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	if _, err := Create(s, []byte("correct"), 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = Open(s, []byte("wrong"), 0)
	if err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	var shelterErr *Error
	if !errors.As(err, &shelterErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if shelterErr.Kind != KindAuthFailure {
		t.Fatalf("expected KindAuthFailure, got %v", shelterErr.Kind)
	}
}

func TestRepositoryRemoveVersionAndSetLen(t *testing.T) {
	repo := newTestRepo(t, Versioned)

	f, err := repo.Create("/v.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.WriteOnce([]byte("0123456789")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f.Close()

	f2, err := repo.OpenFile("/v.txt", vfs.OpenRead|vfs.OpenWrite)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f2.WriteOnce([]byte("abcdefghij")); err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	f2.Close()

	if err := repo.RemoveVersion("/v.txt", 0); err != nil {
		t.Fatalf("RemoveVersion: %v", err)
	}
	history, err := repo.History("/v.txt")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 version left after RemoveVersion, got %d", len(history))
	}

	if err := repo.SetLen("/v.txt", 4); err != nil {
		t.Fatalf("SetLen: %v", err)
	}
	f3, err := repo.Open("/v.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f3.Close()
	got, err := io.ReadAll(f3)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("expected truncated content %q, got %q", "abcd", got)
	}
}

func TestRepositoryReadOnlyRejectsWrites(t *testing.T) {
	s, err := store.NewMemStore(store.WithProvider(cipher.New(1, 8)))
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	if _, err := Create(s, []byte("hunter2"), 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	repo, err := Open(s, []byte("hunter2"), ReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := repo.Create("/x.txt"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}
