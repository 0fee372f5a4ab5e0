package vfs

import (
	"fmt"
	"io"

	"github.com/rusty-shelter/rusty-shelter/store"
)

// fileState tracks which of File's three modes a handle is currently in.
// A File starts Idle, moves to Reading on the first Read and back to Idle
// on EOF, or moves to Writing on the first Write and back to Idle on
// Flush. Seek is rejected while Writing and returns the handle to Idle;
// Metadata is available in every state except Closed.
type fileState int

const (
	fileIdle fileState = iota
	fileReading
	fileWriting
	fileClosed
)

// File is an open handle onto one version-controlled file node. It is not
// safe for concurrent use by multiple goroutines.
type File struct {
	options OpenOptions
	storage store.Storage
	lock    *fileNodeLock
	onClose func()

	state    fileState
	position int64

	reader *fileNodeReader
	writer *fileNodeWriter
}

func newFile(opts OpenOptions, s store.Storage, lock *fileNodeLock, onClose func()) *File {
	return &File{
		options: opts,
		storage: s,
		lock:    lock,
		onClose: onClose,
	}
}

func (f *File) node() *FileNode {
	return f.lock.node
}

// Metadata reports the file's current type, size, version, and timestamps.
func (f *File) Metadata() (Metadata, error) {
	if f.state == fileClosed {
		return Metadata{}, ErrClosed
	}
	f.lock.mu.RLock()
	defer f.lock.mu.RUnlock()
	return f.node().Metadata(), nil
}

// History lists every version the file has accumulated.
func (f *File) History() ([]FileVersion, error) {
	if f.state == fileClosed {
		return nil, ErrClosed
	}
	f.lock.mu.RLock()
	defer f.lock.mu.RUnlock()
	return f.node().History(), nil
}

// Len reports the current version's size in bytes.
func (f *File) Len() (int64, error) {
	m, err := f.Metadata()
	if err != nil {
		return 0, err
	}
	return m.Len, nil
}

// Version reports the file's current version number.
func (f *File) Version() (int, error) {
	m, err := f.Metadata()
	if err != nil {
		return 0, err
	}
	return m.Version, nil
}

// Read implements io.Reader over the file's current version. It fails with
// ErrCannotRead if the handle was not opened with OpenRead, and with
// ErrNotFinish if a write is in progress.
func (f *File) Read(p []byte) (int, error) {
	if f.state == fileClosed {
		return 0, ErrClosed
	}
	if !f.options.canRead() {
		return 0, ErrCannotRead
	}
	if f.state == fileWriting {
		return 0, ErrNotFinish
	}

	f.lock.mu.RLock()
	defer f.lock.mu.RUnlock()

	if f.reader == nil {
		f.reader = newFileNodeReader(f.storage)
	}
	f.state = fileReading

	n, err := f.reader.Read(f.node(), p)
	f.position += int64(n)
	if err == io.EOF {
		f.state = fileIdle
	}
	return n, err
}

// Write implements io.Writer, accumulating bytes into a new version of the
// file. It fails with ErrCannotWrite if the handle was not opened with
// OpenWrite, and with ErrNotFinish if a read is in progress.
func (f *File) Write(p []byte) (int, error) {
	if f.state == fileClosed {
		return 0, ErrClosed
	}
	if !f.options.canWrite() {
		return 0, ErrCannotWrite
	}
	if f.state == fileReading {
		return 0, ErrNotFinish
	}

	f.lock.mu.Lock()
	defer f.lock.mu.Unlock()

	if f.writer == nil {
		f.writer = newFileNodeWriter(f.storage)
	}
	f.state = fileWriting

	return f.writer.Write(p)
}

// Flush finalizes the in-progress write, if any, recording a new version on
// the underlying node. It is a no-op if no write is in progress.
func (f *File) Flush() error {
	if f.state == fileClosed {
		return ErrClosed
	}
	if f.state != fileWriting {
		return nil
	}

	f.lock.mu.Lock()
	defer f.lock.mu.Unlock()

	if err := f.writer.Finish(f.node()); err != nil {
		return err
	}
	f.writer = nil
	f.state = fileIdle
	return nil
}

// Seek repositions the next Read. It fails with ErrNotFinish if a write is
// in progress, since writes always append a brand-new version from the
// start.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.state == fileClosed {
		return 0, ErrClosed
	}
	if f.state == fileWriting {
		return 0, ErrNotFinish
	}

	f.lock.mu.RLock()
	size := f.node().len()
	f.lock.mu.RUnlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.position + offset
	case io.SeekEnd:
		newPos = size + offset
	default:
		return 0, fmt.Errorf("vfs: %w: invalid whence", ErrInvalidArgument)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("vfs: %w: negative position", ErrInvalidArgument)
	}

	f.position = newPos
	if f.reader == nil {
		f.reader = newFileNodeReader(f.storage)
	}
	f.reader.Seek(newPos)
	f.state = fileIdle
	return newPos, nil
}

// WriteOnce writes p as the entirety of a new version and flushes
// immediately, the common case for callers that already have the whole
// payload in memory.
func (f *File) WriteOnce(p []byte) error {
	if _, err := f.Write(p); err != nil {
		return err
	}
	return f.Flush()
}

// Close releases the handle. Any in-progress write is discarded, not
// flushed; callers must call Flush explicitly to persist it.
func (f *File) Close() error {
	if f.state == fileClosed {
		return nil
	}
	f.state = fileClosed
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}
