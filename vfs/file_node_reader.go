package vfs

import (
	"github.com/rusty-shelter/rusty-shelter/store"
)

// fileNodeReader lazily opens a reader over a file node's current version
// the first time Read is called, then reuses it for the life of the handle.
type fileNodeReader struct {
	storage store.Storage
	inner   *fileContentReader
	pos     int64
}

func newFileNodeReader(s store.Storage) *fileNodeReader {
	return &fileNodeReader{storage: s}
}

// Seek repositions the next Read to start at pos, whether or not the
// underlying content reader has been opened yet.
func (r *fileNodeReader) Seek(pos int64) {
	r.pos = pos
	if r.inner != nil {
		r.inner.Seek(pos)
	}
}

func (r *fileNodeReader) ensure(node *FileNode) error {
	if r.inner != nil {
		return nil
	}
	contentID, err := node.currentContentID()
	if err != nil {
		return err
	}
	data, err := getBlockData(r.storage, contentID)
	if err != nil {
		return err
	}
	content, err := unmarshalFileContent(data)
	if err != nil {
		return err
	}
	r.inner = newFileContentReader(r.storage, content)
	r.inner.Seek(r.pos)
	return nil
}

func (r *fileNodeReader) Read(node *FileNode, buf []byte) (int, error) {
	if err := r.ensure(node); err != nil {
		return 0, err
	}
	return r.inner.Read(buf)
}
