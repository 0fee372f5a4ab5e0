package vfs

import (
	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/chunk"
	"github.com/rusty-shelter/rusty-shelter/store"
)

// fileNodeWriter accumulates a new version of a file node's content,
// splitting whatever bytes it is fed into content-defined chunks via
// chunk.Writer and storing each chunk as its own BLOB block.
type fileNodeWriter struct {
	storage store.Storage
	content *fileContentWriter
	chunker *chunk.Writer
}

func newFileNodeWriter(s store.Storage) *fileNodeWriter {
	content := newFileContentWriter(s)
	return &fileNodeWriter{
		storage: s,
		content: content,
		chunker: chunk.NewWriter(content),
	}
}

func (w *fileNodeWriter) Write(p []byte) (int, error) {
	return w.chunker.Write(p)
}

// Finish flushes any buffered bytes as a final chunk, stores the resulting
// FileContent as an FVER block, records it as a new version on node, and
// persists the updated node as a FILE block.
func (w *fileNodeWriter) Finish(node *FileNode) error {
	if err := w.chunker.Flush(); err != nil {
		return err
	}

	content := w.content.Finish()
	raw, err := content.marshal()
	if err != nil {
		return err
	}
	if err := putIDAddressed(w.storage, content.ID, block.TypeFileVer, raw); err != nil {
		return err
	}

	node.AddVersion(content)

	nodeRaw, err := node.marshal()
	if err != nil {
		return err
	}
	return putIDAddressed(w.storage, node.ID, block.TypeFile, nodeRaw)
}
