package vfs

import (
	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/store"
)

// fileContentWriter turns a stream of chunk-sized writes into BLOB blocks,
// accumulating their addresses into a FileContent. Each Write call is
// expected to already be chunk.Writer-sized; fileContentWriter itself does
// no further splitting.
type fileContentWriter struct {
	storage store.Storage
	content *FileContent
}

func newFileContentWriter(s store.Storage) *fileContentWriter {
	return &fileContentWriter{storage: s, content: NewFileContent()}
}

func (w *fileContentWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	addr, err := putContentAddressed(w.storage, block.TypeBlob, p)
	if err != nil {
		return 0, err
	}
	w.content.pushChunk(addr, len(p))
	return len(p), nil
}

// Finish returns the accumulated content record. The writer must not be
// used afterwards.
func (w *fileContentWriter) Finish() *FileContent {
	return w.content
}
