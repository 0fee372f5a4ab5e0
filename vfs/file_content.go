package vfs

import (
	"encoding/json"
	"time"

	"github.com/rusty-shelter/rusty-shelter/block"
)

// FileContent records one version of a file's content as an ordered list
// of chunk references. It is itself stored as an FVER block; the chunk
// bytes live in separate BLOB blocks it points at.
type FileContent struct {
	ID     block.ID        `json:"id"`
	Len    int64            `json:"len"`
	CTime  time.Time        `json:"ctime"`
	Chunks []block.ChunkRef `json:"chunks"`
}

// NewFileContent returns an empty content record ready to accumulate chunk
// references as a writer streams data through it.
func NewFileContent() *FileContent {
	return &FileContent{ID: block.NewID(), CTime: time.Now().UTC()}
}

// pushChunk appends a chunk at the current end of the content.
func (c *FileContent) pushChunk(address block.Address, length int) {
	c.Chunks = append(c.Chunks, block.ChunkRef{
		Address: address,
		Offset:  c.Len,
		Length:  int64(length),
	})
	c.Len += int64(length)
}

func (c *FileContent) marshal() ([]byte, error) {
	return json.Marshal(c)
}

func unmarshalFileContent(data []byte) (*FileContent, error) {
	var c FileContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
