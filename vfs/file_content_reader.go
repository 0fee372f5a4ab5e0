package vfs

import (
	"io"

	"github.com/rusty-shelter/rusty-shelter/store"
)

// fileContentReader streams the bytes a FileContent points at, out of
// whichever BLOB blocks its chunk references name, in order.
type fileContentReader struct {
	storage store.Storage
	content *FileContent
	pos     int64
}

func newFileContentReader(s store.Storage, content *FileContent) *fileContentReader {
	return &fileContentReader{storage: s, content: content}
}

// Seek repositions the next Read to start at pos.
func (r *fileContentReader) Seek(pos int64) {
	r.pos = pos
}

func (r *fileContentReader) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if r.pos >= r.content.Len {
		return 0, io.EOF
	}

	read := 0
	for _, ref := range r.content.Chunks {
		if ref.EndOffset() <= r.pos {
			continue
		}

		startPos := r.pos - ref.Offset
		dataLeft := ref.Length - startPos

		for dataLeft > 0 {
			dst := buf[read:]
			if len(dst) == 0 {
				return read, nil
			}

			data, err := getBlockData(r.storage, string(ref.Address))
			if err != nil {
				return read, err
			}

			readLen := int64(len(dst))
			if dataLeft < readLen {
				readLen = dataLeft
			}
			copy(dst[:readLen], data[startPos:startPos+readLen])

			dataLeft -= readLen
			read += int(readLen)
			r.pos += readLen
			startPos += readLen
		}
	}

	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}
