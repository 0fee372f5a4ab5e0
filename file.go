package shelter

import (
	"github.com/rusty-shelter/rusty-shelter/vfs"
)

//File is a handle onto one open, version-controlled file within a
//Repository. It is not safe for concurrent use by multiple goroutines.
type File struct {
	inner *vfs.File
	path  string
	opts  Options

	afterFlush func(path string) error
}

func newFile(inner *vfs.File, path string, opts Options, afterFlush func(path string) error) *File {
	return &File{inner: inner, path: path, opts: opts, afterFlush: afterFlush}
}

//Read implements io.Reader over the file's current version.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.inner.Read(p)
	return n, wrapErr("read", f.path, err)
}

//Write implements io.Writer, accumulating bytes into a new version.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.inner.Write(p)
	return n, wrapErr("write", f.path, err)
}

//Seek repositions the next Read.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	n, err := f.inner.Seek(offset, whence)
	return n, wrapErr("seek", f.path, err)
}

//Flush finalizes an in-progress write as a new version. If the repository
//was opened without Versioned, every earlier version is discarded.
func (f *File) Flush() error {
	if err := f.inner.Flush(); err != nil {
		return wrapErr("flush", f.path, err)
	}
	if f.afterFlush != nil {
		return wrapErr("flush", f.path, f.afterFlush(f.path))
	}
	return nil
}

//WriteOnce writes p as the entirety of a new version and flushes it.
func (f *File) WriteOnce(p []byte) error {
	if _, err := f.Write(p); err != nil {
		return err
	}
	return f.Flush()
}

//Close releases the handle. Any in-progress write is discarded; call Flush
//first to persist it.
func (f *File) Close() error {
	return wrapErr("close", f.path, f.inner.Close())
}

//Metadata reports the file's current type, size, version, and timestamps.
func (f *File) Metadata() (vfs.Metadata, error) {
	m, err := f.inner.Metadata()
	return m, wrapErr("metadata", f.path, err)
}

//History lists every version the file has accumulated.
func (f *File) History() ([]vfs.FileVersion, error) {
	h, err := f.inner.History()
	return h, wrapErr("history", f.path, err)
}

//Len reports the current version's size in bytes.
func (f *File) Len() (int64, error) {
	n, err := f.inner.Len()
	return n, wrapErr("len", f.path, err)
}

//Version reports the file's current version number.
func (f *File) Version() (int, error) {
	n, err := f.inner.Version()
	return n, wrapErr("version", f.path, err)
}
