package shelter

import (
	"github.com/sirupsen/logrus"

	"github.com/rusty-shelter/rusty-shelter/store"
	"github.com/rusty-shelter/rusty-shelter/vfs"
)

var log = logrus.WithField("pkg", "shelter")

//Options is a bitset controlling how a Repository is opened
type Options uint8

const (
	//ReadOnly rejects every mutating operation with ErrReadOnly
	ReadOnly Options = 1 << iota
	//Versioned keeps every version a file has ever had. Without it, each
	//write discards all versions but the one it just created.
	Versioned
)

func (o Options) readOnly() bool  { return o&ReadOnly != 0 }
func (o Options) versioned() bool { return o&Versioned != 0 }

//Repository is the versioned, encrypted directory tree backed by a
//store.Storage. It composes the block store, the move-tree CRDT, and the
//content-addressed chunk format into the single façade applications use.
type Repository struct {
	storage store.Storage
	fs      *vfs.FileSystem
	opts    Options
}

//Create initializes a brand-new, empty repository sealed under password and
//backed by storage.
func Create(s store.Storage, password []byte, opts Options) (*Repository, error) {
	if err := s.Init(password, nil); err != nil {
		return nil, wrapErr("create", RootPath, err)
	}
	log.WithField("op", "create").Info("created repository")
	return open(s, opts)
}

//Open unseals an existing repository with password. The super-block payload
//is not used: the directory tree starts fresh, holding only the root.
func Open(s store.Storage, password []byte, opts Options) (*Repository, error) {
	if _, err := s.Open(password); err != nil {
		return nil, wrapErr("open", RootPath, err)
	}
	log.WithField("op", "open").Info("opened repository")
	return open(s, opts)
}

func open(s store.Storage, opts Options) (*Repository, error) {
	tree, err := vfs.NewFileSystem(s, "")
	if err != nil {
		return nil, wrapErr("open", RootPath, err)
	}
	return &Repository{storage: s, fs: tree, opts: opts}, nil
}

func (r *Repository) checkWritable(op, path string) error {
	if r.opts.readOnly() {
		return wrapErr(op, path, ErrReadOnly)
	}
	return nil
}

//Mkdir creates a single directory; its parent must already exist.
func (r *Repository) Mkdir(path string) error {
	if err := r.checkWritable("mkdir", path); err != nil {
		return err
	}
	return wrapErr("mkdir", path, r.fs.Mkdir(path))
}

//MkdirAll creates path and every missing ancestor directory.
func (r *Repository) MkdirAll(path string) error {
	if err := r.checkWritable("mkdirall", path); err != nil {
		return err
	}
	return wrapErr("mkdirall", path, r.fs.MkdirAll(path))
}

//Create opens a brand-new file at path for reading and writing.
func (r *Repository) Create(path string) (*File, error) {
	if err := r.checkWritable("create", path); err != nil {
		return nil, err
	}
	f, err := r.fs.CreateFile(path)
	if err != nil {
		return nil, wrapErr("create", path, err)
	}
	return newFile(f, path, r.opts, r.afterFlush), nil
}

//OpenFile opens path according to opts, optionally creating it.
func (r *Repository) OpenFile(path string, opts vfs.OpenOptions) (*File, error) {
	if opts&(vfs.OpenWrite|vfs.OpenCreate|vfs.OpenCreateNew|vfs.OpenAppend|vfs.OpenTruncate) != 0 {
		if err := r.checkWritable("open", path); err != nil {
			return nil, err
		}
	}
	f, err := r.fs.OpenFile(path, opts)
	if err != nil {
		return nil, wrapErr("open", path, err)
	}
	return newFile(f, path, r.opts, r.afterFlush), nil
}

//afterFlush prunes a file's history back down to just its current version
//when the repository was not opened with Versioned.
func (r *Repository) afterFlush(path string) error {
	if r.opts.versioned() {
		return nil
	}
	return r.fs.PruneVersions(path)
}

//Open opens path for reading only.
func (r *Repository) Open(path string) (*File, error) {
	return r.OpenFile(path, vfs.OpenRead)
}

//Metadata reports path's type, size, version, and timestamps.
func (r *Repository) Metadata(path string) (vfs.Metadata, error) {
	m, err := r.fs.Metadata(path)
	return m, wrapErr("metadata", path, err)
}

//History lists every version path's content has gone through.
func (r *Repository) History(path string) ([]vfs.FileVersion, error) {
	h, err := r.fs.History(path)
	return h, wrapErr("history", path, err)
}

//RemoveVersion deletes a non-current version of path's history. Its
//underlying content blocks are left in storage, the same no-garbage-
//collection stance Remove takes.
func (r *Repository) RemoveVersion(path string, version int) error {
	if err := r.checkWritable("removeversion", path); err != nil {
		return err
	}
	return wrapErr("removeversion", path, r.fs.RemoveVersion(path, version))
}

//SetLen truncates path's current version to n bytes, recording the result
//as a new version. Extending a file is not supported; use Write for that.
func (r *Repository) SetLen(path string, n int64) error {
	if err := r.checkWritable("setlen", path); err != nil {
		return err
	}
	return wrapErr("setlen", path, r.fs.SetLen(path, n))
}

//ReadDir lists the live entries directly under path.
func (r *Repository) ReadDir(path string) ([]vfs.DirEntry, error) {
	entries, err := r.fs.ReadDir(path)
	return entries, wrapErr("readdir", path, err)
}

//Copy creates a new file at to carrying from's current version, without
//duplicating its underlying chunk bytes.
func (r *Repository) Copy(from, to string) error {
	if err := r.checkWritable("copy", to); err != nil {
		return err
	}
	return wrapErr("copy", from+" -> "+to, r.fs.Copy(from, to))
}

//CopyDirAll recursively copies the directory tree rooted at from to to.
func (r *Repository) CopyDirAll(from, to string) error {
	if err := r.checkWritable("copydirall", to); err != nil {
		return err
	}
	return wrapErr("copydirall", from+" -> "+to, r.fs.CopyDirAll(from, to))
}

//Rename moves the entry at from to to.
func (r *Repository) Rename(from, to string) error {
	if err := r.checkWritable("rename", to); err != nil {
		return err
	}
	return wrapErr("rename", from+" -> "+to, r.fs.Rename(from, to))
}

//Remove deletes the file at path.
func (r *Repository) Remove(path string) error {
	if err := r.checkWritable("remove", path); err != nil {
		return err
	}
	return wrapErr("remove", path, r.fs.RemoveFile(path))
}

//RemoveDir deletes an empty directory at path.
func (r *Repository) RemoveDir(path string) error {
	if err := r.checkWritable("removedir", path); err != nil {
		return err
	}
	return wrapErr("removedir", path, r.fs.RemoveDir(path))
}

//RemoveAll recursively deletes path and everything under it.
func (r *Repository) RemoveAll(path string) error {
	if err := r.checkWritable("removeall", path); err != nil {
		return err
	}
	return wrapErr("removeall", path, r.fs.RemoveDirAll(path))
}

//SavePayload re-seals the repository's super-block with a new opaque
//payload, keeping the same key hierarchy.
func (r *Repository) SavePayload(payload []byte) error {
	if err := r.checkWritable("savepayload", RootPath); err != nil {
		return err
	}
	return wrapErr("savepayload", RootPath, r.storage.SavePayload(payload))
}

//Destroy permanently and irrecoverably removes the repository's storage.
func (r *Repository) Destroy() error {
	log.WithField("op", "destroy").Warn("destroying repository")
	return wrapErr("destroy", RootPath, r.fs.Destroy())
}
