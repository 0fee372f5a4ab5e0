package vfs

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/crdt"
	"github.com/rusty-shelter/rusty-shelter/store"
)

var log = logrus.WithField("pkg", "vfs")

// virtualRoot is the parent recorded for RootPath itself. It is not a
// valid path (real paths always start with "/"), so it can never collide
// with a node a caller created.
const virtualRoot = ""

// trashParent is the parent a removed node is reparented under. The node's
// log entry and block are left alone; it simply falls out of any live
// traversal from the root.
const trashParent = "\x00trash"

type openEntry struct {
	lock *fileNodeLock
	refs int
}

// FileSystem composes a content-addressed/id-addressed block store with a
// move-tree CRDT to provide a path-oriented, versioned directory tree.
type FileSystem struct {
	storage store.Storage
	tree    *crdt.Replica

	mu   sync.Mutex
	open map[block.ID]*openEntry
}

// NewFileSystem wraps storage with a fresh, empty move-tree identified by
// actor and bootstraps the root directory node in it. The tree is kept in
// memory only: it is neither loaded from nor saved to storage, so entries
// created through an earlier FileSystem over the same storage are not found.
func NewFileSystem(s store.Storage, actor string) (*FileSystem, error) {
	fs := &FileSystem{
		storage: s,
		tree:    crdt.NewReplica(actor),
		open:    make(map[block.ID]*openEntry),
	}

	if _, ok := fs.tree.Find(RootPath); !ok {
		root := NewFileNode(RootPath, TypeDir)
		root.ID = block.Magic
		if err := fs.saveNode(root); err != nil {
			return nil, err
		}
		fs.tree.ApplyOp(fs.tree.Opmove(virtualRoot, root.ID, RootPath))
	}

	return fs, nil
}

func (fs *FileSystem) saveNode(node *FileNode) error {
	typ := block.TypeFile
	if node.IsDir() {
		typ = block.TypeTree
	}
	data, err := node.marshal()
	if err != nil {
		return err
	}
	return putIDAddressed(fs.storage, node.ID, typ, data)
}

func (fs *FileSystem) loadNode(id block.ID) (*FileNode, error) {
	data, err := getBlockData(fs.storage, id.String())
	if err != nil {
		return nil, err
	}
	return unmarshalFileNode(data)
}

// exists reports whether path currently names a live node: one whose
// recorded parent is not the trash sentinel.
func (fs *FileSystem) exists(path string) bool {
	parent, ok := fs.tree.ParentOf(path)
	return ok && parent != trashParent
}

func (fs *FileSystem) resolveNode(path string) (*FileNode, error) {
	if !fs.exists(path) {
		return nil, ErrNotFound
	}
	id, _ := fs.tree.Find(path)
	return fs.loadNode(id)
}

func (fs *FileSystem) liveChildren(path string) []string {
	all := fs.tree.Children(path)
	out := make([]string, 0, len(all))
	for _, c := range all {
		if fs.exists(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func (fs *FileSystem) acquireLock(node *FileNode) *fileNodeLock {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if e, ok := fs.open[node.ID]; ok {
		e.refs++
		return e.lock
	}
	e := &openEntry{lock: newFileNodeLock(node), refs: 1}
	fs.open[node.ID] = e
	return e.lock
}

func (fs *FileSystem) releaseLock(id block.ID) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, ok := fs.open[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(fs.open, id)
	}
}

// Mkdir creates a single directory. Its parent must already exist.
func (fs *FileSystem) Mkdir(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	if IsRoot(clean) {
		return ErrAlreadyExists
	}
	parent := Parent(clean)
	if !fs.exists(parent) {
		return fmt.Errorf("vfs: mkdir %s: %w", clean, ErrNotFound)
	}
	if fs.exists(clean) {
		return ErrAlreadyExists
	}

	node := NewFileNode(Base(clean), TypeDir)
	if err := fs.saveNode(node); err != nil {
		return err
	}
	fs.tree.ApplyOp(fs.tree.Opmove(parent, node.ID, clean))
	log.WithField("path", clean).WithField("op", "mkdir").Info("created directory")
	return nil
}

// MkdirAll creates path and every missing ancestor directory.
func (fs *FileSystem) MkdirAll(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	if IsRoot(clean) {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	cur := RootPath
	for _, part := range parts {
		cur = Join(cur, part)
		if fs.exists(cur) {
			continue
		}
		if err := fs.Mkdir(cur); err != nil {
			return err
		}
	}
	return nil
}

// OpenFile opens path according to opts, optionally creating it.
func (fs *FileSystem) OpenFile(path string, opts OpenOptions) (*File, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	clean, err := Clean(path)
	if err != nil {
		return nil, err
	}
	if IsRoot(clean) {
		return nil, ErrIsDir
	}

	var node *FileNode
	if fs.exists(clean) {
		if opts.has(OpenCreateNew) {
			return nil, ErrAlreadyExists
		}
		node, err = fs.resolveNode(clean)
		if err != nil {
			return nil, err
		}
		if node.IsDir() {
			return nil, ErrIsDir
		}
	} else {
		if !opts.has(OpenCreate) && !opts.has(OpenCreateNew) {
			return nil, ErrNotFound
		}
		parent := Parent(clean)
		if !fs.exists(parent) {
			return nil, fmt.Errorf("vfs: open %s: %w", clean, ErrNotFound)
		}
		node = NewFileNode(Base(clean), TypeFile)
		if err := fs.saveNode(node); err != nil {
			return nil, err
		}
		fs.tree.ApplyOp(fs.tree.Opmove(parent, node.ID, clean))
		log.WithField("path", clean).WithField("op", "create").Info("created file")
	}

	lock := fs.acquireLock(node)
	id := node.ID
	return newFile(opts, fs.storage, lock, func() { fs.releaseLock(id) }), nil
}

// CreateFile is shorthand for creating a brand-new file open for writing.
func (fs *FileSystem) CreateFile(path string) (*File, error) {
	return fs.OpenFile(path, OpenRead|OpenWrite|OpenCreateNew)
}

// Metadata reports path's type, size, version, and timestamps.
func (fs *FileSystem) Metadata(path string) (Metadata, error) {
	clean, err := Clean(path)
	if err != nil {
		return Metadata{}, err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return Metadata{}, err
	}
	return node.Metadata(), nil
}

// History lists every version path's content has gone through.
func (fs *FileSystem) History(path string) ([]FileVersion, error) {
	clean, err := Clean(path)
	if err != nil {
		return nil, err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return nil, ErrIsDir
	}
	return node.History(), nil
}

// RemoveVersion deletes a non-current version record from path's file node.
// Its FVER/BLOB blocks are left in storage, the same no-garbage-collection
// stance RemoveFile takes: another version of this node, or another file
// that was Copy'd from it, may still reference the same content id.
func (fs *FileSystem) RemoveVersion(path string, version int) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if !node.IsFile() {
		return ErrNotFile
	}

	lock := fs.acquireLock(node)
	defer fs.releaseLock(node.ID)

	lock.mu.Lock()
	defer lock.mu.Unlock()

	if err := lock.node.RemoveVersion(version); err != nil {
		return err
	}
	if err := fs.saveNode(lock.node); err != nil {
		return err
	}
	log.WithField("path", clean).WithField("op", "removeversion").Info("removed file version")
	return nil
}

// SetLen truncates path's current version to n bytes, writing the result as
// a new version. Growing a file is not supported here: spec.md's Non-goals
// rule out random-access writes, and zero-filling an extension is an
// append, not a truncation, so extending only happens through Write.
func (fs *FileSystem) SetLen(path string, n int64) error {
	if n < 0 {
		return fmt.Errorf("vfs: setlen %s: %w", path, ErrInvalidArgument)
	}
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if !node.IsFile() {
		return ErrNotFile
	}

	lock := fs.acquireLock(node)
	defer fs.releaseLock(node.ID)

	lock.mu.Lock()
	defer lock.mu.Unlock()

	if n >= lock.node.len() {
		if n == lock.node.len() {
			return nil
		}
		return fmt.Errorf("vfs: setlen %s: growing a file is %w", clean, ErrInvalidArgument)
	}

	reader := newFileNodeReader(fs.storage)
	remaining := n
	writer := newFileNodeWriter(fs.storage)
	buf := make([]byte, 32*1024)
	for remaining > 0 {
		chunkLen := int64(len(buf))
		if remaining < chunkLen {
			chunkLen = remaining
		}
		read, err := reader.Read(lock.node, buf[:chunkLen])
		if read > 0 {
			if _, werr := writer.Write(buf[:read]); werr != nil {
				return werr
			}
			remaining -= int64(read)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}

	if err := writer.Finish(lock.node); err != nil {
		return err
	}
	log.WithField("path", clean).WithField("op", "setlen").Info("truncated file")
	return nil
}

// ReadDir lists the live entries directly under path.
func (fs *FileSystem) ReadDir(path string) ([]DirEntry, error) {
	clean, err := Clean(path)
	if err != nil {
		return nil, err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return nil, err
	}
	if !node.IsDir() {
		return nil, ErrNotDir
	}

	children := fs.liveChildren(clean)
	out := make([]DirEntry, 0, len(children))
	for _, childPath := range children {
		childNode, err := fs.resolveNode(childPath)
		if err != nil {
			return nil, err
		}
		out = append(out, DirEntry{
			Path:     childPath,
			Name:     childNode.Name,
			Metadata: childNode.Metadata(),
		})
	}
	return out, nil
}

// Copy creates a new file at to carrying from's current version. The
// underlying content and chunk blocks are shared, not duplicated.
func (fs *FileSystem) Copy(from, to string) error {
	cleanFrom, err := Clean(from)
	if err != nil {
		return err
	}
	cleanTo, err := Clean(to)
	if err != nil {
		return err
	}

	srcNode, err := fs.resolveNode(cleanFrom)
	if err != nil {
		return err
	}
	if srcNode.IsDir() {
		return ErrIsDir
	}
	version, err := srcNode.CurrentVersion()
	if err != nil {
		return err
	}

	toParent := Parent(cleanTo)
	if !fs.exists(toParent) {
		return fmt.Errorf("vfs: copy to %s: %w", cleanTo, ErrNotFound)
	}
	if fs.exists(cleanTo) {
		return ErrAlreadyExists
	}

	dstNode := NewFileNode(Base(cleanTo), TypeFile)
	dstNode.Versions = []FileVersion{{
		ContentID: version.ContentID,
		Version:   0,
		Len:       version.Len,
		CTime:     version.CTime,
	}}
	if err := fs.saveNode(dstNode); err != nil {
		return err
	}
	fs.tree.ApplyOp(fs.tree.Opmove(toParent, dstNode.ID, cleanTo))
	return nil
}

// CopyDirAll recursively copies the directory tree rooted at from to to.
func (fs *FileSystem) CopyDirAll(from, to string) error {
	cleanFrom, err := Clean(from)
	if err != nil {
		return err
	}
	cleanTo, err := Clean(to)
	if err != nil {
		return err
	}
	if IsDescendant(cleanFrom, cleanTo) {
		return fmt.Errorf("vfs: copy %s into itself: %w", cleanFrom, ErrInvalidArgument)
	}

	srcNode, err := fs.resolveNode(cleanFrom)
	if err != nil {
		return err
	}
	if !srcNode.IsDir() {
		return ErrNotDir
	}

	if err := fs.Mkdir(cleanTo); err != nil {
		return err
	}

	for _, childPath := range fs.liveChildren(cleanFrom) {
		childNode, err := fs.resolveNode(childPath)
		if err != nil {
			return err
		}
		destChild := Join(cleanTo, childNode.Name)
		if childNode.IsDir() {
			if err := fs.CopyDirAll(childPath, destChild); err != nil {
				return err
			}
		} else {
			if err := fs.Copy(childPath, destChild); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveFile deletes a file entry. Its blocks are left in storage; nothing
// in this package reclaims them.
func (fs *FileSystem) RemoveFile(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	if IsRoot(clean) {
		return ErrIsRoot
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return ErrIsDir
	}
	meta, _ := fs.tree.Find(clean)
	fs.tree.ApplyOp(fs.tree.Opmove(trashParent, meta, clean))
	log.WithField("path", clean).WithField("op", "remove").Info("removed file")
	return nil
}

// RemoveDir deletes an empty directory entry.
func (fs *FileSystem) RemoveDir(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	if IsRoot(clean) {
		return ErrIsRoot
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if !node.IsDir() {
		return ErrNotDir
	}
	if len(fs.liveChildren(clean)) > 0 {
		return ErrNotEmpty
	}
	meta, _ := fs.tree.Find(clean)
	fs.tree.ApplyOp(fs.tree.Opmove(trashParent, meta, clean))
	log.WithField("path", clean).WithField("op", "rmdir").Info("removed directory")
	return nil
}

// RemoveDirAll recursively deletes path and everything under it.
func (fs *FileSystem) RemoveDirAll(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	if IsRoot(clean) {
		return ErrIsRoot
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if !node.IsDir() {
		return fs.RemoveFile(clean)
	}

	for _, childPath := range fs.liveChildren(clean) {
		if err := fs.RemoveDirAll(childPath); err != nil {
			return err
		}
	}

	meta, _ := fs.tree.Find(clean)
	fs.tree.ApplyOp(fs.tree.Opmove(trashParent, meta, clean))
	log.WithField("path", clean).WithField("op", "rmdir-all").Info("removed directory tree")
	return nil
}

// Rename moves the entry at from to to, which must not already exist and
// must not lie within from's own subtree.
func (fs *FileSystem) Rename(from, to string) error {
	cleanFrom, err := Clean(from)
	if err != nil {
		return err
	}
	cleanTo, err := Clean(to)
	if err != nil {
		return err
	}
	if IsRoot(cleanFrom) {
		return ErrIsRoot
	}
	if !fs.exists(cleanFrom) {
		return ErrNotFound
	}
	if IsDescendant(cleanFrom, cleanTo) {
		return fmt.Errorf("vfs: rename %s into itself: %w", cleanFrom, ErrInvalidArgument)
	}
	if fs.exists(cleanTo) {
		return ErrAlreadyExists
	}
	toParent := Parent(cleanTo)
	if !fs.exists(toParent) {
		return fmt.Errorf("vfs: rename to %s: %w", cleanTo, ErrNotFound)
	}

	meta, _ := fs.tree.Find(cleanFrom)
	fs.tree.ApplyOp(fs.tree.Opmove(toParent, meta, cleanTo))
	fs.tree.ApplyOp(fs.tree.Opmove(trashParent, meta, cleanFrom))
	log.WithField("path", cleanTo).WithField("op", "rename").Info("renamed entry")
	return nil
}

// ApplyOp folds a remote CRDT operation into the local tree, for
// synchronizing with another replica.
func (fs *FileSystem) ApplyOp(op crdt.Op) { fs.tree.ApplyOp(op) }

// ApplyOps folds a batch of remote CRDT operations into the local tree.
func (fs *FileSystem) ApplyOps(ops []crdt.Op) { fs.tree.ApplyOps(ops) }

// Ops returns every operation the local tree has applied, in timestamp
// order, for shipping to another replica.
func (fs *FileSystem) Ops() []crdt.Op { return fs.tree.Ops() }

// Time returns the local replica's current logical clock.
func (fs *FileSystem) Time() crdt.Timestamp { return fs.tree.Time() }

// PruneVersions discards every version of path's content but the current
// one.
func (fs *FileSystem) PruneVersions(path string) error {
	clean, err := Clean(path)
	if err != nil {
		return err
	}
	node, err := fs.resolveNode(clean)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return ErrIsDir
	}
	node.PruneToCurrent()
	return fs.saveNode(node)
}

// Destroy permanently removes the underlying storage.
func (fs *FileSystem) Destroy() error { return fs.storage.Destroy() }
