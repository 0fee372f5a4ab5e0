package vfs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rusty-shelter/rusty-shelter/block"
)

// FileNode is the persistent record of one file or directory: its name,
// type, and (for files) the list of immutable versions its content has
// gone through.
type FileNode struct {
	ID       block.ID      `json:"id"`
	Name     string        `json:"name"`
	FileType FileType      `json:"file_type"`
	Version  int           `json:"version"`
	Versions []FileVersion `json:"versions"`
	CTime    time.Time     `json:"ctime"`
	MTime    time.Time     `json:"mtime"`
}

// NewFileNode returns a freshly allocated node with no content versions
// yet.
func NewFileNode(name string, typ FileType) *FileNode {
	now := time.Now().UTC()
	return &FileNode{
		ID:       block.NewID(),
		Name:     name,
		FileType: typ,
		CTime:    now,
		MTime:    now,
	}
}

func (n *FileNode) IsFile() bool { return n.FileType.IsFile() }
func (n *FileNode) IsDir() bool  { return n.FileType.IsDir() }
func (n *FileNode) IsRoot() bool { return n.Name == "/" }

// Metadata summarizes the node for callers.
func (n *FileNode) Metadata() Metadata {
	return Metadata{
		FileType: n.FileType,
		Len:      n.len(),
		Version:  n.Version,
		CTime:    n.CTime,
		MTime:    n.MTime,
	}
}

func (n *FileNode) len() int64 {
	if n.FileType == TypeDir {
		return 0
	}
	v, ok := n.GetVersion(n.Version)
	if !ok {
		return 0
	}
	return v.Len
}

// History returns every version this node has accumulated.
func (n *FileNode) History() []FileVersion {
	out := make([]FileVersion, len(n.Versions))
	copy(out, n.Versions)
	return out
}

// GetVersion returns a specific version record, if it exists.
func (n *FileNode) GetVersion(number int) (FileVersion, bool) {
	for _, v := range n.Versions {
		if v.Version == number {
			return v, true
		}
	}
	return FileVersion{}, false
}

// CurrentVersion returns the node's active version.
func (n *FileNode) CurrentVersion() (FileVersion, error) {
	v, ok := n.GetVersion(n.Version)
	if !ok {
		return FileVersion{}, ErrNoVersion
	}
	return v, nil
}

func (n *FileNode) currentContentID() (string, error) {
	v, err := n.CurrentVersion()
	if err != nil {
		return "", err
	}
	return v.ContentID, nil
}

// AddVersion appends a newly written FileContent as the node's current
// version: version 0 for a node with no versions yet, otherwise the
// previous current version number plus one.
func (n *FileNode) AddVersion(content *FileContent) {
	if len(n.Versions) > 0 {
		n.Version++
	}
	n.Versions = append(n.Versions, FileVersion{
		ContentID: content.ID.String(),
		Version:   n.Version,
		Len:       content.Len,
		CTime:     content.CTime,
	})
	n.MTime = time.Now().UTC()
}

// RemoveVersion deletes a non-current version's record. The caller is
// responsible for garbage collecting its FVER/BLOB blocks once no other
// version references them.
func (n *FileNode) RemoveVersion(number int) error {
	if number == n.Version {
		return fmt.Errorf("vfs: %w: cannot remove the current version", ErrInvalidArgument)
	}
	for i, v := range n.Versions {
		if v.Version == number {
			n.Versions = append(n.Versions[:i], n.Versions[i+1:]...)
			return nil
		}
	}
	return ErrNoVersion
}

// ClearVersions discards every version, resetting the node to its initial
// state.
func (n *FileNode) ClearVersions() {
	n.Version = 0
	n.Versions = nil
}

// PruneToCurrent discards every version but the current one, renumbering it
// to 0. Used by repositories that were not opened to keep full history.
func (n *FileNode) PruneToCurrent() {
	current, ok := n.GetVersion(n.Version)
	if !ok {
		return
	}
	current.Version = 0
	n.Versions = []FileVersion{current}
	n.Version = 0
}

func (n *FileNode) marshal() ([]byte, error) {
	return json.Marshal(n)
}

func unmarshalFileNode(data []byte) (*FileNode, error) {
	var n FileNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// fileNodeLock guards concurrent access to one open file's node, mirroring
// how the tree and the store each get their own lock rather than sharing a
// single repository-wide mutex.
type fileNodeLock struct {
	mu   sync.RWMutex
	node *FileNode
}

func newFileNodeLock(n *FileNode) *fileNodeLock {
	return &fileNodeLock{node: n}
}
