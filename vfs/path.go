package vfs

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidPath is returned when a path cannot name a node in the
// repository: it is empty or not absolute.
var ErrInvalidPath = errors.New("vfs: invalid path")

// RootPath is the path of the repository root directory.
const RootPath = "/"

// Clean validates and normalizes p into the canonical absolute form the
// tree stores paths under ("/", "/a", "/a/b", never a trailing slash
// except for the root itself).
func Clean(p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c == "." {
		c = "/"
	}
	return c, nil
}

// IsRoot reports whether p names the repository root.
func IsRoot(p string) bool {
	return p == RootPath
}

// Parent returns the directory containing p. The parent of the root is the
// root itself.
func Parent(p string) string {
	if IsRoot(p) {
		return RootPath
	}
	dir := path.Dir(p)
	return dir
}

// Base returns the final path component of p.
func Base(p string) string {
	if IsRoot(p) {
		return RootPath
	}
	return path.Base(p)
}

// Join appends name as a child of parent.
func Join(parent, name string) string {
	if IsRoot(parent) {
		return "/" + name
	}
	return parent + "/" + name
}

// IsDescendant reports whether child lies at or under parent in the path
// hierarchy, used to reject moves/copies into one's own subtree.
func IsDescendant(parent, child string) bool {
	if parent == child {
		return true
	}
	if IsRoot(parent) {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}
