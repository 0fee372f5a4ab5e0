package shelter

import (
	"github.com/rusty-shelter/rusty-shelter/vfs"
)

//PathSeparator joins path components; every path a Repository accepts is
//absolute and slash-separated regardless of host platform
const PathSeparator = "/"

//RootPath names the repository root directory
const RootPath = vfs.RootPath

//CleanPath validates and normalizes p into the canonical form the
//repository stores paths under
func CleanPath(p string) (string, error) {
	return vfs.Clean(p)
}
