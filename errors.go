package shelter

import (
	"errors"
	"fmt"

	"github.com/rusty-shelter/rusty-shelter/block"
	"github.com/rusty-shelter/rusty-shelter/cipher"
	"github.com/rusty-shelter/rusty-shelter/store"
	"github.com/rusty-shelter/rusty-shelter/vfs"
)

//Kind classifies an Error so callers can branch on it without matching
//message text
type Kind int

//The closed set of failure kinds a Repository operation ever reports
const (
	KindOther Kind = iota
	KindInvalidArgument
	KindInvalidPath
	KindNotFound
	KindAlreadyExists
	KindIsRoot
	KindIsDir
	KindIsFile
	KindNotDir
	KindNotFile
	KindNotEmpty
	KindNoVersion
	KindReadOnly
	KindCannotRead
	KindCannotWrite
	KindNotFinish
	KindClosed
	KindAuthFailure
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidPath:
		return "invalid path"
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindIsRoot:
		return "is root"
	case KindIsDir:
		return "is a directory"
	case KindIsFile:
		return "is a file"
	case KindNotDir:
		return "not a directory"
	case KindNotFile:
		return "not a file"
	case KindNotEmpty:
		return "not empty"
	case KindNoVersion:
		return "no such version"
	case KindReadOnly:
		return "read-only repository"
	case KindCannotRead:
		return "not open for reading"
	case KindCannotWrite:
		return "not open for writing"
	case KindNotFinish:
		return "write in progress"
	case KindClosed:
		return "closed"
	case KindAuthFailure:
		return "authentication failure"
	case KindCorrupt:
		return "corrupt"
	default:
		return "error"
	}
}

//Error is returned by every Repository and File operation that fails. It
//names the operation and path involved, mirroring os.PathError, plus a Kind
//a caller can branch on with errors.Is/errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("shelter: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("shelter: %s %s: %v", e.Op, e.Path, e.Err)
}

//Unwrap exposes the underlying error so errors.Is/errors.As see through to
//the vfs/store/cipher/block sentinel it wraps
func (e *Error) Unwrap() error { return e.Err }

//ErrReadOnly is returned by mutating operations on a Repository opened with
//the ReadOnly option
var ErrReadOnly = errors.New("shelter: repository is read-only")

var kindTable = []struct {
	err  error
	kind Kind
}{
	{vfs.ErrInvalidArgument, KindInvalidArgument},
	{vfs.ErrInvalidPath, KindInvalidPath},
	{vfs.ErrNotFound, KindNotFound},
	{store.ErrNotFound, KindNotFound},
	{vfs.ErrAlreadyExists, KindAlreadyExists},
	{vfs.ErrIsRoot, KindIsRoot},
	{vfs.ErrIsDir, KindIsDir},
	{vfs.ErrIsFile, KindIsFile},
	{vfs.ErrNotDir, KindNotDir},
	{vfs.ErrNotFile, KindNotFile},
	{vfs.ErrNotEmpty, KindNotEmpty},
	{vfs.ErrNoVersion, KindNoVersion},
	{vfs.ErrReadOnly, KindReadOnly},
	{ErrReadOnly, KindReadOnly},
	{vfs.ErrCannotRead, KindCannotRead},
	{vfs.ErrCannotWrite, KindCannotWrite},
	{vfs.ErrNotFinish, KindNotFinish},
	{vfs.ErrClosed, KindClosed},
	{cipher.ErrAuthFailure, KindAuthFailure},
	{store.ErrAuthFailure, KindAuthFailure},
	{block.ErrCorrupt, KindCorrupt},
	{store.ErrCorrupt, KindCorrupt},
}

func kindOf(err error) Kind {
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindOther
}

//wrapErr annotates err with the operation and path it occurred on, or
//returns nil unchanged
func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kindOf(err), Op: op, Path: path, Err: err}
}
