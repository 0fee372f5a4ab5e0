package vfs

// OpenOptions is a bitset of flags controlling how FileSystem.OpenFile
// behaves, mirroring the combinations a POSIX open(2) caller would pass.
type OpenOptions uint8

const (
	// OpenRead permits reading the file's current version.
	OpenRead OpenOptions = 1 << iota
	// OpenWrite permits writing a new version of the file.
	OpenWrite
	// OpenCreate creates the file if it does not already exist.
	OpenCreate
	// OpenCreateNew creates the file, failing with ErrAlreadyExists if it
	// already exists.
	OpenCreateNew
	// OpenTruncate, combined with OpenWrite, starts the new version empty
	// regardless of what the previous version held.
	OpenTruncate
	// OpenAppend marks the open as mutating. It does not carry the current
	// version's bytes over: like every write, the first Write starts a new
	// version that is empty.
	OpenAppend
)

func (o OpenOptions) has(flag OpenOptions) bool { return o&flag != 0 }

func (o OpenOptions) canRead() bool  { return o.has(OpenRead) }
func (o OpenOptions) canWrite() bool { return o.has(OpenWrite) }

// validate rejects combinations that can never be satisfied.
func (o OpenOptions) validate() error {
	if !o.canRead() && !o.canWrite() {
		return ErrInvalidArgument
	}
	if o.has(OpenCreateNew) && !o.canWrite() {
		return ErrInvalidArgument
	}
	if o.has(OpenTruncate) && !o.canWrite() {
		return ErrInvalidArgument
	}
	return nil
}
