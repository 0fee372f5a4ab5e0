package block

import "errors"

var (
	errInvalidID      = errors.New("block: invalid id length")
	errBadSignature   = errors.New("block: bad envelope signature")
	errBadType        = errors.New("block: unknown block type")
	errTruncated      = errors.New("block: truncated envelope")
	errDigestMismatch = errors.New("block: digest does not match block data")
)

// ErrCorrupt wraps any of the above into a single sentinel callers can match
// against with errors.Is, regardless of which structural check failed.
var ErrCorrupt = errors.New("block: corrupt")
