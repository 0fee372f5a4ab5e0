package block

import (
	"encoding/json"
	"fmt"

	"github.com/rs/xid"
)

// ID names a mutable slot in the block store. Unlike a block address, which
// is derived from content and never changes, an ID stays fixed across the
// lifetime of whatever it names while the block stored under it is replaced
// version after version. It is a 12-byte, roughly time-ordered value so IDs
// sort close to creation order without coordination between writers.
type ID [12]byte

// NewID allocates a fresh, time-ordered ID.
func NewID() ID {
	var id ID
	copy(id[:], xid.New().Bytes())
	return id
}

// Magic is the well-known ID of the repository root directory node.
var Magic = ID{42}

func (id ID) String() string {
	return xid.ID(id).String()
}

// Bytes returns the raw 12-byte encoding of id.
func (id ID) Bytes() []byte {
	return id[:]
}

// IDFromBytes reconstructs an ID previously produced by Bytes.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != len(id) {
		return id, errInvalidID
	}
	copy(id[:], b)
	return id, nil
}

// MarshalJSON encodes id as its xid string form rather than a raw byte
// array, so persisted nodes stay human-readable.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the xid string form written by MarshalJSON.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := xid.FromString(s)
	if err != nil {
		return fmt.Errorf("block: parse id: %w", err)
	}
	copy(id[:], parsed.Bytes())
	return nil
}
