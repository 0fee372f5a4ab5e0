// Package crdt implements the move-tree CRDT (Kleppmann et al.) that backs
// the repository's directory structure: a log of timestamped move
// operations that every replica can apply in any order and still converge
// on the same tree.
package crdt

import "fmt"

// Timestamp totally orders operations across replicas: a Lamport counter
// broken by actor id so no two timestamps ever tie.
type Timestamp struct {
	Counter uint64
	Actor   string
}

// Less reports whether t sorts before other.
func (t Timestamp) Less(other Timestamp) bool {
	if t.Counter != other.Counter {
		return t.Counter < other.Counter
	}
	return t.Actor < other.Actor
}

// Equal reports whether t and other name the same logical moment.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.Counter == other.Counter && t.Actor == other.Actor
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d@%s", t.Counter, t.Actor)
}
