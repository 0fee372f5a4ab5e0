package crdt

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/rusty-shelter/rusty-shelter/block"
)

var log = logrus.WithField("pkg", "crdt")

// ErrMissingParent names a path that has no entry in the tree. Nothing in
// this package returns it: Find reports a missing path through its boolean
// result, and Children returns an empty slice.
var ErrMissingParent = errors.New("crdt: no such path")

// Op is a single timestamped move: "child becomes (or stays) a child of
// parent, identified by meta". Applying the same Op twice, or applying a
// set of Ops in any order, converges to the same tree.
type Op struct {
	Time   Timestamp
	Parent string
	Meta   block.ID
	Child  string
}

// triple is the tree's current entry for a given child path.
type triple struct {
	Parent string
	Meta   block.ID
}

// logEntry pairs an applied Op with what it overwrote, so it can be undone
// when an earlier-timestamped Op arrives later and has to be replayed in
// front of it.
type logEntry struct {
	op  Op
	had triple
	has bool // whether `had` is meaningful (the child existed before op)
}

// Replica holds one actor's view of the move-tree. All of its exported
// methods are safe for concurrent use.
type Replica struct {
	mu     sync.RWMutex
	actor  string
	clock  uint64
	log    []logEntry
	tree   map[string]triple
}

// NewReplica returns an empty replica identified by actor. If actor is
// empty, a fresh random actor id is generated.
func NewReplica(actor string) *Replica {
	if actor == "" {
		actor = xid.New().String()
	}
	return &Replica{
		actor: actor,
		tree:  make(map[string]triple),
	}
}

// Actor returns this replica's actor id.
func (r *Replica) Actor() string {
	return r.actor
}

// Time returns the current logical time, without advancing it.
func (r *Replica) Time() Timestamp {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Timestamp{Counter: r.clock, Actor: r.actor}
}

// tick advances the clock and returns a fresh timestamp. Callers must hold
// r.mu for writing.
func (r *Replica) tick() Timestamp {
	r.clock++
	return Timestamp{Counter: r.clock, Actor: r.actor}
}

// observe folds a foreign timestamp into the local clock so a subsequent
// tick always sorts after anything already seen.
func (r *Replica) observe(t Timestamp) {
	if t.Counter > r.clock {
		r.clock = t.Counter
	}
}

// Opmove builds a new Op moving child under parent with the given metadata,
// stamped with a freshly ticked local timestamp. It does not apply the Op;
// call ApplyOp with the result.
func (r *Replica) Opmove(parent string, meta block.ID, child string) Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Op{Time: r.tick(), Parent: parent, Meta: meta, Child: child}
}

// ApplyOp folds op into the tree. Applying the same Op more than once, or
// applying a batch of Ops in different orders across replicas, always
// yields the same resulting tree (given the same final Op set).
func (r *Replica) ApplyOp(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.WithField("path", op.Child).WithField("op", "move").Debug("applying op")
	r.observe(op.Time)
	r.applyLocked(op)
}

// ApplyOps folds a batch of Ops, in the order given, into the tree.
func (r *Replica) ApplyOps(ops []Op) {
	for _, op := range ops {
		r.ApplyOp(op)
	}
}

// applyLocked inserts op into the timestamp-ordered log, undoing and
// redoying any later-timestamped entries so the tree always reflects
// replaying the whole log in timestamp order. Callers must hold r.mu.
func (r *Replica) applyLocked(op Op) {
	pos := sort.Search(len(r.log), func(i int) bool {
		return op.Time.Less(r.log[i].op.Time)
	})

	// Idempotent: an Op with this exact timestamp is already applied.
	if pos > 0 && r.log[pos-1].op.Time.Equal(op.Time) {
		return
	}

	tail := make([]Op, len(r.log)-pos)
	for i := len(r.log) - 1; i >= pos; i-- {
		r.undoLocked(r.log[i])
		tail[i-pos] = r.log[i].op
	}
	r.log = r.log[:pos]

	r.log = append(r.log, r.doLocked(op))
	for _, redo := range tail {
		r.log = append(r.log, r.doLocked(redo))
	}
}

// doLocked applies op's effect to the tree (skipping it, per the algorithm,
// if it would create a cycle) and returns the log entry recording what it
// replaced, so it can be undone later.
func (r *Replica) doLocked(op Op) logEntry {
	had, has := r.tree[op.Child]

	if op.Parent == op.Child || r.isDescendantLocked(op.Parent, op.Child) {
		// Moving a node under itself or one of its own descendants would
		// create a cycle; the move is still logged but has no tree effect.
		log.WithField("path", op.Child).WithField("op", "move").Warn("rejected cycle-forming move")
		return logEntry{op: op, had: had, has: has}
	}

	delete(r.tree, op.Child)
	r.tree[op.Child] = triple{Parent: op.Parent, Meta: op.Meta}

	return logEntry{op: op, had: had, has: has}
}

// undoLocked reverts exactly what the matching doLocked call changed.
func (r *Replica) undoLocked(e logEntry) {
	delete(r.tree, e.op.Child)
	if e.has {
		r.tree[e.op.Child] = e.had
	}
}

// isDescendantLocked reports whether node is found by walking up from
// candidate's ancestor chain, i.e. whether placing node under candidate
// would make node a descendant of itself.
func (r *Replica) isDescendantLocked(candidate, node string) bool {
	seen := make(map[string]bool)
	cur := candidate
	for {
		if cur == node {
			return true
		}
		if seen[cur] {
			return false // already-broken cycle in stored state; stop rather than loop forever
		}
		seen[cur] = true
		t, ok := r.tree[cur]
		if !ok {
			return false
		}
		cur = t.Parent
	}
}

// Find returns the metadata currently associated with path.
func (r *Replica) Find(path string) (block.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tree[path]
	return t.Meta, ok
}

// ParentOf returns the parent currently recorded for path. Callers use this
// to distinguish a live entry from one that has been moved under a
// tombstone parent by a higher-level remove operation.
func (r *Replica) ParentOf(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tree[path]
	return t.Parent, ok
}

// Children returns the paths directly parented by path, in no particular
// order.
func (r *Replica) Children(path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for child, t := range r.tree {
		if t.Parent == path {
			out = append(out, child)
		}
	}
	return out
}

// Exists reports whether path currently has a tree entry.
func (r *Replica) Exists(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tree[path]
	return ok
}

// Ops returns every Op currently in the log, in timestamp order. Useful for
// replicating state to another Replica.
func (r *Replica) Ops() []Op {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Op, len(r.log))
	for i, e := range r.log {
		out[i] = e.op
	}
	return out
}
