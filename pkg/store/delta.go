package store

import (
	"fmt"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// deltaState tracks the Delta lifecycle named in spec §4.1: a Delta starts
// Open, and transitions exactly once to either Folded (merged into its
// parent, or committed into the Engine) or Discarded (thrown away). Any
// further use after that is a programming error, not a recoverable one.
type deltaState int

const (
	deltaOpen deltaState = iota
	deltaFolded
	deltaDiscarded
)

// Delta is a copy-on-write write-stack forked from a Reader (a Snapshot or
// another Delta). Writes accumulate in memory; nothing is visible outside
// the Delta until it is Folded into its parent or, for a top-level delta,
// committed via Engine.Commit.
type Delta struct {
	mu sync.Mutex

	parent Reader
	engine *Engine // set only on the top-level delta handed to Engine.Commit
	state  deltaState

	verWrites *orderedBytesWrites
	nvWrites  *orderedBytesWrites
	objects   map[string]Cloner
	events    []abcitypes.Event

	substoreDeltas map[string]*Delta
}

// NewDeltaFrom forks a Delta directly from any Reader (a Snapshot, or
// another Delta for nested isolation). Engine.NewDelta is the usual
// top-level entry point; this is for callers — like the mempool, forking
// against a cached Snapshot rather than an Engine's current latest — that
// need to pick the parent explicitly.
func NewDeltaFrom(parent Reader) *Delta {
	return newDelta(parent)
}

func newDelta(parent Reader) *Delta {
	return &Delta{
		parent:         parent,
		state:          deltaOpen,
		verWrites:      newOrderedBytesWrites(),
		nvWrites:       newOrderedBytesWrites(),
		objects:        make(map[string]Cloner),
		substoreDeltas: make(map[string]*Delta),
	}
}

func (d *Delta) requireOpen() error {
	switch d.state {
	case deltaFolded:
		return fmt.Errorf("delta already folded")
	case deltaDiscarded:
		return fmt.Errorf("delta already discarded")
	}
	return nil
}

// Fork returns a new Delta whose parent is d, for callers that want to
// attempt writes they may later discard wholesale (e.g. speculative action
// execution within check_and_execute).
func (d *Delta) Fork() *Delta {
	return newDelta(d)
}

// Version reports the version number of the Snapshot this Delta (or chain
// of deltas) is ultimately forked from. The Delta itself has no version of
// its own until it is committed.
func (d *Delta) Version() uint64 { return d.parent.Version() }

// RootHash reports the root hash of the underlying Snapshot, unaffected by
// this Delta's pending writes (it is only updated at commit).
func (d *Delta) RootHash() []byte { return d.parent.RootHash() }

// Get resolves key against this Delta's own pending writes first, falling
// back to the parent Reader.
func (d *Delta) Get(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	d.mu.Lock()
	op, ok := d.verWrites.ops[key]
	d.mu.Unlock()
	if ok {
		if op.delete {
			return nil, nil
		}
		return append([]byte{}, op.value...), nil
	}
	return d.parent.Get(key)
}

// Put stages a verifiable write, visible to subsequent Gets on this Delta
// (and any Delta forked from it) but invisible outside it until Fold or
// Commit.
func (d *Delta) Put(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := d.requireOpen(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verWrites.set(key, &writeOp{value: append([]byte{}, value...)})
	return nil
}

// Delete stages a verifiable tombstone.
func (d *Delta) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := d.requireOpen(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verWrites.set(key, &writeOp{delete: true})
	return nil
}

// NonverifiableGet resolves a byte key against pending writes, then the
// parent Reader.
func (d *Delta) NonverifiableGet(key []byte) ([]byte, error) {
	if err := ValidateNonverifiableKey(key); err != nil {
		return nil, err
	}
	d.mu.Lock()
	op, ok := d.nvWrites.ops[string(key)]
	d.mu.Unlock()
	if ok {
		if op.delete {
			return nil, nil
		}
		return append([]byte{}, op.value...), nil
	}
	return d.parent.NonverifiableGet(key)
}

func (d *Delta) NonverifiablePut(key, value []byte) error {
	if err := ValidateNonverifiableKey(key); err != nil {
		return err
	}
	if err := d.requireOpen(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nvWrites.set(string(key), &writeOp{value: append([]byte{}, value...)})
	return nil
}

func (d *Delta) NonverifiableDelete(key []byte) error {
	if err := ValidateNonverifiableKey(key); err != nil {
		return err
	}
	if err := d.requireOpen(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nvWrites.set(string(key), &writeOp{delete: true})
	return nil
}

// ObjectPut stores an ephemeral, typed value under name, scoped to this
// Delta and any Delta folded into it. Never merkleized, never persisted,
// dropped when the owning Engine commits.
func (d *Delta) ObjectPut(name string, value Cloner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[name] = value
}

// ObjectGet returns a clone of the value stored under name, so the caller
// can never mutate another reader's view of it.
func (d *Delta) ObjectGet(name string) (Cloner, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.objects[name]
	if !ok {
		if parentDelta, ok2 := d.parent.(*Delta); ok2 {
			return parentDelta.ObjectGet(name)
		}
		return nil, false
	}
	return v.Clone(), true
}

// Record appends a typed event to this Delta's buffer. Events are not
// visible in any query surface until the Delta is folded (propagating them
// to the parent) and ultimately committed.
func (d *Delta) Record(event abcitypes.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

// Events returns the events buffered directly on this Delta, in record
// order. It does not include events already folded from children unless
// those children were folded into this Delta first.
func (d *Delta) Events() []abcitypes.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]abcitypes.Event{}, d.events...)
}

// Substore returns the Delta forked against the child Engine mounted at
// prefix, creating it on first use. The parent Delta must be the top-level
// delta owned by an Engine (i.e. the one returned by Engine.NewDelta).
func (d *Delta) Substore(prefix string) (*Delta, error) {
	if d.engine == nil {
		return nil, fmt.Errorf("substore access requires a top-level delta")
	}
	sub, ok := d.engine.substores[prefix]
	if !ok {
		return nil, fmt.Errorf("no substore mounted at %q", prefix)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.substoreDeltas[prefix]
	if !ok {
		child = sub.NewDelta()
		d.substoreDeltas[prefix] = child
	}
	return child, nil
}

// Fold merges this Delta's pending writes, events, and objects into its
// parent Delta (last write wins), then marks this Delta Folded. Folding a
// top-level delta (whose parent is a Snapshot) is an error: use
// Engine.Commit instead.
func (d *Delta) Fold() error {
	if err := d.requireOpen(); err != nil {
		return err
	}
	parent, ok := d.parent.(*Delta)
	if !ok {
		return fmt.Errorf("top-level delta must be committed via Engine.Commit, not Fold")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	parent.mu.Lock()
	defer parent.mu.Unlock()

	for _, k := range d.verWrites.order {
		parent.verWrites.set(k, d.verWrites.ops[k])
	}
	for _, k := range d.nvWrites.order {
		parent.nvWrites.set(k, d.nvWrites.ops[k])
	}
	for name, v := range d.objects {
		parent.objects[name] = v
	}
	parent.events = append(parent.events, d.events...)
	for prefix, childSub := range d.substoreDeltas {
		parent.substoreDeltas[prefix] = childSub
	}

	d.state = deltaFolded
	return nil
}

// Discard marks this Delta Discarded; none of its writes, events, or
// objects are ever visible anywhere. Used to unwind a speculative fork
// when a check fails mid-transaction (spec §4.3 atomicity).
func (d *Delta) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = deltaDiscarded
}
