package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/penumbra-zone/cnidarium-core/pkg/log"
)

// Engine owns one versioned, merkleized key-value store: the verifiable
// plane (committed into a merkleTree), the nonverifiable plane (committed
// directly into bbolt), and the bookkeeping needed to retain every
// committed Snapshot indefinitely (spec §3.2: a Snapshot remains valid
// regardless of later commits).
type Engine struct {
	mu sync.Mutex // commits are serialized, one delta stack at a time (spec §5)

	backend *backend
	kv      map[string][]byte // current live verifiable key set, mutated only at commit

	latest    *Snapshot
	snapshots map[uint64]*Snapshot // retained so any prior version can still be read

	notifier *snapshotNotifier

	substores map[string]*Engine // child engines mounted at a verifiable prefix
}

// Open opens (or creates) an Engine backed by a bbolt database under
// dataDir, at version 0 with an empty verifiable key set if this is a
// fresh store.
func Open(dataDir string) (*Engine, error) {
	b, err := openBackend(dataDir)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		backend:   b,
		kv:        make(map[string][]byte),
		snapshots: make(map[uint64]*Snapshot),
		notifier:  newSnapshotNotifier(),
		substores: make(map[string]*Engine),
	}
	root := buildTree(e.kv).root()
	snap := &Snapshot{version: 0, root: root, kv: cloneKV(e.kv), backend: b}
	e.latest = snap
	e.snapshots[0] = snap
	return e, nil
}

func cloneKV(kv map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(kv))
	for k, v := range kv {
		out[k] = append([]byte{}, v...)
	}
	return out
}

// Mount attaches a child Engine at prefix: its root hash is folded into
// this Engine's verifiable tree, at key prefix, on every Commit (spec
// §4.1 "substores... each with its own JMT whose root is committed into
// the parent").
func (e *Engine) Mount(prefix string, sub *Engine) error {
	if err := ValidateKey(prefix); err != nil {
		return fmt.Errorf("invalid substore prefix: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.substores[prefix]; ok {
		return fmt.Errorf("substore already mounted at %q", prefix)
	}
	e.substores[prefix] = sub
	return nil
}

// Latest returns the most recently committed Snapshot.
func (e *Engine) Latest() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// AtVersion returns a previously committed Snapshot by version, loading it
// from disk if it has been evicted from memory.
func (e *Engine) AtVersion(version uint64) (*Snapshot, error) {
	e.mu.Lock()
	if snap, ok := e.snapshots[version]; ok {
		e.mu.Unlock()
		return snap, nil
	}
	e.mu.Unlock()

	kv, err := e.backend.loadVersion(version)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", version, err)
	}
	root := buildTree(kv).root()
	snap := &Snapshot{version: version, root: root, kv: kv, backend: e.backend}

	e.mu.Lock()
	e.snapshots[version] = snap
	e.mu.Unlock()
	return snap, nil
}

// NewDelta forks a new top-level Delta from the latest Snapshot, wired to
// this Engine so it can reach mounted substores.
func (e *Engine) NewDelta() *Delta {
	d := newDelta(e.Latest())
	d.engine = e
	return d
}

// Subscribe returns a channel that receives every future committed
// Snapshot (spec §4.5's mempool notification channel).
func (e *Engine) Subscribe() <-chan *Snapshot {
	return e.notifier.Subscribe()
}

func (e *Engine) Unsubscribe(ch <-chan *Snapshot) {
	e.notifier.Unsubscribe(ch)
}

// Commit applies a top-level Delta's pending writes, bottom-up through any
// mounted substores first, producing the next Snapshot. The commit
// algorithm:
//
//  1. commit every substore the Delta touched, writing each child's new
//     root hash into the parent Delta at its mount prefix;
//  2. apply the parent Delta's own verifiable writes, in sorted key order,
//     to the live key set and persist the resulting version;
//  3. apply the nonverifiable writes as a single bbolt transaction;
//  4. publish the new Snapshot to subscribers.
//
// All of it succeeds or none of it does: a failure at any step leaves the
// Engine's prior Snapshot the latest one, and the Delta is left Open so
// the caller can inspect what failed (spec §4.1 atomicity).
func (e *Engine) Commit(d *Delta) (*Snapshot, error) {
	if err := d.requireOpen(); err != nil {
		return nil, err
	}
	if _, ok := d.parent.(*Snapshot); !ok {
		return nil, fmt.Errorf("only a top-level delta (forked from a Snapshot) can be committed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for prefix, sub := range d.substoreDeltas {
		subEngine, ok := e.substores[prefix]
		if !ok {
			return nil, fmt.Errorf("delta references unmounted substore %q", prefix)
		}
		subSnap, err := subEngine.Commit(sub)
		if err != nil {
			return nil, fmt.Errorf("commit substore %q: %w", prefix, err)
		}
		d.verWrites.set(prefix, &writeOp{value: subSnap.RootHash()})
	}

	next := cloneKV(e.kv)
	keys := append([]string{}, d.verWrites.order...)
	sort.Strings(keys)
	for _, k := range keys {
		op := d.verWrites.ops[k]
		if op.delete {
			delete(next, k)
		} else {
			next[k] = op.value
		}
	}

	newVersion := e.latest.version + 1
	if err := e.backend.persistVersion(newVersion, next); err != nil {
		return nil, fmt.Errorf("persist version %d: %w", newVersion, err)
	}
	if err := e.backend.nonverifiableApply(d.nvWrites); err != nil {
		return nil, fmt.Errorf("apply nonverifiable writes: %w", err)
	}

	root := buildTree(next).root()
	snap := &Snapshot{version: newVersion, root: root, kv: next, backend: e.backend}

	e.kv = next
	e.latest = snap
	e.snapshots[newVersion] = snap

	d.state = deltaFolded
	e.notifier.publish(snap)

	log.WithComponent("store").Debug().
		Uint64("store_version", newVersion).
		Int("writes", len(keys)).
		Int("nv_writes", d.nvWrites.len()).
		Msg("committed snapshot")

	return snap, nil
}

// Close releases the backing database. Mounted substores are closed too.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.substores {
		_ = sub.Close()
	}
	return e.backend.close()
}
