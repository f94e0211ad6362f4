package store

import (
	"crypto/sha256"
	"fmt"
	"sort"

	ics23 "github.com/bnb-chain/ics23/go"
)

// merkleTree is a deterministic binary hash tree rebuilt over the full,
// sorted live key set on every commit. It stands in for the Jellyfish
// Merkle Tree named in spec §4.1: no Go port of a JMT exists anywhere in
// the retrieved example pack, and the pack's one production versioned-tree
// library (tendermint/iavl) requires a backing key-value abstraction that
// is not present in the pack either, so it isn't pulled in (see DESIGN.md).
// This tree trades the JMT's O(log n) incremental update for a simple,
// fully-deterministic O(n log n) rebuild, while still producing real
// ICS-23 inclusion/non-inclusion proofs for the externally-visible
// get_with_proof contract.
type merkleTree struct {
	leaves []treeLeaf // sorted by key
}

type treeLeaf struct {
	key   string
	value []byte
	hash  []byte
}

var leafPrefix = []byte{0x00}
var innerPrefix = []byte{0x01}

func leafHash(key string, value []byte) []byte {
	h := sha256.New()
	h.Write(leafPrefix)
	h.Write([]byte(key))
	h.Write(value)
	return h.Sum(nil)
}

func innerHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write(innerPrefix)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// emptyRoot is the root hash of a tree with no live keys.
func emptyRoot() []byte {
	h := sha256.Sum256(nil)
	return h[:]
}

func buildTree(kv map[string][]byte) *merkleTree {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([]treeLeaf, len(keys))
	for i, k := range keys {
		v := kv[k]
		leaves[i] = treeLeaf{key: k, value: v, hash: leafHash(k, v)}
	}
	return &merkleTree{leaves: leaves}
}

// root returns the tree's root hash, computed bottom-up, odd nodes at each
// level promoted unchanged (no duplication of the last node).
func (t *merkleTree) root() []byte {
	if len(t.leaves) == 0 {
		return emptyRoot()
	}
	level := make([][]byte, len(t.leaves))
	for i, l := range t.leaves {
		level[i] = l.hash
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, innerHash(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

// index returns the sorted position of key and whether it is present. When
// absent, the returned index is where key would be inserted, used to find
// the left/right neighbors for a non-existence proof.
func (t *merkleTree) index(key string) (int, bool) {
	i := sort.Search(len(t.leaves), func(i int) bool { return t.leaves[i].key >= key })
	if i < len(t.leaves) && t.leaves[i].key == key {
		return i, true
	}
	return i, false
}

// path returns the sibling-hash path from leaf i up to the root, as ICS-23
// inner operations. Each step records whether the current subtree is the
// left or right child so the verifier recomputes the same innerHash order.
func (t *merkleTree) path(i int) []*ics23.InnerOp {
	level := make([][]byte, len(t.leaves))
	for idx, l := range t.leaves {
		level[idx] = l.hash
	}
	var ops []*ics23.InnerOp
	pos := i
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			if j+1 < len(level) {
				left, right := level[j], level[j+1]
				switch pos {
				case j:
					ops = append(ops, &ics23.InnerOp{
						Hash:   ics23.HashOp_SHA256,
						Prefix: innerPrefix,
						Suffix: right,
					})
					pos = len(next)
				case j + 1:
					suffix := append(append([]byte{}, innerPrefix...), left...)
					ops = append(ops, &ics23.InnerOp{
						Hash:   ics23.HashOp_SHA256,
						Prefix: suffix,
						Suffix: nil,
					})
					pos = len(next)
				}
				next = append(next, innerHash(left, right))
			} else {
				if pos == j {
					pos = len(next)
				}
				next = append(next, level[j])
			}
		}
		level = next
	}
	return ops
}

// existenceProof builds an ICS-23 proof that key maps to its current value.
func (t *merkleTree) existenceProof(key string) (*ics23.ExistenceProof, error) {
	i, ok := t.index(key)
	if !ok {
		return nil, fmt.Errorf("key %q not present", key)
	}
	leaf := t.leaves[i]
	return &ics23.ExistenceProof{
		Key:   []byte(leaf.key),
		Value: leaf.value,
		Leaf: &ics23.LeafOp{
			Hash:   ics23.HashOp_SHA256,
			Prefix: leafPrefix,
		},
		Path: t.path(i),
	}, nil
}

// nonExistenceProof builds an ICS-23 proof that key is absent, anchored by
// its left and right sorted-order neighbors (either may be nil at the
// boundary of the key space).
func (t *merkleTree) nonExistenceProof(key string) (*ics23.NonExistenceProof, error) {
	i, ok := t.index(key)
	if ok {
		return nil, fmt.Errorf("key %q is present", key)
	}
	proof := &ics23.NonExistenceProof{Key: []byte(key)}
	if i > 0 {
		left, err := t.existenceProof(t.leaves[i-1].key)
		if err != nil {
			return nil, err
		}
		proof.Left = left
	}
	if i < len(t.leaves) {
		right, err := t.existenceProof(t.leaves[i].key)
		if err != nil {
			return nil, err
		}
		proof.Right = right
	}
	return proof, nil
}
