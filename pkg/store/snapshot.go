package store

import (
	"fmt"
	"sort"

	ics23 "github.com/bnb-chain/ics23/go"
)

// Reader is the read surface shared by Snapshot and Delta, so pipeline code
// can be written once against whichever is in scope.
type Reader interface {
	Get(key string) ([]byte, error)
	NonverifiableGet(key []byte) ([]byte, error)
	Version() uint64
	RootHash() []byte
}

// Snapshot is an immutable, cheaply-retained handle on one committed
// version of the store. It is safe to hold across goroutines and across
// later commits: a Snapshot's verifiable view never changes after it is
// returned by Engine.Commit or Engine.Latest. Nonverifiable reads are not
// versioned (see NonverifiableGet).
type Snapshot struct {
	version uint64
	root    []byte
	kv      map[string][]byte // the full live verifiable set at this version
	backend *backend
}

func (s *Snapshot) Version() uint64 { return s.version }
func (s *Snapshot) RootHash() []byte {
	return append([]byte{}, s.root...)
}

// Get reads a verifiable key. A missing key returns (nil, nil), matching
// bbolt/iavl "absence is not an error" convention.
func (s *Snapshot) Get(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	v, ok := s.kv[key]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, v...), nil
}

// GetWithProof reads a verifiable key together with an ICS-23 commitment
// proof of its presence (ExistenceProof) or absence (NonExistenceProof).
func (s *Snapshot) GetWithProof(key string) ([]byte, *ics23.CommitmentProof, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	tree := buildTree(s.kv)
	if v, ok := s.kv[key]; ok {
		exist, err := tree.existenceProof(key)
		if err != nil {
			return nil, nil, err
		}
		proof := &ics23.CommitmentProof{
			Proof: &ics23.CommitmentProof_Exist{Exist: exist},
		}
		return append([]byte{}, v...), proof, nil
	}
	nonExist, err := tree.nonExistenceProof(key)
	if err != nil {
		return nil, nil, err
	}
	proof := &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Nonexist{Nonexist: nonExist},
	}
	return nil, proof, nil
}

// PrefixIterate calls fn for every live verifiable key with the given
// prefix, in ascending key order, stopping early if fn returns false.
func (s *Snapshot) PrefixIterate(prefix string, fn func(key string, value []byte) bool) error {
	keys := make([]string, 0, len(s.kv))
	for k := range s.kv {
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, s.kv[k]) {
			break
		}
	}
	return nil
}

// NonverifiableGet reads the nonverifiable plane directly from the backing
// bbolt database; this plane has no per-version history, it always reads
// the latest committed value.
func (s *Snapshot) NonverifiableGet(key []byte) ([]byte, error) {
	if err := ValidateNonverifiableKey(key); err != nil {
		return nil, err
	}
	return s.backend.nonverifiableGet(key)
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{version=%d, root=%x}", s.version, s.root)
}
