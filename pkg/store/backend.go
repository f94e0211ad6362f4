package store

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketNonverifiable = []byte("nonverifiable")
	bucketVerifiable    = []byte("verifiable_versions")
)

// backend is the on-disk persistence layer, grounded on the teacher's
// BoltStore: one bbolt database, one bucket per logical namespace, batched
// writes inside a single db.Update transaction per commit.
type backend struct {
	db *bolt.DB
}

func openBackend(dataDir string) (*backend, error) {
	dbPath := filepath.Join(dataDir, "state.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNonverifiable); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketVerifiable); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state buckets: %w", err)
	}
	return &backend{db: db}, nil
}

func (b *backend) close() error {
	return b.db.Close()
}

func (b *backend) nonverifiableGet(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNonverifiable).Get(key)
		if v != nil {
			value = append([]byte{}, v...)
		}
		return nil
	})
	return value, err
}

// nonverifiableApply commits a batch of nonverifiable writes in one
// transaction, the teacher's idiom for every mutating BoltStore method.
func (b *backend) nonverifiableApply(writes *orderedBytesWrites) error {
	if writes.len() == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNonverifiable)
		for _, k := range writes.order {
			op := writes.ops[k]
			if op.delete {
				if err := bucket.Delete([]byte(k)); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put([]byte(k), op.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// persistVersion writes the full live verifiable key/value set for version
// under its own sub-bucket, so any retained Snapshot can be reconstructed
// after a restart regardless of how many later versions have committed.
func (b *backend) persistVersion(version uint64, kv map[string][]byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketVerifiable)
		sub, err := root.CreateBucketIfNotExists(versionBucketName(version))
		if err != nil {
			return err
		}
		for k, v := range kv {
			if err := sub.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *backend) loadVersion(version uint64) (map[string][]byte, error) {
	kv := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketVerifiable)
		sub := root.Bucket(versionBucketName(version))
		if sub == nil {
			return fmt.Errorf("no persisted version %d", version)
		}
		return sub.ForEach(func(k, v []byte) error {
			kv[string(k)] = append([]byte{}, v...)
			return nil
		})
	})
	return kv, err
}

func versionBucketName(version uint64) []byte {
	return []byte(fmt.Sprintf("v%020d", version))
}

// writeOp is a pending mutation: either a value to set, or a tombstone.
type writeOp struct {
	delete bool
	value  []byte
}

// orderedBytesWrites preserves first-insertion order while deduplicating by
// key (last write wins), used for nonverifiable batches where the write
// order also decides bbolt transaction application order.
type orderedBytesWrites struct {
	order []string
	ops   map[string]*writeOp
}

func newOrderedBytesWrites() *orderedBytesWrites {
	return &orderedBytesWrites{ops: make(map[string]*writeOp)}
}

func (w *orderedBytesWrites) set(key string, op *writeOp) {
	if _, ok := w.ops[key]; !ok {
		w.order = append(w.order, key)
	}
	w.ops[key] = op
}

func (w *orderedBytesWrites) len() int { return len(w.order) }
