package store

// Cloner is implemented by values placed in the ephemeral object store.
// Get returns a clone, never the stored value itself, so a caller mutating
// its copy can never corrupt another caller's view within the same Delta.
type Cloner interface {
	Clone() Cloner
}

// SourceTransactionKey is the well-known ephemeral object store key the
// driver writes once per deliver_tx, before invoking the pipeline, so
// components can attribute state changes to the delivering transaction
// without threading an extra parameter through every hook and action
// handler (spec §4.2/§4.3/§9 "source tagging").
const SourceTransactionKey = "source_transaction_id"

// TxID is a Cloner wrapping a transaction identifier, the concrete type
// stored under SourceTransactionKey.
type TxID string

func (t TxID) Clone() Cloner { return t }
