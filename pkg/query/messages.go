package query

import ics23 "github.com/bnb-chain/ics23/go"

// KeyValueRequest asks for a single verifiable key, optionally with an
// ICS-23 proof of its presence or absence.
type KeyValueRequest struct {
	Key       string `json:"key"`
	WithProof bool   `json:"with_proof"`
}

// KeyValueResponse carries the value (nil if the key is absent) and,
// if requested, the commitment proof for it.
type KeyValueResponse struct {
	Value   []byte                   `json:"value,omitempty"`
	Version uint64                   `json:"version"`
	Proof   *ics23.CommitmentProof   `json:"proof,omitempty"`
}

// PrefixValueRequest asks for every live key under Prefix.
type PrefixValueRequest struct {
	Prefix string `json:"prefix"`
}

// KV is one key/value pair in a PrefixValueResponse.
type KV struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// PrefixValueResponse carries every live key under the requested prefix,
// in ascending key order.
type PrefixValueResponse struct {
	Entries []KV   `json:"entries"`
	Version uint64 `json:"version"`
}
