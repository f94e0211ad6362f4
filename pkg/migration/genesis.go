package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// GenesisDoc is the minimal genesis document a freshly migrated node needs
// to hand to its consensus engine at InitChain. Field names mirror
// CometBFT's own genesis.json so an operator can hand this file directly
// to a cometbft node.
type GenesisDoc struct {
	GenesisTime   time.Time       `json:"genesis_time"`
	ChainID       string          `json:"chain_id"`
	InitialHeight int64           `json:"initial_height"`
	AppHash       []byte          `json:"app_hash,omitempty"`
	AppState      json.RawMessage `json:"app_state,omitempty"`
}

// WriteGenesis marshals doc as indented JSON to path, creating parent
// directories as needed.
func WriteGenesis(path string, doc GenesisDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genesis doc: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create genesis directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write genesis doc: %w", err)
	}
	return nil
}

// PrivValidatorState is the minimal priv_validator_state.json a fresh node
// needs so its validator signer refuses to double-sign from a stale
// height; "height" is a string in CometBFT's own format (an arbitrary
// precision integer on the wire).
type PrivValidatorState struct {
	Height string `json:"height"`
	Round  int32  `json:"round"`
	Step   int32  `json:"step"`
}

// WritePrivValidatorState writes the zero-value validator state a
// freshly migrated node starts from.
func WritePrivValidatorState(path string) error {
	state := PrivValidatorState{Height: "0", Round: 0, Step: 0}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal priv validator state: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write priv validator state: %w", err)
	}
	return nil
}
