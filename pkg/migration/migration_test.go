package migration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *store.Engine {
	t.Helper()
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestMenuAppliesInOrderAndIsIdempotent(t *testing.T) {
	e := openTestEngine(t)
	var order []string
	menu := Menu{
		{Name: "one", Run: func(ctx context.Context, d *store.Delta) error {
			order = append(order, "one")
			return d.Put("migrated/one", []byte{0x01})
		}},
		{Name: "two", Run: func(ctx context.Context, d *store.Delta) error {
			order = append(order, "two")
			return d.Put("migrated/two", []byte{0x01})
		}},
	}

	applied, err := menu.Apply(context.Background(), e, false)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, applied)
	require.Equal(t, []string{"one", "two"}, order)

	v, err := e.Latest().Get("migrated/one")
	require.NoError(t, err)
	require.NotNil(t, v)

	order = nil
	applied, err = menu.Apply(context.Background(), e, false)
	require.NoError(t, err)
	require.Empty(t, applied)
	require.Empty(t, order)
}

func TestMenuDryRunMakesNoChanges(t *testing.T) {
	e := openTestEngine(t)
	ran := false
	menu := Menu{
		{Name: "one", Run: func(ctx context.Context, d *store.Delta) error {
			ran = true
			return d.Put("migrated/one", []byte{0x01})
		}},
	}

	before := e.Latest().Version()
	applied, err := menu.Apply(context.Background(), e, true)
	require.NoError(t, err)
	require.Equal(t, []string{"one"}, applied)
	require.False(t, ran)
	require.Equal(t, before, e.Latest().Version())
}

func TestMenuDiscardsOnFailure(t *testing.T) {
	e := openTestEngine(t)
	menu := Menu{
		{Name: "good", Run: func(ctx context.Context, d *store.Delta) error {
			return d.Put("migrated/good", []byte{0x01})
		}},
		{Name: "bad", Run: func(ctx context.Context, d *store.Delta) error {
			return os.ErrInvalid
		}},
	}

	before := e.Latest().Version()
	_, err := menu.Apply(context.Background(), e, false)
	require.Error(t, err)
	require.Equal(t, before, e.Latest().Version())

	v, err := e.Latest().Get("migrated/good")
	require.NoError(t, err)
	require.Nil(t, v)
}

// TestApplyUpgradeProducesScenario5Genesis covers spec §8 scenario 5: a
// no-op migration against a node at version V with root R must produce a
// genesis.json whose app_hash == R, initial_height == V+1, genesis_time ==
// t0, and a priv_validator_state.json equal to the canonical zeroed state.
func TestApplyUpgradeProducesScenario5Genesis(t *testing.T) {
	e := openTestEngine(t)

	// Advance the engine to a non-zero pre-migration height V so the
	// initial_height == V+1 invariant is exercised against a real version
	// gap, not the degenerate V=0 case.
	d := e.NewDelta()
	require.NoError(t, d.Put("some/key", []byte("value")))
	_, err := e.Commit(d)
	require.NoError(t, err)

	preHeight := e.Latest().Version()
	preRoot := e.Latest().RootHash()

	noop := Menu{
		{Name: "noop", Run: func(ctx context.Context, d *store.Delta) error {
			return nil
		}},
	}

	dir := t.TempDir()
	genesisPath := filepath.Join(dir, "genesis.json")
	privValidatorPath := filepath.Join(dir, "priv_validator_state.json")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	result, err := noop.ApplyUpgrade(context.Background(), e, "cnidarium-upgrade-1", t0, nil, genesisPath, privValidatorPath)
	require.NoError(t, err)
	require.Equal(t, []string{"noop"}, result.Applied)

	postRoot := e.Latest().RootHash()
	require.Equal(t, preRoot, postRoot, "a no-op migration must not change the root")

	require.Equal(t, postRoot, []byte(result.Genesis.AppHash))
	require.Equal(t, int64(preHeight)+1, result.Genesis.InitialHeight)
	require.True(t, t0.Equal(result.Genesis.GenesisTime))
	require.Equal(t, "cnidarium-upgrade-1", result.Genesis.ChainID)

	data, err := os.ReadFile(genesisPath)
	require.NoError(t, err)
	var doc GenesisDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, postRoot, []byte(doc.AppHash))
	require.Equal(t, int64(preHeight)+1, doc.InitialHeight)

	stateData, err := os.ReadFile(privValidatorPath)
	require.NoError(t, err)
	var state PrivValidatorState
	require.NoError(t, json.Unmarshal(stateData, &state))
	require.Equal(t, PrivValidatorState{Height: "0", Round: 0, Step: 0}, state)

	// Re-running the same (now fully-applied) menu against the resulting
	// state is idempotent: no migrations run again, but ApplyUpgrade still
	// synthesizes a genesis document from the (unchanged) current root.
	result2, err := noop.ApplyUpgrade(context.Background(), e, "cnidarium-upgrade-1", t0, nil, genesisPath, privValidatorPath)
	require.NoError(t, err)
	require.Empty(t, result2.Applied)
	require.Equal(t, result.Genesis.AppHash, result2.Genesis.AppHash)
	require.Equal(t, result.Genesis.InitialHeight, result2.Genesis.InitialHeight)
}

func TestWriteGenesisAndPrivValidatorState(t *testing.T) {
	dir := t.TempDir()
	genesisPath := filepath.Join(dir, "genesis.json")
	require.NoError(t, WriteGenesis(genesisPath, GenesisDoc{ChainID: "test-chain", InitialHeight: 1}))

	data, err := os.ReadFile(genesisPath)
	require.NoError(t, err)
	var doc GenesisDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "test-chain", doc.ChainID)

	statePath := filepath.Join(dir, "priv_validator_state.json")
	require.NoError(t, WritePrivValidatorState(statePath))
	data, err = os.ReadFile(statePath)
	require.NoError(t, err)
	var state PrivValidatorState
	require.NoError(t, json.Unmarshal(data, &state))
	require.Equal(t, "0", state.Height)
}
