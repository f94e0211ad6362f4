package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

// Func is one named migration step. It reads and writes d directly; the
// Framework takes care of idempotency (skipping a migration already
// recorded as applied) and atomicity (discarding d on error).
type Func func(ctx context.Context, d *store.Delta) error

// Migration pairs a unique Name with its Func, the unit the Framework's
// menu is built from.
type Migration struct {
	Name string
	Run  Func
}

func appliedKey(name string) string {
	return fmt.Sprintf("migration/%s/applied", name)
}

// Menu is an ordered, named list of Migrations. Order matters: migrations
// run in Menu order, and a later migration may depend on an earlier one
// having already applied.
type Menu []Migration

// Apply runs every migration in the menu against a fresh Delta forked from
// engine's latest Snapshot, in order, skipping any migration whose applied
// marker is already set. In dryRun mode nothing is committed or written;
// Apply only reports which migrations would run.
//
// All of it succeeds or none of it does: if any migration fails, the
// Delta is discarded and the Engine's latest Snapshot is left unchanged.
func (m Menu) Apply(ctx context.Context, engine *store.Engine, dryRun bool) ([]string, error) {
	d := engine.NewDelta()
	var applied []string

	for _, mig := range m {
		key := appliedKey(mig.Name)
		marker, err := d.NonverifiableGet([]byte(key))
		if err != nil {
			d.Discard()
			return nil, apperr.Wrap(apperr.KindResource, "read migration marker", err)
		}
		if marker != nil {
			log.WithComponent("migration").Info().Str("migration", mig.Name).Msg("already applied, skipping")
			continue
		}

		if dryRun {
			applied = append(applied, mig.Name)
			continue
		}

		if err := mig.Run(ctx, d); err != nil {
			d.Discard()
			return nil, fmt.Errorf("migration %q: %w", mig.Name, err)
		}
		if err := d.NonverifiablePut([]byte(key), []byte{0x01}); err != nil {
			d.Discard()
			return nil, apperr.Wrap(apperr.KindResource, "record migration marker", err)
		}
		applied = append(applied, mig.Name)
		log.WithComponent("migration").Info().Str("migration", mig.Name).Msg("applied")
	}

	if dryRun || len(applied) == 0 {
		d.Discard()
		return applied, nil
	}

	if _, err := engine.Commit(d); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	return applied, nil
}

// UpgradeResult is what ApplyUpgrade produces: the migrations that ran and
// the genesis document synthesized for the next chain instance.
type UpgradeResult struct {
	Applied []string
	Genesis GenesisDoc
}

// ApplyUpgrade runs the menu's core output operation (spec §4.6, §8
// scenario 5): it captures the pre-migration height, applies the menu,
// reads the post-commit root, and synthesizes a GenesisDoc embedding that
// root as AppHash, the pre-migration height+1 as InitialHeight, and
// genesisTime/chainID/checkpoint as supplied by the operator. It writes
// genesis.json to genesisPath and a freshly zeroed priv_validator_state.json
// to privValidatorPath, the two files a freshly migrated node needs to
// start the upgraded chain.
//
// If no migration in the menu is pending, Apply still ran (a no-op) but
// ApplyUpgrade synthesizes genesis from the store's current (unchanged)
// root, matching the idempotence property: running the same migration
// twice against the same pre-state yields identical post-state and thus
// an identical genesis document.
func (m Menu) ApplyUpgrade(ctx context.Context, engine *store.Engine, chainID string, genesisTime time.Time, checkpoint json.RawMessage, genesisPath, privValidatorPath string) (UpgradeResult, error) {
	preHeight := engine.Latest().Version()

	applied, err := m.Apply(ctx, engine, false)
	if err != nil {
		return UpgradeResult{}, err
	}

	doc := GenesisDoc{
		GenesisTime:   genesisTime,
		ChainID:       chainID,
		InitialHeight: int64(preHeight) + 1,
		AppHash:       engine.Latest().RootHash(),
		AppState:      checkpoint,
	}
	if err := WriteGenesis(genesisPath, doc); err != nil {
		return UpgradeResult{}, fmt.Errorf("write upgrade genesis: %w", err)
	}
	if err := WritePrivValidatorState(privValidatorPath); err != nil {
		return UpgradeResult{}, fmt.Errorf("write upgrade priv_validator_state: %w", err)
	}

	log.WithComponent("migration").Info().
		Int("applied", len(applied)).
		Uint64("initial_height", preHeight+1).
		Msg("upgrade genesis written")

	return UpgradeResult{Applied: applied, Genesis: doc}, nil
}
