package driver

import (
	"context"
	"fmt"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

// BlockContext carries the per-block metadata every hook needs: height and
// timestamp are the only pieces of consensus-provided context spec §4.2's
// hooks are defined in terms of.
type BlockContext struct {
	Height    int64
	Time      int64 // unix seconds, as provided by the consensus engine
	IsEpochEnd bool
}

// Component is implemented by each registered module in the fixed,
// ordered component list (spec §4.2). A component that has nothing to do
// at a given hook simply returns nil; components are never skipped, so
// ordering between components is always preserved.
type Component interface {
	// Name identifies the component for logging and ordering diagnostics.
	Name() string

	// InitChain runs once, at genesis, before the chain processes its
	// first block.
	InitChain(ctx context.Context, d *store.Delta, appState []byte) error

	// BeginBlock runs once per block, before any transaction in it is
	// delivered.
	BeginBlock(ctx context.Context, d *store.Delta, bctx BlockContext) error

	// EndBlock runs once per block, after every transaction in it has
	// been delivered.
	EndBlock(ctx context.Context, d *store.Delta, bctx BlockContext) error

	// EndEpoch runs once, after EndBlock, only on the last block of an
	// epoch (bctx.IsEpochEnd).
	EndEpoch(ctx context.Context, d *store.Delta, bctx BlockContext) error
}

// Registry holds the fixed, ordered component list. Registration order is
// hook invocation order for every hook (spec §4.2's ordering rule).
type Registry struct {
	components []Component
	byName     map[string]bool
}

// NewRegistry builds a Registry from an ordered component list. Registering
// the same component name twice is a startup error: the ordering
// invariant only makes sense if every name is unique.
func NewRegistry(components ...Component) (*Registry, error) {
	r := &Registry{byName: make(map[string]bool)}
	for _, c := range components {
		if r.byName[c.Name()] {
			return nil, fmt.Errorf("component %q registered more than once", c.Name())
		}
		r.byName[c.Name()] = true
		r.components = append(r.components, c)
	}
	return r, nil
}

func (r *Registry) InitChain(ctx context.Context, d *store.Delta, appState []byte) error {
	for _, c := range r.components {
		if err := c.InitChain(ctx, d, appState); err != nil {
			return fmt.Errorf("component %q init_chain: %w", c.Name(), err)
		}
	}
	return nil
}

func (r *Registry) BeginBlock(ctx context.Context, d *store.Delta, bctx BlockContext) error {
	for _, c := range r.components {
		if err := c.BeginBlock(ctx, d, bctx); err != nil {
			return fmt.Errorf("component %q begin_block: %w", c.Name(), err)
		}
	}
	return nil
}

func (r *Registry) EndBlock(ctx context.Context, d *store.Delta, bctx BlockContext) error {
	for _, c := range r.components {
		if err := c.EndBlock(ctx, d, bctx); err != nil {
			return fmt.Errorf("component %q end_block: %w", c.Name(), err)
		}
	}
	if !bctx.IsEpochEnd {
		return nil
	}
	for _, c := range r.components {
		if err := c.EndEpoch(ctx, d, bctx); err != nil {
			return fmt.Errorf("component %q end_epoch: %w", c.Name(), err)
		}
	}
	return nil
}

// Names returns the registered component names in hook-invocation order,
// used for diagnostics and tests asserting ordering.
func (r *Registry) Names() []string {
	names := make([]string, len(r.components))
	for i, c := range r.components {
		names[i] = c.Name()
	}
	return names
}
