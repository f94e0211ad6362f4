package pipeline

import (
	"context"
	"fmt"

	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

var errMissingBindingSignature = apperr.New(apperr.KindStatelessInvalid, "missing binding signature")

// Pipeline runs the three-stage transaction check sequence of spec §4.3.
// It carries no state of its own; every stage is a pure function of its
// Transaction and store arguments, so a single Pipeline value is safe to
// share between the driver's deliver_tx path and the mempool's check_tx
// path.
type Pipeline struct{}

func New() *Pipeline { return &Pipeline{} }

// CheckStateless runs the stateless preamble: binding signature presence,
// duplicate nullifier within the transaction, duplicate (proposal,
// nullifier) DelegatorVote pairs within the transaction, clue count against
// the number of Output actions, and memo presence against whether any
// Output action is present, then each action's own stateless check.
func (p *Pipeline) CheckStateless(tx *Transaction) error {
	if err := verifyBindingSignature(tx); err != nil {
		return err
	}
	outputs := tx.outputActionCount()
	if tx.ClueCount != outputs {
		return apperr.New(apperr.KindStatelessInvalid,
			fmt.Sprintf("clue count %d does not match output action count %d", tx.ClueCount, outputs))
	}
	if tx.HasMemo != (outputs > 0) {
		return apperr.New(apperr.KindStatelessInvalid,
			fmt.Sprintf("memo presence %t does not match output actions present %t", tx.HasMemo, outputs > 0))
	}

	seenNullifiers := make(map[string]bool)
	seenVotes := make(map[string]bool)
	for _, a := range tx.Actions {
		if n := a.Nullifier(); n != nil {
			key := string(n)
			if seenNullifiers[key] {
				return apperr.New(apperr.KindStatelessInvalid,
					fmt.Sprintf("duplicate nullifier %x within transaction", n))
			}
			seenNullifiers[key] = true
		}
		if dv, ok := a.(*DelegatorVote); ok {
			key := dv.voteKey()
			if seenVotes[key] {
				return apperr.New(apperr.KindStatelessInvalid,
					fmt.Sprintf("duplicate delegator vote on proposal %d within transaction", dv.Proposal))
			}
			seenVotes[key] = true
		}
		if err := a.CheckStateless(); err != nil {
			return err
		}
	}
	return nil
}

// CheckHistorical runs the historical preamble against a committed
// Snapshot: a non-empty transaction anchor must be a known root (a
// transaction with no anchor skips that check), and every action's own
// historical check must pass.
func (p *Pipeline) CheckHistorical(ctx context.Context, snap store.Reader, tx *Transaction) error {
	if len(tx.Anchor) > 0 {
		if err := checkAnchorKnown(snap, tx.Anchor); err != nil {
			return err
		}
	}
	for _, a := range tx.Actions {
		if err := a.CheckHistorical(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs check_and_execute: every action is checked and applied
// against a fork of d, atomically. If any action fails, the fork is
// discarded and d is left exactly as it was (spec §4.3 atomicity) — the
// failing error is returned so the caller can decide block-vs-transaction
// scope per spec §7.
func (p *Pipeline) Execute(ctx context.Context, d *store.Delta, tx *Transaction) error {
	fork := d.Fork()
	for _, a := range tx.Actions {
		if err := a.CheckAndExecute(ctx, fork); err != nil {
			fork.Discard()
			return fmt.Errorf("action %s: %w", a.Kind(), err)
		}
	}
	if err := fork.Fold(); err != nil {
		return apperr.Wrap(apperr.KindResource, "fold transaction delta", err)
	}
	return nil
}

// Run executes all three stages in order against snap/d, the sequence
// both the driver's deliver_tx and the mempool's check_tx use.
func (p *Pipeline) Run(ctx context.Context, snap store.Reader, d *store.Delta, tx *Transaction) error {
	if err := p.CheckStateless(tx); err != nil {
		return err
	}
	if err := p.CheckHistorical(ctx, snap, tx); err != nil {
		return err
	}
	if err := p.Execute(ctx, d, tx); err != nil {
		return err
	}
	log.WithComponent("pipeline").Debug().
		Str("tx_id", tx.ID).
		Int("actions", len(tx.Actions)).
		Msg("transaction applied")
	return nil
}
