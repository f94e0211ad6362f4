/*
Package pipeline implements the transaction pipeline (spec §4.3): every
transaction passes through three stages before its effects are visible.

  - Stateless: binding signature, duplicate nullifier within the
    transaction, duplicate (proposal, nullifier) DelegatorVote pair within
    the transaction, and clue/memo count agreement. None of this touches
    chain state, so it runs identically in the mempool and during block
    execution.
  - Historical: per-action checks against a committed Snapshot — anchor
    validity foremost, plus whatever else an action's historical check
    needs (spec leaves this open per action; this package gives every
    action kind a historical hook even where it is a no-op).
  - CheckAndExecute: per-action state-dependent checks and the action's
    state transition, run against a forked Delta so the whole transaction
    is all-or-nothing: if any action fails, the fork is discarded and
    nothing it wrote is ever visible (spec §4.3 atomicity).

pkg/driver runs all three stages through Pipeline.Run for deliver_tx;
pkg/mempool (and the driver's direct CheckTx path) call the same three
stages one by one for check_tx, against a disposable Delta.
*/
package pipeline
