/*
Package store implements the versioned, verifiable key-value storage engine
that every other package in this repo builds on.

It exposes three data planes:

  - verifiable: UTF-8-keyed, merkleized, read through ICS-23-compatible
    inclusion/non-inclusion proofs.
  - nonverifiable: byte-keyed, backed directly by the on-disk bbolt database,
    for data that must persist but never needs a membership proof (app
    version, indexes, migration bookkeeping).
  - ephemeral: an in-memory, typed object store scoped to a single Delta,
    dropped at commit, never merkleized.

An Engine owns one committed version at a time, exposed as an immutable
*Snapshot*. Callers accumulate writes in a *Delta* forked from a Snapshot (or
from another Delta, for nested isolation), then either Fold the delta into
its parent or Discard it, and finally hand the top-level delta to
Engine.Commit to produce the next Snapshot. Snapshots already handed out
remain valid and unaffected by later commits: Get/GetWithProof always read
against the version they were opened at.

Prefixed substores mount a child Engine at a verifiable key prefix; the
child's root hash is folded into the parent tree at commit time, bottom-up,
so the whole store commits as a single atomic operation.
*/
package store
