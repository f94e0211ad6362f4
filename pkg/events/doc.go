/*
Package events implements the Event & Provenance Layer's external-facing
pieces (spec §4.4): the canonical type names components and actions record
against a Delta, the commit-time attribute envelope (every event's
attribute list sorted lexicographically by key before it becomes visible
outside the driver), and a Broker external consumers — an indexer, a block
explorer — subscribe to for newly-committed block events.

Event accumulation itself lives on pkg/store.Delta directly (Record/Events):
a Delta's event list travels with the Delta it was recorded against and is
folded into its parent on Fold, exactly like its writes. This package is
what that list passes through on its way out of the driver, not where it's
buffered.

Broker is adapted from the teacher's in-memory pub/sub bus: the same
non-blocking publish, per-subscriber buffered channel, and fan-out-without-
waiting design, now carrying committed abcitypes.Event values instead of a
cluster-orchestration Event struct. It is unrelated to pkg/store's
snapshotNotifier, which exists solely so the mempool can cache the latest
Snapshot and is never exposed outside pkg/store.
*/
package events
