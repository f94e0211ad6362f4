/*
Package driver implements the component registry and the ABCI++ application
that drives it (spec §4.2).

A fixed, ordered list of Components is registered once at startup. Each
block execution phase calls every component's matching hook, in
registration order, against a single shared Delta: InitChain once at genesis,
BeginBlock/EndBlock around the block's transactions, and EndEpoch at the
last block of an epoch. The driver also runs the transaction pipeline
(pkg/pipeline) once per delivered transaction, between BeginBlock and
EndBlock, tagging the ephemeral object store with the delivering
transaction's ID before each one (spec §4.2/§4.3/§9 source tagging).

App implements cometbft's ABCI++ Application interface directly: cometbft
0.38 merged the classic BeginBlock/DeliverTx/EndBlock trio into a single
FinalizeBlock request, so App.FinalizeBlock is where the driver's internal
begin_block/deliver_tx.../end_block sequence actually runs; InitChain,
Commit, and CheckTx map one-to-one onto their ABCI++ requests. Before
accepting any request, NewApp runs the App-Version Gate (pkg/versiongate,
spec §4.7) and refuses to start the process on a version mismatch.
*/
package driver
