package driver

import (
	"context"
	"fmt"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/events"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"github.com/penumbra-zone/cnidarium-core/pkg/metrics"
	"github.com/penumbra-zone/cnidarium-core/pkg/pipeline"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/penumbra-zone/cnidarium-core/pkg/versiongate"
)

const defaultEpochLength = 100

// TxDecoder turns the opaque bytes CometBFT hands the application into a
// pipeline.Transaction. Wire encoding of the transaction body is out of
// scope (spec.md leaves on-disk/wire encoding beyond the ABCI surface
// itself unspecified); this is the seam a concrete encoding plugs into.
type TxDecoder func(raw []byte) (*pipeline.Transaction, error)

// CheckTxRunner is implemented by pkg/mempool.Mempool; kept as an
// interface here so pkg/driver doesn't need to depend on pkg/mempool's
// internals, only on the one method App.CheckTx calls.
type CheckTxRunner interface {
	CheckTx(ctx context.Context, raw []byte) error
}

// App implements cometbft's ABCI++ Application interface (spec §6) on top
// of a Registry and a pkg/store.Engine. It is the concrete driver named in
// spec §4.2.
type App struct {
	mu sync.Mutex

	engine      *store.Engine
	registry    *Registry
	pipeline    *pipeline.Pipeline
	decodeTx    TxDecoder
	epochLength int64
	mempool     CheckTxRunner
	broker      *events.Broker

	pending *store.Delta // open since BeginBlock, folded at Commit
}

// NewApp constructs the driver and runs the App-Version Gate (spec §4.7)
// once, immediately, before returning: a version mismatch against an
// existing store is returned as an error and the App is unusable, matching
// spec §8 scenario 6 ("refuses to start on version mismatch").
func NewApp(engine *store.Engine, registry *Registry, decodeTx TxDecoder, binaryVersion uint64) (*App, error) {
	d := engine.NewDelta()
	if err := versiongate.Check(d, binaryVersion); err != nil {
		return nil, err
	}
	if _, err := engine.Commit(d); err != nil {
		return nil, fmt.Errorf("commit app-version gate: %w", err)
	}
	return &App{
		engine:      engine,
		registry:    registry,
		pipeline:    pipeline.New(),
		decodeTx:    decodeTx,
		epochLength: defaultEpochLength,
	}, nil
}

// SetMempool wires the Mempool Service CheckTx delegates to. Optional: if
// unset, CheckTx runs the pipeline directly against the latest committed
// snapshot instead of the mempool's cached one.
func (a *App) SetMempool(m CheckTxRunner) { a.mempool = m }

// SetBroker wires an events.Broker that Commit publishes every committed
// block's event list to. Optional: an App with no broker set still runs
// correctly, it just has no external event subscribers.
func (a *App) SetBroker(b *events.Broker) { a.broker = b }

func (a *App) blockContext(height, time int64) BlockContext {
	return BlockContext{
		Height:     height,
		Time:       time,
		IsEpochEnd: a.epochLength > 0 && height%a.epochLength == 0,
	}
}

func (a *App) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := a.engine.NewDelta()
	if err := a.registry.InitChain(ctx, d, req.AppStateBytes); err != nil {
		return nil, err
	}
	snap, err := a.engine.Commit(d)
	if err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	log.WithComponent("driver").Info().Uint64("store_version", snap.Version()).Msg("init_chain committed")
	return &abcitypes.ResponseInitChain{AppHash: snap.RootHash()}, nil
}

func (a *App) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

func (a *App) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock runs begin_block, then deliver_tx for every transaction in
// the block, then end_block (and end_epoch on an epoch boundary) — the
// three hooks spec §4.2 describes separately, sequenced here because
// cometbft 0.38 merged them into a single ABCI++ request.
func (a *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bctx := a.blockContext(req.Height, req.Time.Unix())
	d := a.engine.NewDelta()
	if err := a.registry.BeginBlock(ctx, d, bctx); err != nil {
		return nil, err
	}

	snap := a.engine.Latest()
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, raw := range req.Txs {
		results[i] = a.deliverTx(ctx, snap, d, raw)
		if results[i].Code == 2 {
			return nil, fmt.Errorf("deliver_tx %d: fatal error, block not finalized: %s", i, results[i].Log)
		}
	}

	if err := a.registry.EndBlock(ctx, d, bctx); err != nil {
		return nil, err
	}

	a.pending = d
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   snap.RootHash(), // provisional; Commit publishes the real one
	}, nil
}

func (a *App) deliverTx(ctx context.Context, snap *store.Snapshot, d *store.Delta, raw []byte) *abcitypes.ExecTxResult {
	tx, err := a.decodeTx(raw)
	if err != nil {
		metrics.DeliverTxTotal.WithLabelValues("rejected").Inc()
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error()}
	}
	d.ObjectPut(store.SourceTransactionKey, store.TxID(tx.ID))

	before := len(d.Events())
	if err := a.pipeline.Run(ctx, snap, d, tx); err != nil {
		code := uint32(1)
		result := "rejected"
		if apperr.IsFatal(err) {
			code = 2
			result = "fatal"
		}
		metrics.DeliverTxTotal.WithLabelValues(result).Inc()
		return &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
	}
	metrics.DeliverTxTotal.WithLabelValues("ok").Inc()
	committed := events.SortAll(d.Events()[before:])
	for _, ev := range committed {
		metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
	}
	return &abcitypes.ExecTxResult{Code: 0, Events: committed}
}

func (a *App) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		return nil, fmt.Errorf("commit called with no pending block delta")
	}
	blockEvents := a.pending.Events()
	timer := metrics.NewTimer()
	snap, err := a.engine.Commit(a.pending)
	timer.ObserveDuration(metrics.CommitDuration)
	a.pending = nil
	if err != nil {
		return nil, err
	}
	log.WithComponent("driver").Info().Uint64("store_version", snap.Version()).Msg("block committed")
	if a.broker != nil {
		a.broker.PublishBlock(blockEvents)
	}
	return &abcitypes.ResponseCommit{}, nil
}

func (a *App) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	var err error
	if a.mempool != nil {
		err = a.mempool.CheckTx(ctx, req.Tx)
	} else {
		err = a.checkTxDirect(ctx, req.Tx)
	}
	if err != nil {
		metrics.CheckTxTotal.WithLabelValues("rejected").Inc()
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	metrics.CheckTxTotal.WithLabelValues("accepted").Inc()
	return &abcitypes.ResponseCheckTx{Code: 0}, nil
}

func (a *App) checkTxDirect(ctx context.Context, raw []byte) error {
	tx, err := a.decodeTx(raw)
	if err != nil {
		return err
	}
	snap := a.engine.Latest()
	if err := a.pipeline.CheckStateless(tx); err != nil {
		return err
	}
	if err := a.pipeline.CheckHistorical(ctx, snap, tx); err != nil {
		return err
	}
	return a.pipeline.Execute(ctx, a.engine.NewDelta(), tx)
}

func (a *App) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	snap := a.engine.Latest()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(snap.Version()),
		LastBlockAppHash: snap.RootHash(),
	}, nil
}

func (a *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	snap := a.engine.Latest()
	value, err := snap.Get(string(req.Data))
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return &abcitypes.ResponseQuery{Value: value, Height: int64(snap.Version())}, nil
}

// The remaining ABCI++ methods have no role in this repo's scope
// (vote extensions and state-sync snapshots are both full protocol
// features beyond the driver/pipeline/store core spec.md describes); they
// return the documented "disabled"/empty responses rather than being left
// unimplemented.

func (a *App) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *App) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (a *App) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *App) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_REJECT}, nil
}

func (a *App) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *App) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_REJECT}, nil
}
