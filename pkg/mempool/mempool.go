package mempool

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"github.com/penumbra-zone/cnidarium-core/pkg/pipeline"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

// TxDecoder turns opaque CheckTx bytes into a pipeline.Transaction. Kept
// as its own type (rather than importing pkg/driver's) so pkg/mempool has
// no dependency on pkg/driver at all; pkg/driver depends on pkg/mempool,
// not the other way around.
type TxDecoder func(raw []byte) (*pipeline.Transaction, error)

type checkRequest struct {
	tx     []byte
	respCh chan error
}

// Mempool is the Mempool Service of spec §4.5.
type Mempool struct {
	engine   *store.Engine
	pipeline *pipeline.Pipeline
	decodeTx TxDecoder

	notifications <-chan *store.Snapshot
	requests      chan checkRequest
	stopCh        chan struct{}
	wg            sync.WaitGroup

	mu     sync.RWMutex
	latest *store.Snapshot
}

// New subscribes to engine's snapshot notifications and starts the
// service's request loop. Call Stop to unsubscribe and stop the loop.
func New(engine *store.Engine, decodeTx TxDecoder) *Mempool {
	m := &Mempool{
		engine:        engine,
		pipeline:      pipeline.New(),
		decodeTx:      decodeTx,
		notifications: engine.Subscribe(),
		requests:      make(chan checkRequest),
		stopCh:        make(chan struct{}),
		latest:        engine.Latest(),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Stop unsubscribes from the engine and stops the request loop. A CheckTx
// call still waiting for the loop to accept its request returns an error;
// a request the loop already accepted still gets its result.
func (m *Mempool) Stop() {
	close(m.stopCh)
	m.engine.Unsubscribe(m.notifications)
	m.wg.Wait()
}

func (m *Mempool) run() {
	defer m.wg.Done()
	for {
		// Bias: drain any snapshot notification already queued before
		// considering the next request, so a just-committed block is
		// never starved by a burst of pending CheckTx calls.
		select {
		case snap, ok := <-m.notifications:
			if !ok {
				return
			}
			m.setLatest(snap)
			continue
		default:
		}

		select {
		case snap, ok := <-m.notifications:
			if !ok {
				return
			}
			m.setLatest(snap)
		case req := <-m.requests:
			req.respCh <- m.checkOne(req.tx)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Mempool) setLatest(snap *store.Snapshot) {
	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()
	log.WithComponent("mempool").Debug().Uint64("store_version", snap.Version()).Msg("cached snapshot updated")
}

func (m *Mempool) Latest() *store.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Mempool) checkOne(raw []byte) error {
	// requestID is a correlation ID for this CheckTx call's log lines only;
	// it never enters chain state, so it doesn't need to be deterministic
	// across replicas the way a transaction or event ID would.
	requestID := uuid.NewString()

	tx, err := m.decodeTx(raw)
	if err != nil {
		log.WithComponent("mempool").Debug().Str("request_id", requestID).Err(err).Msg("check_tx decode failed")
		return err
	}
	logger := log.WithComponent("mempool").With().Str("request_id", requestID).Str("tx_id", tx.ID).Logger()

	snap := m.Latest()
	if err := m.pipeline.CheckStateless(tx); err != nil {
		logger.Debug().Err(err).Msg("check_tx rejected: stateless")
		return err
	}
	if err := m.pipeline.CheckHistorical(context.Background(), snap, tx); err != nil {
		logger.Debug().Err(err).Msg("check_tx rejected: historical")
		return err
	}
	fork := store.NewDeltaFrom(snap)
	defer fork.Discard()
	if err := m.pipeline.Execute(context.Background(), fork, tx); err != nil {
		logger.Debug().Err(err).Msg("check_tx rejected: execute")
		return err
	}
	logger.Debug().Msg("check_tx accepted")
	return nil
}

// CheckTx runs the full pipeline against an ephemeral fork of the cached
// latest snapshot; nothing it writes is ever visible anywhere (spec §4.5).
func (m *Mempool) CheckTx(ctx context.Context, raw []byte) error {
	respCh := make(chan error, 1)
	select {
	case m.requests <- checkRequest{tx: raw, respCh: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return context.Canceled
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
