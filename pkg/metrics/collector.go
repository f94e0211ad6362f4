package metrics

import (
	"time"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

// HeightSnapshotter is implemented by pkg/mempool.Mempool; kept as an
// interface so pkg/metrics doesn't need to import pkg/mempool.
type HeightSnapshotter interface {
	Latest() *store.Snapshot
}

// Collector periodically samples the storage engine and, if given, the
// mempool into Prometheus gauges. Adapted from the teacher's own
// ticker-driven Collector, which polled pkg/manager for node/service/task
// counts on the same collect-immediately-then-tick schedule.
type Collector struct {
	engine  *store.Engine
	mempool HeightSnapshotter
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector. mempool may be nil if no
// Mempool Service is running.
func NewCollector(engine *store.Engine, mempool HeightSnapshotter) *Collector {
	return &Collector{
		engine:  engine,
		mempool: mempool,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	latest := c.engine.Latest()
	BlockHeight.Set(float64(latest.Version()))

	if c.mempool == nil {
		return
	}
	cached := c.mempool.Latest()
	if cached == nil {
		return
	}
	lag := int64(latest.Version()) - int64(cached.Version())
	if lag < 0 {
		lag = 0
	}
	MempoolLagBlocks.Set(float64(lag))
}
