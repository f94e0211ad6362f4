package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlockHeight is the storage engine's latest committed version.
	BlockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnidarium_block_height",
			Help: "Height (store version) of the latest committed block",
		},
	)

	// CommitDuration times the driver's Commit call, from handing the
	// pending block delta to Engine.Commit through the new Snapshot being
	// published.
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cnidarium_commit_duration_seconds",
			Help:    "Time taken to commit a block's delta to the storage engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MempoolLagBlocks is how many blocks behind the engine's latest
	// committed version the mempool's cached snapshot is.
	MempoolLagBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnidarium_mempool_lag_blocks",
			Help: "Blocks between the engine's latest commit and the mempool's cached snapshot",
		},
	)

	// CheckTxTotal counts CheckTx outcomes by result (accepted/rejected).
	CheckTxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnidarium_check_tx_total",
			Help: "Total CheckTx calls by result",
		},
		[]string{"result"},
	)

	// DeliverTxTotal counts FinalizeBlock's per-transaction outcomes by
	// result (ok/rejected/fatal).
	DeliverTxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnidarium_deliver_tx_total",
			Help: "Total deliver_tx outcomes by result",
		},
		[]string{"result"},
	)

	// EventsTotal counts committed events by their type name.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnidarium_events_total",
			Help: "Total committed events by type",
		},
		[]string{"type"},
	)

	// VersionGateRejectionsTotal counts App-Version Gate mismatches that
	// refused to start the app.
	VersionGateRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cnidarium_version_gate_rejections_total",
			Help: "Total App-Version Gate mismatches on startup",
		},
	)

	// MigrationsAppliedTotal counts migrations actually run (not skipped
	// as already-applied) by "appd migrate"; Menu.Apply itself does not
	// touch it.
	MigrationsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cnidarium_migrations_applied_total",
			Help: "Total migrations applied by the migration framework",
		},
	)
)

func init() {
	prometheus.MustRegister(BlockHeight)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(MempoolLagBlocks)
	prometheus.MustRegister(CheckTxTotal)
	prometheus.MustRegister(DeliverTxTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(VersionGateRejectionsTotal)
	prometheus.MustRegister(MigrationsAppliedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
