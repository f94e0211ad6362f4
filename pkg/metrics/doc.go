/*
Package metrics provides Prometheus metrics collection and exposition for
the node.

The metrics package defines and registers the node's Prometheus metrics,
giving observability into commit progress, mempool freshness, and
transaction/event throughput. Metrics are exposed via HTTP endpoint for
scraping by Prometheus servers, the same registration-at-init and
promhttp.Handler pattern the teacher's metrics package uses.

# Metrics Catalog

cnidarium_block_height:
  - Type: Gauge
  - Description: Height (store version) of the latest committed block

cnidarium_commit_duration_seconds:
  - Type: Histogram
  - Description: Time taken to commit a block's delta to the storage engine

cnidarium_mempool_lag_blocks:
  - Type: Gauge
  - Description: Blocks between the engine's latest commit and the
    mempool's cached snapshot

cnidarium_check_tx_total{result}:
  - Type: Counter
  - Description: Total CheckTx calls by result (accepted/rejected)

cnidarium_deliver_tx_total{result}:
  - Type: Counter
  - Description: Total deliver_tx outcomes by result (ok/rejected/fatal)

cnidarium_events_total{type}:
  - Type: Counter
  - Description: Total committed events by type

cnidarium_version_gate_rejections_total:
  - Type: Counter
  - Description: Total App-Version Gate mismatches on startup

cnidarium_migrations_applied_total:
  - Type: Counter
  - Description: Total migrations applied by the migration framework

# Usage

	import "github.com/penumbra-zone/cnidarium-core/pkg/metrics"

	metrics.BlockHeight.Set(float64(snap.Version()))
	metrics.CheckTxTotal.WithLabelValues("accepted").Inc()

	timer := metrics.NewTimer()
	snap, err := engine.Commit(d)
	timer.ObserveDuration(metrics.CommitDuration)

	http.Handle("/metrics", metrics.Handler())

Collector polls the storage engine (and, if running, the mempool) on a
ticker to keep BlockHeight and MempoolLagBlocks current without every
caller having to remember to update them — the same collect-immediately-
then-tick shape as the teacher's own Collector, which polled pkg/manager
for node/service/task counts.

# Design Patterns

Package Init Registration:
  - All metrics registered in init()
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration (or ObserveDurationVec) when it ends
  - Supports both simple and vector histograms

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
