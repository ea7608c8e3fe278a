// Package metrics exposes the indexer's operational counters, distinct from
// any data-query surface — this is ambient observability, not a read API
// over indexed records.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters/histograms the supervisor and walker record
// against.
type Metrics struct {
	BlocksIndexed   prometheus.Counter
	RPCLatency      *prometheus.HistogramVec
	PoolFlushSize   *prometheus.HistogramVec
	DuplicateKeys   *prometheus.CounterVec
}

// New registers and returns the indexer's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "blocks_indexed_total",
			Help:      "Total number of blocks fully indexed and checkpointed.",
		}),
		RPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indexer",
			Name:      "rpc_request_duration_seconds",
			Help:      "Latency of blockchain RPC requests by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		PoolFlushSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indexer",
			Name:      "pool_flush_size",
			Help:      "Number of documents flushed per write pool commit.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"collection"}),
		DuplicateKeys: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "duplicate_key_total",
			Help:      "Total number of tolerated duplicate-key errors on insert, by collection.",
		}, []string{"collection"}),
	}
}
