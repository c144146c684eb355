// Package metrics defines the pipeline's instrumentation hooks and a
// Prometheus-backed implementation.
//
// Components accept a Collector and default to NoopCollector, so metrics
// cost nothing unless the CLI is started with a metrics address.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives pipeline events.
type Collector interface {
	// RecordShard is called once per shard the embed phase attempts.
	RecordShard(rows int, duration time.Duration, err error)
	// RecordShardSkipped is called for shards reused from the cache.
	RecordShardSkipped()
	// RecordFlush is called each time the assembler flushes a chunk.
	RecordFlush(partition string, rows int)
}

// NoopCollector discards every event.
type NoopCollector struct{}

func (NoopCollector) RecordShard(int, time.Duration, error) {}
func (NoopCollector) RecordShardSkipped()                   {}
func (NoopCollector) RecordFlush(string, int)               {}

// PrometheusCollector exports pipeline events as Prometheus metrics.
type PrometheusCollector struct {
	shards        *prometheus.CounterVec
	shardDuration prometheus.Histogram
	embeddedRows  prometheus.Counter
	flushes       *prometheus.CounterVec
	writtenRows   *prometheus.CounterVec
}

// NewPrometheusCollector creates the collectors and registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	p := &PrometheusCollector{
		shards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataprep",
			Name:      "shards_total",
			Help:      "Shards processed by the embed phase, by result.",
		}, []string{"result"}),
		shardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dataprep",
			Name:      "shard_duration_seconds",
			Help:      "Time spent embedding and persisting one shard.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		embeddedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataprep",
			Name:      "embedded_rows_total",
			Help:      "Records embedded and persisted to the shard cache.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataprep",
			Name:      "chunk_flushes_total",
			Help:      "Chunk flushes performed by the assembler, by partition.",
		}, []string{"partition"}),
		writtenRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataprep",
			Name:      "rows_written_total",
			Help:      "Rows written to partition stores, by partition.",
		}, []string{"partition"}),
	}

	for _, c := range []prometheus.Collector{p.shards, p.shardDuration, p.embeddedRows, p.flushes, p.writtenRows} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusCollector) RecordShard(rows int, duration time.Duration, err error) {
	p.shardDuration.Observe(duration.Seconds())
	if err != nil {
		p.shards.WithLabelValues("failed").Inc()
		return
	}
	p.shards.WithLabelValues("ok").Inc()
	p.embeddedRows.Add(float64(rows))
}

func (p *PrometheusCollector) RecordShardSkipped() {
	p.shards.WithLabelValues("skipped").Inc()
}

func (p *PrometheusCollector) RecordFlush(partition string, rows int) {
	p.flushes.WithLabelValues(partition).Inc()
	p.writtenRows.WithLabelValues(partition).Add(float64(rows))
}
