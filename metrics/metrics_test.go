package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Collector = NoopCollector{}
	_ Collector = (*PrometheusCollector)(nil)
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordShard(10, 20*time.Millisecond, nil)
	c.RecordShard(7, time.Millisecond, errors.New("boom"))
	c.RecordShardSkipped()
	c.RecordFlush("train", 4)
	c.RecordFlush("train", 1)
	c.RecordFlush("dev", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.shards.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shards.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shards.WithLabelValues("skipped")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.embeddedRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.flushes.WithLabelValues("train")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.writtenRows.WithLabelValues("train")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.writtenRows.WithLabelValues("dev")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.shardDuration))
}

func TestPrometheusCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg)
	assert.Error(t, err)
}
