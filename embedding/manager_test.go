package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/dataprep/ai/mock"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/storage"
	"github.com/poiesic/dataprep/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource implements TextSource over a map.
type mapSource map[string]string

func (s mapSource) Texts(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s[id]
	}
	return out
}

func sourceFor(ids []string) mapSource {
	src := make(mapSource, len(ids))
	for _, id := range ids {
		src[id] = "text of " + id
	}
	return src
}

func setupCache(t *testing.T) storage.ShardCache {
	t.Helper()
	cache, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		cache.Close()
		backend.Close()
	})
	return cache
}

func setupManager(t *testing.T, cache storage.ShardCache, embedder *mock.MockEmbedder, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cache, embedder, append([]Option{WithPoolSize(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	cache := setupCache(t)

	_, err := NewManager(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrCacheRequired)

	_, err = NewManager(cache, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewManager(cache, mock.NewMockEmbedder(), WithDimension(-1))
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestManager_EmbedShard(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	m := setupManager(t, cache, mock.NewMockEmbedder(mock.WithDimension(4)))

	shard := core.Shard{Index: 0, IDs: []string{"a", "b", "c"}}
	texts := []string{"alpha", "beta", "gamma"}
	require.NoError(t, m.EmbedShard(ctx, shard, texts))

	entry, err := cache.GetShard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, shard.IDs, entry.IDs)
	assert.Equal(t, 4, entry.Dim)
	assert.Equal(t, core.ShardDigest(shard.IDs, texts), entry.Digest)

	vec, ok := entry.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, mock.Vector("beta", 4), vec)
	assert.Equal(t, 4, m.Dimension())
}

func TestManager_EmbedShard_RowCountMismatch(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder(mock.WithDimension(4))
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2, 3, 4}}, nil
	}
	m := setupManager(t, cache, embedder)

	err := m.EmbedShard(ctx, core.Shard{Index: 3, IDs: []string{"a", "b"}}, []string{"x", "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrShardCompute)

	var shardErr *core.ShardError
	require.ErrorAs(t, err, &shardErr)
	assert.Equal(t, 3, shardErr.Index)

	_, err = cache.GetShard(ctx, 3)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing is persisted for a failed shard")
}

func TestManager_EmbedShard_ProviderError(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder()
	providerErr := errors.New("provider down")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, providerErr
	}
	m := setupManager(t, cache, embedder)

	err := m.EmbedShard(ctx, core.Shard{Index: 0, IDs: []string{"a"}}, []string{"x"})
	assert.ErrorIs(t, err, core.ErrShardCompute)
	assert.ErrorIs(t, err, providerErr)
}

func TestManager_EmbedShard_DimensionChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("configured dimension", func(t *testing.T) {
		cache := setupCache(t)
		m := setupManager(t, cache, mock.NewMockEmbedder(mock.WithDimension(4)), WithDimension(8))

		err := m.EmbedShard(ctx, core.Shard{Index: 0, IDs: []string{"a"}}, []string{"x"})
		assert.ErrorIs(t, err, core.ErrShardCompute)
	})

	t.Run("ragged rows", func(t *testing.T) {
		cache := setupCache(t)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 2}, {1, 2, 3}}, nil
		}
		m := setupManager(t, cache, embedder)

		err := m.EmbedShard(ctx, core.Shard{Index: 0, IDs: []string{"a", "b"}}, []string{"x", "y"})
		assert.ErrorIs(t, err, core.ErrShardCompute)
	})

	t.Run("width changes between shards", func(t *testing.T) {
		cache := setupCache(t)
		embedder := mock.NewMockEmbedder()
		width := 3
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = make([]float32, width)
			}
			return out, nil
		}
		m := setupManager(t, cache, embedder)

		require.NoError(t, m.EmbedShard(ctx, core.Shard{Index: 0, IDs: []string{"a"}}, []string{"x"}))
		width = 5
		err := m.EmbedShard(ctx, core.Shard{Index: 1, IDs: []string{"b"}}, []string{"y"})
		assert.ErrorIs(t, err, core.ErrShardCompute)
	})
}

func TestManager_Run(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder(mock.WithDimension(4))
	m := setupManager(t, cache, embedder)

	ids := makeIDs(23)
	shards, err := PartitionRecords(ids, 5)
	require.NoError(t, err)

	stats, err := m.Run(ctx, sourceFor(ids), shards, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Embedded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 4, stats.Dim)

	indexes, err := cache.ShardIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indexes)

	for _, shard := range shards {
		entry, err := cache.GetShard(ctx, shard.Index)
		require.NoError(t, err)
		assert.Equal(t, shard.IDs, entry.IDs)
	}
}

func TestManager_Run_PartialFailure(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder(mock.WithDimension(2))
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if strings.HasSuffix(text, "id-004") || strings.HasSuffix(text, "id-013") {
				return nil, fmt.Errorf("cannot embed %s", text)
			}
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text, 2)
		}
		return out, nil
	}
	m := setupManager(t, cache, embedder)

	ids := makeIDs(20)
	shards, err := PartitionRecords(ids, 5)
	require.NoError(t, err)

	stats, err := m.Run(ctx, sourceFor(ids), shards, RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrShardCompute)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 2, stats.Failed)
	assert.Contains(t, err.Error(), "shard 0")
	assert.Contains(t, err.Error(), "shard 2")
	assert.Less(t, strings.Index(err.Error(), "shard 0"), strings.Index(err.Error(), "shard 2"))

	indexes, err := cache.ShardIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, indexes, "healthy shards are persisted")
}

// failingWrites wraps a cache and rejects every PutShard.
type failingWrites struct {
	storage.ShardCache
	err error
}

func (f *failingWrites) PutShard(context.Context, *core.ShardEntry) error {
	return f.err
}

func TestManager_Run_CacheWriteFailure(t *testing.T) {
	ctx := context.Background()
	diskErr := errors.New("no space left on device")
	cache := &failingWrites{ShardCache: setupCache(t), err: diskErr}
	m := setupManager(t, cache, mock.NewMockEmbedder(mock.WithDimension(2)))

	ids := makeIDs(6)
	shards, err := PartitionRecords(ids, 3)
	require.NoError(t, err)

	stats, err := m.Run(ctx, sourceFor(ids), shards, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, stats.Failed)
	assert.ErrorIs(t, err, core.ErrIO)
	assert.ErrorIs(t, err, diskErr)
	assert.NotErrorIs(t, err, core.ErrShardCompute, "a write failure is not a compute failure")

	var shardErr *core.ShardError
	require.ErrorAs(t, err, &shardErr)
	assert.Equal(t, 0, shardErr.Index)
}

func TestManager_Run_SkipExisting(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder(mock.WithDimension(3))
	m := setupManager(t, cache, embedder)

	ids := makeIDs(12)
	src := sourceFor(ids)
	shards, err := PartitionRecords(ids, 4)
	require.NoError(t, err)

	_, err = m.Run(ctx, src, shards, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.CallCount())

	// Change one text so its shard's digest goes stale.
	src["id-005"] = "edited"
	embedder.Reset()

	stats, err := m.Run(ctx, src, shards, RunOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, embedder.CallCount())

	entry, err := cache.GetShard(ctx, 1)
	require.NoError(t, err)
	vec, ok := entry.Lookup("id-005")
	require.True(t, ok)
	assert.Equal(t, mock.Vector("edited", 3), vec)
}

func TestManager_Run_SkipExistingLearnsDimension(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)

	ids := makeIDs(6)
	shards, err := PartitionRecords(ids, 3)
	require.NoError(t, err)

	first := setupManager(t, cache, mock.NewMockEmbedder(mock.WithDimension(5)))
	_, err = first.Run(ctx, sourceFor(ids), shards, RunOptions{})
	require.NoError(t, err)

	reads := &countingReads{ShardCache: cache}
	second := setupManager(t, reads, mock.NewMockEmbedder(mock.WithDimension(5)))
	stats, err := second.Run(ctx, sourceFor(ids), shards, RunOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 5, stats.Dim)
	assert.Zero(t, reads.gets.Load(), "reuse checks must not decode cached vectors")
}

// countingReads wraps a cache and counts GetShard calls.
type countingReads struct {
	storage.ShardCache
	gets atomic.Int32
}

func (c *countingReads) GetShard(ctx context.Context, index int) (*core.ShardEntry, error) {
	c.gets.Add(1)
	return c.ShardCache.GetShard(ctx, index)
}

func TestManager_Run_Cancelled(t *testing.T) {
	cache := setupCache(t)
	embedder := mock.NewMockEmbedder(mock.WithDimension(2))
	m := setupManager(t, cache, embedder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids := makeIDs(10)
	shards, err := PartitionRecords(ids, 2)
	require.NoError(t, err)

	stats, err := m.Run(ctx, sourceFor(ids), shards, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Embedded)
}

type recordingCollector struct {
	mu      sync.Mutex
	ok      int
	failed  int
	skipped int
}

func (r *recordingCollector) RecordShard(rows int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

func (r *recordingCollector) RecordShardSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *recordingCollector) RecordFlush(string, int) {}

func TestManager_Run_Metrics(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	collector := &recordingCollector{}
	m := setupManager(t, cache, mock.NewMockEmbedder(mock.WithDimension(2)),
		WithMetrics(collector), WithRateLimit(1000, 10))

	ids := makeIDs(9)
	shards, err := PartitionRecords(ids, 3)
	require.NoError(t, err)

	_, err = m.Run(ctx, sourceFor(ids), shards, RunOptions{})
	require.NoError(t, err)
	_, err = m.Run(ctx, sourceFor(ids), shards, RunOptions{SkipExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 3, collector.ok)
	assert.Equal(t, 3, collector.skipped)
	assert.Equal(t, 0, collector.failed)
}
