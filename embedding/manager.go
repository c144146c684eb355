package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/dataprep/ai"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/metrics"
	"github.com/poiesic/dataprep/storage"
	"golang.org/x/time/rate"
)

// TextSource supplies the embedding text of each record id.
// *catalog.Index satisfies it.
type TextSource interface {
	Texts(ids []string) []string
}

// Manager embeds shards and persists them to the shard cache.
type Manager struct {
	cache          storage.ShardCache
	embedder       ai.Embedder
	pool           *ants.Pool
	limiter        *rate.Limiter
	metrics        metrics.Collector
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger

	mu  sync.Mutex
	dim int // configured or first observed width, 0 until known
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPoolSize sets the number of shards embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// WithDimension fixes the expected vector width. Without it the first
// embedded shard decides the width and every later shard must match.
func WithDimension(dim int) Option {
	return func(m *Manager) error {
		if dim < 0 {
			return fmt.Errorf("%w: dimension must not be negative, got %d", core.ErrConfig, dim)
		}
		m.dim = dim
		return nil
	}
}

// WithRateLimit caps provider calls per second. A limit of zero or less
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(m *Manager) error {
		if perSecond <= 0 {
			m.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithMetrics sets the collector notified of shard outcomes.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Manager) error {
		if c == nil {
			c = metrics.NoopCollector{}
		}
		m.metrics = c
		return nil
	}
}

// WithProgress writes a progress line to w every interval records.
func WithProgress(w io.Writer, interval int) Option {
	return func(m *Manager) error {
		m.progress = w
		m.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a Manager. Call Release when done.
func NewManager(cache storage.ShardCache, embedder ai.Embedder, opts ...Option) (*Manager, error) {
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cache:          cache,
		embedder:       embedder,
		pool:           pool,
		metrics:        metrics.NoopCollector{},
		reportInterval: 10000,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(m); optErr != nil {
			m.Release()
			return nil, optErr
		}
	}
	m.logger = m.logger.With("component", "embedding")
	return m, nil
}

// Dimension returns the vector width, or 0 if nothing has been embedded yet
// and no width was configured.
func (m *Manager) Dimension() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dim
}

// observeDimension checks width against the known dimension, adopting it
// if none is known yet.
func (m *Manager) observeDimension(width int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = width
		return nil
	}
	if width != m.dim {
		return fmt.Errorf("vector width %d, expected %d", width, m.dim)
	}
	return nil
}

// EmbedShard embeds texts, which must be the texts of shard.IDs in the same
// order, and persists the result. Any mismatch between the provider's
// result and the shard is reported as a *core.ShardError and nothing is
// written for the shard.
func (m *Manager) EmbedShard(ctx context.Context, shard core.Shard, texts []string) error {
	start := time.Now()
	err := m.embedShard(ctx, shard, texts)
	m.metrics.RecordShard(len(shard.IDs), time.Since(start), err)
	if err != nil {
		m.logger.Error("shard failed", "shard", shard.Index, "records", len(shard.IDs), "err", err)
		return err
	}
	m.logger.Debug("shard embedded", "shard", shard.Index, "records", len(shard.IDs), "duration", time.Since(start))
	return nil
}

func (m *Manager) embedShard(ctx context.Context, shard core.Shard, texts []string) error {
	if len(texts) != len(shard.IDs) {
		return core.NewShardError(shard.Index,
			fmt.Errorf("%d texts for %d records", len(texts), len(shard.IDs)))
	}

	var vectors [][]float32
	if len(texts) > 0 {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return core.NewShardError(shard.Index, err)
			}
		}

		var err error
		vectors, err = m.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return core.NewShardError(shard.Index, err)
		}
		if len(vectors) != len(shard.IDs) {
			return core.NewShardError(shard.Index,
				fmt.Errorf("embedding result mismatch. expected %d, received %d", len(shard.IDs), len(vectors)))
		}

		width := len(vectors[0])
		if width == 0 {
			return core.NewShardError(shard.Index, errors.New("provider returned empty vectors"))
		}
		for i, vec := range vectors {
			if len(vec) != width {
				return core.NewShardError(shard.Index,
					fmt.Errorf("row %d has width %d, row 0 has %d", i, len(vec), width))
			}
		}
		if err := m.observeDimension(width); err != nil {
			return core.NewShardError(shard.Index, err)
		}
	}

	entry := &core.ShardEntry{
		Index:   shard.Index,
		Digest:  core.ShardDigest(shard.IDs, texts),
		Dim:     m.Dimension(),
		IDs:     shard.IDs,
		Vectors: vectors,
	}
	if err := m.cache.PutShard(ctx, entry); err != nil {
		return fmt.Errorf("%w: persist shard %d: %w", core.ErrIO, shard.Index, err)
	}
	return nil
}

// RunOptions controls Run.
type RunOptions struct {
	// SkipExisting leaves shards alone whose cached entry was produced from
	// the same ids and texts.
	SkipExisting bool
}

// RunStats summarizes a Run.
type RunStats struct {
	Embedded int // shards embedded and persisted
	Skipped  int // shards reused from the cache
	Failed   int // shards that returned an error
	Dim      int // vector width, 0 if no shard produced vectors
	Duration time.Duration
}

// Run embeds every shard on the worker pool. Shards complete in any order.
// A failing shard does not stop the others; the returned error joins one
// error per failed shard, ordered by shard index. If ctx is cancelled, no
// further shards are started and ctx.Err() is included in the result.
func (m *Manager) Run(ctx context.Context, source TextSource, shards []core.Shard, opts RunOptions) (*RunStats, error) {
	total := 0
	for _, shard := range shards {
		total += len(shard.IDs)
	}
	tracker := NewProgressTracker(m.progress, len(shards), total, m.reportInterval)
	tracker.Start()

	m.logger.Info("embedding shards", "shards", len(shards), "records", total, "skipExisting", opts.SkipExisting)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []*core.ShardError
	)
	record := func(shard core.Shard, err error) {
		if err == nil {
			tracker.ShardDone(len(shard.IDs))
			return
		}
		tracker.ShardFailed()
		mu.Lock()
		defer mu.Unlock()
		var shardErr *core.ShardError
		if errors.As(err, &shardErr) {
			errs = append(errs, shardErr)
		} else {
			errs = append(errs, &core.ShardError{Index: shard.Index, Err: err})
		}
	}

	for _, shard := range shards {
		if ctx.Err() != nil {
			break
		}

		texts := source.Texts(shard.IDs)
		if opts.SkipExisting {
			skip, err := m.reusable(ctx, shard, texts)
			if err != nil {
				record(shard, err)
				continue
			}
			if skip {
				m.metrics.RecordShardSkipped()
				tracker.ShardSkipped(len(shard.IDs))
				continue
			}
		}

		wg.Add(1)
		submitErr := m.pool.Submit(func() {
			defer wg.Done()
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				record(shard, err)
			}()
			err = m.EmbedShard(ctx, shard, texts)
		})
		if submitErr != nil {
			wg.Done()
			record(shard, submitErr)
		}
	}
	wg.Wait()
	tracker.Finish()

	progress := tracker.Snapshot()
	stats := RunStats{
		Embedded: progress.Done,
		Skipped:  progress.Skipped,
		Failed:   progress.Failed,
		Dim:      m.Dimension(),
		Duration: tracker.Elapsed(),
	}

	slices.SortFunc(errs, func(a, b *core.ShardError) int { return a.Index - b.Index })
	joined := make([]error, 0, len(errs)+1)
	for _, e := range errs {
		joined = append(joined, e)
	}
	if err := ctx.Err(); err != nil {
		joined = append(joined, err)
	}

	m.logger.Info("embedding finished",
		"embedded", stats.Embedded, "skipped", stats.Skipped, "failed", stats.Failed,
		"dim", stats.Dim, "duration", stats.Duration)
	return &stats, errors.Join(joined...)
}

// reusable reports whether the cached entry for shard matches texts. A
// reused entry also settles the dimension when none is known yet.
func (m *Manager) reusable(ctx context.Context, shard core.Shard, texts []string) (bool, error) {
	dim, ok, err := m.cache.MatchShard(ctx, shard.Index, core.ShardDigest(shard.IDs, texts))
	if err != nil {
		return false, fmt.Errorf("%w: check shard %d: %w", core.ErrIO, shard.Index, err)
	}
	if !ok {
		return false, nil
	}
	if dim > 0 {
		if err := m.observeDimension(dim); err != nil {
			// Cached with another model or width; recompute.
			m.logger.Warn("cached shard has a different width, recomputing", "shard", shard.Index, "err", err)
			return false, nil
		}
	}
	return true, nil
}

// Release releases the worker pool.
// The manager should not be used after calling Release.
func (m *Manager) Release() {
	if m.pool != nil {
		m.pool.Release()
	}
}
