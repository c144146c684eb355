package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/labels"
	"github.com/poiesic/dataprep/metrics"
	"github.com/poiesic/dataprep/split"
	"github.com/poiesic/dataprep/storage"
)

// DefaultChunkSize is the number of rows buffered per partition before a flush.
const DefaultChunkSize = 4096

// Order is the canonical record ordering. *catalog.Index satisfies it.
type Order interface {
	Len() int
	IDs() []string
	Get(id string) (*core.Record, bool)
}

// Input is everything one assembly run consumes.
type Input struct {
	Order      Order
	Shards     []core.Shard
	Membership *split.Membership
	Train      Store
	Dev        Store
}

// PartitionStats reports what was written to one partition.
type PartitionStats struct {
	Written int
	Flushes int
}

// Result summarizes an assembly run.
type Result struct {
	Train      PartitionStats
	Dev        PartitionStats
	Dim        int
	NumClasses int
	Duration   time.Duration
}

// Assembler builds dataset partitions from the shard cache.
type Assembler struct {
	cache     storage.ShardCache
	vocab     *labels.Vocabulary
	chunkSize int
	dim       int
	metrics   metrics.Collector
	logger    *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithChunkSize sets the rows buffered per partition. Values below 1 keep
// the default.
func WithChunkSize(size int) Option {
	return func(a *Assembler) {
		if size >= 1 {
			a.chunkSize = size
		}
	}
}

// WithDimension fixes the expected embedding width. Without it the first
// cached shard decides.
func WithDimension(dim int) Option {
	return func(a *Assembler) {
		a.dim = dim
	}
}

// WithMetrics sets the collector notified of flushes.
func WithMetrics(c metrics.Collector) Option {
	return func(a *Assembler) {
		if c != nil {
			a.metrics = c
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Assembler reading from cache and encoding labels with vocab.
func New(cache storage.ShardCache, vocab *labels.Vocabulary, opts ...Option) (*Assembler, error) {
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if vocab == nil {
		return nil, ErrVocabularyRequired
	}
	a := &Assembler{
		cache:     cache,
		vocab:     vocab,
		chunkSize: DefaultChunkSize,
		metrics:   metrics.NoopCollector{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "assembly")
	return a, nil
}

// Assemble streams every shard into the train and dev stores. On error the
// stores hold a partial result and must be discarded.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	start := time.Now()
	train := &partition{name: core.PartitionTrain, store: in.Train, metrics: a.metrics}
	dev := &partition{name: core.PartitionDev, store: in.Dev, metrics: a.metrics}
	dim := a.dim
	classes := a.vocab.Size()

	a.logger.Info("assembling dataset",
		"records", in.Order.Len(), "shards", len(in.Shards), "chunkSize", a.chunkSize,
		"train", in.Membership.TrainCount(), "dev", in.Membership.DevCount())

	pos := 0
	for _, shard := range in.Shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shardStart := time.Now()

		entry, vectors, err := a.loadShard(ctx, in.Order, shard)
		if err != nil {
			return nil, err
		}
		if len(shard.IDs) > 0 {
			if dim == 0 {
				dim = entry.Dim
			}
			if entry.Dim != dim {
				return nil, fmt.Errorf("%w: shard %d has width %d, expected %d",
					core.ErrInvalidShardEntry, shard.Index, entry.Dim, dim)
			}
			if train.chunk == nil {
				train.chunk = newChunk(a.chunkSize, dim, classes)
				dev.chunk = newChunk(a.chunkSize, dim, classes)
			}
		}

		for j, id := range shard.IDs {
			rec, _ := in.Order.Get(id)
			target := dev
			if in.Membership.IsTrain(pos) {
				target = train
			}

			if len(vectors[j]) != dim {
				return nil, fmt.Errorf("%w: record %q has width %d, expected %d",
					core.ErrInvalidShardEntry, id, len(vectors[j]), dim)
			}
			embRow, labelRow := target.chunk.next()
			copy(embRow, vectors[j])
			if err := a.vocab.EncodeInto(rec.Labels, labelRow); err != nil {
				return nil, fmt.Errorf("record %q: %w", id, err)
			}
			target.chunk.commit(id)

			if target.chunk.full() {
				if err := target.flush(); err != nil {
					return nil, err
				}
			}
			pos++
		}

		a.logger.Debug("shard assembled", "shard", shard.Index, "records", len(shard.IDs),
			"train", train.written, "dev", dev.written, "duration", time.Since(shardStart))
	}

	if err := train.finalize(); err != nil {
		return nil, err
	}
	if err := dev.finalize(); err != nil {
		return nil, err
	}

	result := &Result{
		Train:      PartitionStats{Written: train.written, Flushes: train.flushes},
		Dev:        PartitionStats{Written: dev.written, Flushes: dev.flushes},
		Dim:        dim,
		NumClasses: classes,
		Duration:   time.Since(start),
	}
	a.logger.Info("dataset assembled",
		"train", result.Train.Written, "dev", result.Dev.Written,
		"dim", result.Dim, "classes", result.NumClasses, "duration", result.Duration)
	return result, nil
}

// loadShard fetches a shard's entry and returns its vectors aligned with
// shard.IDs.
func (a *Assembler) loadShard(ctx context.Context, order Order, shard core.Shard) (*core.ShardEntry, [][]float32, error) {
	entry, err := a.cache.GetShard(ctx, shard.Index)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: shard %d is not cached", ErrMissingVector, shard.Index)
		}
		if errors.Is(err, core.ErrInvalidShardEntry) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: read shard %d: %w", core.ErrIO, shard.Index, err)
	}
	if err := core.ValidateShardEntry(entry); err != nil {
		return nil, nil, fmt.Errorf("shard %d: %w", shard.Index, err)
	}

	texts := make([]string, len(shard.IDs))
	for j, id := range shard.IDs {
		rec, _ := order.Get(id)
		texts[j] = rec.Text
	}
	if entry.Digest != core.ShardDigest(shard.IDs, texts) {
		return nil, nil, fmt.Errorf("%w: shard %d was embedded from different records", ErrStaleShard, shard.Index)
	}

	// Entries are written in shard order, so positional access is the
	// common case.
	if slices.Equal(entry.IDs, shard.IDs) {
		return entry, entry.Vectors, nil
	}
	vectors := make([][]float32, len(shard.IDs))
	for j, id := range shard.IDs {
		vec, ok := entry.Lookup(id)
		if !ok {
			return nil, nil, fmt.Errorf("%w: record %q in shard %d", ErrMissingVector, id, shard.Index)
		}
		vectors[j] = vec
	}
	return entry, vectors, nil
}

// validateInput checks that the shard plan is an exact, contiguous cut of
// the canonical order and that membership covers every position.
func validateInput(in Input) error {
	if in.Order == nil || in.Membership == nil || in.Train == nil || in.Dev == nil {
		return fmt.Errorf("%w: assembly input needs an order, a membership and two stores", core.ErrConfig)
	}
	if in.Membership.Len() != in.Order.Len() {
		return fmt.Errorf("%w: membership covers %d records, order has %d",
			ErrOrderMismatch, in.Membership.Len(), in.Order.Len())
	}

	ids := in.Order.IDs()
	pos := 0
	for i, shard := range in.Shards {
		if shard.Index != i {
			return fmt.Errorf("%w: shard at position %d has index %d", ErrOrderMismatch, i, shard.Index)
		}
		if i < len(in.Shards)-1 && len(shard.IDs) != len(in.Shards[0].IDs) {
			return fmt.Errorf("%w: shard %d has %d records, shard 0 has %d",
				ErrOrderMismatch, i, len(shard.IDs), len(in.Shards[0].IDs))
		}
		for _, id := range shard.IDs {
			if pos >= len(ids) || ids[pos] != id {
				return fmt.Errorf("%w: shard %d disagrees with the record order at position %d", ErrOrderMismatch, i, pos)
			}
			if _, ok := in.Order.Get(id); !ok {
				return fmt.Errorf("%w: record %q", ErrOrderMismatch, id)
			}
			pos++
		}
	}
	if pos != len(ids) {
		return fmt.Errorf("%w: shards cover %d of %d records", ErrOrderMismatch, pos, len(ids))
	}
	return nil
}
