// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataprep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/dataprep/ai"
	"github.com/poiesic/dataprep/assembly"
	"github.com/poiesic/dataprep/catalog"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/dataset"
	"github.com/poiesic/dataprep/embedding"
	"github.com/poiesic/dataprep/labels"
	"github.com/poiesic/dataprep/metrics"
	"github.com/poiesic/dataprep/split"
	"github.com/poiesic/dataprep/storage"
	"github.com/poiesic/dataprep/storage/badger"
)

// Pipeline runs the embed and assemble phases against one shard cache.
type Pipeline struct {
	config    *Config
	backend   *badger.Backend
	cache     storage.ShardCache
	manifests storage.ManifestRepository
	metrics   metrics.Collector
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	inMemory bool
	metrics  metrics.Collector
	progress io.Writer
	logger   *slog.Logger
}

// WithInMemoryCache keeps the shard cache in memory instead of CacheDir.
// The cache then lives only as long as the Pipeline.
func WithInMemoryCache() Option {
	return func(o *pipelineOptions) { o.inMemory = true }
}

// WithMetrics sets the collector notified of pipeline events.
func WithMetrics(c metrics.Collector) Option {
	return func(o *pipelineOptions) { o.metrics = c }
}

// WithProgress writes embedding progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(o *pipelineOptions) { o.progress = w }
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *pipelineOptions) { o.logger = logger }
}

// Open validates config and opens the shard cache.
func Open(config *Config, opts ...Option) (*Pipeline, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &pipelineOptions{
		metrics: metrics.NoopCollector{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.metrics == nil {
		options.metrics = metrics.NoopCollector{}
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(config.CacheDir, options.inMemory, badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: open shard cache: %w", core.ErrIO, err)
	}

	cache, err := badger.NewShardCache(backend, badger.WithCompression(config.Compression))
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Pipeline{
		config:    config,
		backend:   backend,
		cache:     cache,
		manifests: badger.NewManifestRepository(backend),
		metrics:   options.metrics,
		progress:  options.progress,
		logger:    options.logger.With("component", "pipeline"),
	}, nil
}

// Close releases the shard cache.
func (p *Pipeline) Close() error {
	if err := p.cache.Close(); err != nil {
		p.logger.Error("error closing shard cache", "err", err)
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// ShardCache exposes the underlying cache.
func (p *Pipeline) ShardCache() storage.ShardCache {
	return p.cache
}

// EmbedReport summarizes the embed phase.
type EmbedReport struct {
	Records  int
	Shards   int
	Manifest *core.Manifest
	Stats    *embedding.RunStats
}

// AssembleReport summarizes the assemble phase.
type AssembleReport struct {
	Path   string
	Result *assembly.Result
	Header *core.ContainerHeader
}

// Report summarizes a full run.
type Report struct {
	Embed    *EmbedReport
	Assemble *AssembleReport
}

// inputs are the read-only objects both phases derive from the sources.
type inputs struct {
	index  *catalog.Index
	vocab  *labels.Vocabulary
	shards []core.Shard
}

func (p *Pipeline) load() (*inputs, error) {
	vocab, err := labels.Build(p.config.LabelsPath(),
		labels.WithOnMissing(p.config.OnMissingLabels), labels.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}

	keyFunc := catalog.Identity
	if p.config.KeySuffix != "" {
		keyFunc = catalog.Suffix(p.config.KeySuffix)
	}
	index, err := catalog.Parse(p.config.RecordsPath(),
		catalog.WithKeyFunc(keyFunc), catalog.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}

	// Unknown labels would otherwise surface only after every shard has
	// been embedded.
	for _, id := range index.IDs() {
		rec, _ := index.Get(id)
		if err := vocab.Validate(rec.Labels); err != nil {
			return nil, fmt.Errorf("record %q: %w", id, err)
		}
	}

	shards, err := embedding.PartitionRecords(index.IDs(), p.config.ShardSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}
	return &inputs{index: index, vocab: vocab, shards: shards}, nil
}

// Embed runs the embed phase and saves the manifest when every shard
// succeeded.
func (p *Pipeline) Embed(ctx context.Context, embedder ai.Embedder) (*EmbedReport, error) {
	in, err := p.load()
	if err != nil {
		return nil, err
	}
	return p.embed(ctx, embedder, in)
}

func (p *Pipeline) embed(ctx context.Context, embedder ai.Embedder, in *inputs) (*EmbedReport, error) {
	manager, err := embedding.NewManager(p.cache, embedder,
		embedding.WithPoolSize(p.config.Workers),
		embedding.WithDimension(p.config.Dimension),
		embedding.WithRateLimit(p.config.RateLimit, p.config.Workers),
		embedding.WithMetrics(p.metrics),
		embedding.WithProgress(p.progress, p.config.ShardSize),
		embedding.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}
	defer manager.Release()

	stats, err := manager.Run(ctx, in.index, in.shards, embedding.RunOptions{SkipExisting: p.config.SkipExisting})
	report := &EmbedReport{Records: in.index.Len(), Shards: len(in.shards), Stats: stats}
	// Shards that completed stay usable by the next run even when others failed.
	if syncErr := p.backend.Sync(); syncErr != nil {
		return report, errors.Join(err, fmt.Errorf("%w: sync shard cache: %w", core.ErrIO, syncErr))
	}
	lsm, vlog := p.backend.Size()
	p.logger.Debug("shard cache size", "lsmBytes", lsm, "vlogBytes", vlog)
	if err != nil {
		return report, err
	}

	manifest := &core.Manifest{
		ShardSize:  p.config.ShardSize,
		NumShards:  len(in.shards),
		NumRecords: in.index.Len(),
		Dim:        stats.Dim,
	}
	if err := p.manifests.SaveManifest(ctx, manifest); err != nil {
		return report, fmt.Errorf("%w: save manifest: %w", core.ErrIO, err)
	}
	report.Manifest = manifest
	return report, nil
}

// Assemble runs the assemble phase against the cache left by Embed and
// publishes the container at OutputPath.
func (p *Pipeline) Assemble(ctx context.Context) (*AssembleReport, error) {
	in, err := p.load()
	if err != nil {
		return nil, err
	}
	return p.assemble(ctx, in)
}

func (p *Pipeline) assemble(ctx context.Context, in *inputs) (*AssembleReport, error) {
	manifest, err := p.manifests.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load manifest: %w", core.ErrIO, err)
	}
	if manifest == nil {
		return nil, fmt.Errorf("%w: shard cache has no manifest, run the embed phase first", core.ErrConfig)
	}
	if manifest.ShardSize != p.config.ShardSize || manifest.NumShards != len(in.shards) || manifest.NumRecords != in.index.Len() {
		return nil, fmt.Errorf("%w: cache was built with %d records in %d shards of %d, now %d records in %d shards of %d",
			assembly.ErrOrderMismatch, manifest.NumRecords, manifest.NumShards, manifest.ShardSize,
			in.index.Len(), len(in.shards), p.config.ShardSize)
	}
	if p.config.Dimension != 0 && manifest.Dim != 0 && manifest.Dim != p.config.Dimension {
		return nil, fmt.Errorf("%w: cache holds %d-wide vectors, expected %d", core.ErrConfig, manifest.Dim, p.config.Dimension)
	}

	membership, err := split.Assign(in.index.Len(), p.config.TrainRatio, p.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	layout := dataset.Layout{Dim: manifest.Dim, NumClasses: in.vocab.Size(), IDWidth: in.index.MaxIDWidth()}
	staging, err := dataset.NewStaging(filepath.Dir(p.config.OutputPath), layout, dataset.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	published := false
	defer func() {
		if !published {
			if err := staging.Discard(); err != nil {
				p.logger.Warn("failed to discard staging directory", "dir", staging.Dir(), "err", err)
			}
		}
	}()

	trainCap, devCap := membership.Capacities()
	if err := staging.Train().Grow(trainCap); err != nil {
		return nil, fmt.Errorf("%w: reserve train rows: %w", core.ErrIO, err)
	}
	if err := staging.Dev().Grow(devCap); err != nil {
		return nil, fmt.Errorf("%w: reserve dev rows: %w", core.ErrIO, err)
	}

	assembler, err := assembly.New(p.cache, in.vocab,
		assembly.WithChunkSize(p.config.ChunkSize),
		assembly.WithDimension(manifest.Dim),
		assembly.WithMetrics(p.metrics),
		assembly.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}

	result, err := assembler.Assemble(ctx, assembly.Input{
		Order:      in.index,
		Shards:     in.shards,
		Membership: membership,
		Train:      staging.Train(),
		Dev:        staging.Dev(),
	})
	if err != nil {
		return nil, err
	}

	header, err := staging.Publish(p.config.OutputPath)
	if err != nil {
		return nil, err
	}
	published = true

	return &AssembleReport{Path: p.config.OutputPath, Result: result, Header: header}, nil
}

// Run performs the embed phase followed by the assemble phase. The sources
// are read once and shared by both phases.
func (p *Pipeline) Run(ctx context.Context, embedder ai.Embedder) (*Report, error) {
	start := time.Now()
	in, err := p.load()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	report.Embed, err = p.embed(ctx, embedder, in)
	if err != nil {
		return report, fmt.Errorf("embed phase: %w", err)
	}

	report.Assemble, err = p.assemble(ctx, in)
	if err != nil {
		return report, fmt.Errorf("assemble phase: %w", err)
	}

	p.logger.Info("run complete", "path", report.Assemble.Path,
		"train", report.Assemble.Result.Train.Written, "dev", report.Assemble.Result.Dev.Written,
		"duration", time.Since(start))
	return report, nil
}

// IsShardFailure reports whether err contains at least one shard whose
// embedding failed. Cache write failures and cancellation do not count.
func IsShardFailure(err error) bool {
	return errors.Is(err, core.ErrShardCompute)
}
