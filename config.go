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
	"fmt"
	"math"
	"path/filepath"
	"runtime"

	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/labels"
	"github.com/poiesic/dataprep/storage"
)

// Config holds the parameters of a pipeline run.
type Config struct {
	// SourceDir is the directory relative paths are resolved against.
	SourceDir string

	// RecordsFile is the tab-separated record source.
	// Default: "products/products.tsv"
	RecordsFile string

	// LabelsFile is the newline-delimited label vocabulary.
	// Default: "products/categories.txt"
	LabelsFile string

	// OutputPath is where the dataset container is published. Its directory
	// is created if missing.
	OutputPath string

	// CacheDir holds the shard cache shared by the two phases.
	CacheDir string

	// ChunkSize is the number of rows buffered per partition during assembly.
	// Default: 4096
	ChunkSize int

	// ShardSize is the number of records embedded as one unit.
	// Default: 10000
	ShardSize int

	// TrainRatio is the probability that a record lands in train.
	// 1 or more puts everything in train; 0 puts everything in dev.
	// Default: 0.8
	TrainRatio float64

	// Seed drives the split. The same seed reproduces the same split.
	Seed uint64

	// Dimension is the expected embedding width. 0 accepts whatever the
	// provider returns, as long as it is consistent.
	Dimension int

	// Workers is the number of shards embedded concurrently.
	// Default: runtime.NumCPU() / 2, with a minimum of 1
	Workers int

	// RateLimit caps embedding requests per second. 0 disables limiting.
	RateLimit float64

	// OnMissingLabels decides what happens when LabelsFile is unreadable.
	// Default: labels.Abort
	OnMissingLabels labels.OnMissing

	// KeySuffix is appended to each source id to form the record key.
	KeySuffix string

	// Compression is applied to cached shard values.
	// Default: storage.CompressionZSTD
	Compression storage.Compression

	// SkipExisting reuses cached shards whose records are unchanged.
	// Default: true
	SkipExisting bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithSourceDir sets the source directory.
func WithSourceDir(dir string) ConfigOption {
	return func(c *Config) { c.SourceDir = dir }
}

// WithRecordsFile sets the record source path.
func WithRecordsFile(path string) ConfigOption {
	return func(c *Config) { c.RecordsFile = path }
}

// WithLabelsFile sets the label vocabulary path.
func WithLabelsFile(path string) ConfigOption {
	return func(c *Config) { c.LabelsFile = path }
}

// WithOutputPath sets the dataset container path.
func WithOutputPath(path string) ConfigOption {
	return func(c *Config) { c.OutputPath = path }
}

// WithCacheDir sets the shard cache directory.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) { c.CacheDir = dir }
}

// WithChunkSize sets the assembly chunk size.
func WithChunkSize(size int) ConfigOption {
	return func(c *Config) { c.ChunkSize = size }
}

// WithShardSize sets the embedding shard size.
func WithShardSize(size int) ConfigOption {
	return func(c *Config) { c.ShardSize = size }
}

// WithTrainRatio sets the train probability.
func WithTrainRatio(ratio float64) ConfigOption {
	return func(c *Config) { c.TrainRatio = ratio }
}

// WithSeed sets the split seed.
func WithSeed(seed uint64) ConfigOption {
	return func(c *Config) { c.Seed = seed }
}

// WithDimension sets the expected embedding width.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) { c.Dimension = dim }
}

// WithWorkers sets the embedding concurrency.
func WithWorkers(n int) ConfigOption {
	return func(c *Config) { c.Workers = n }
}

// WithRateLimit sets the embedding request rate limit.
func WithRateLimit(perSecond float64) ConfigOption {
	return func(c *Config) { c.RateLimit = perSecond }
}

// WithOnMissingLabels sets the missing vocabulary policy.
func WithOnMissingLabels(policy labels.OnMissing) ConfigOption {
	return func(c *Config) { c.OnMissingLabels = policy }
}

// WithKeySuffix sets the suffix appended to source ids.
func WithKeySuffix(suffix string) ConfigOption {
	return func(c *Config) { c.KeySuffix = suffix }
}

// WithCompression sets the shard cache compression.
func WithCompression(comp storage.Compression) ConfigOption {
	return func(c *Config) { c.Compression = comp }
}

// WithSkipExisting toggles reuse of cached shards.
func WithSkipExisting(skip bool) ConfigOption {
	return func(c *Config) { c.SkipExisting = skip }
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return &Config{
		SourceDir:       ".",
		RecordsFile:     filepath.Join("products", "products.tsv"),
		LabelsFile:      filepath.Join("products", "categories.txt"),
		OutputPath:      filepath.Join("products", "dataset.dpds"),
		CacheDir:        filepath.Join("products", "shard-cache"),
		ChunkSize:       4096,
		ShardSize:       10000,
		TrainRatio:      0.8,
		Workers:         workers,
		OnMissingLabels: labels.Abort,
		Compression:     storage.CompressionZSTD,
		SkipExisting:    true,
	}
}

// NewConfig creates a Config with the default values and applies opts.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable. Errors wrap
// core.ErrConfig.
func (c *Config) Validate() error {
	switch {
	case c.RecordsFile == "":
		return fmt.Errorf("%w: RecordsFile is required", core.ErrConfig)
	case c.LabelsFile == "":
		return fmt.Errorf("%w: LabelsFile is required", core.ErrConfig)
	case c.OutputPath == "":
		return fmt.Errorf("%w: OutputPath is required", core.ErrConfig)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: ChunkSize must be at least 1, got %d", core.ErrConfig, c.ChunkSize)
	case c.ShardSize < 1:
		return fmt.Errorf("%w: ShardSize must be at least 1, got %d", core.ErrConfig, c.ShardSize)
	case math.IsNaN(c.TrainRatio) || c.TrainRatio < 0:
		return fmt.Errorf("%w: TrainRatio must not be negative, got %v", core.ErrConfig, c.TrainRatio)
	case c.Dimension < 0:
		return fmt.Errorf("%w: Dimension must not be negative, got %d", core.ErrConfig, c.Dimension)
	case c.Workers < 1:
		return fmt.Errorf("%w: Workers must be at least 1, got %d", core.ErrConfig, c.Workers)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: RateLimit must not be negative, got %v", core.ErrConfig, c.RateLimit)
	}
	return nil
}

// RecordsPath resolves RecordsFile against SourceDir.
func (c *Config) RecordsPath() string {
	return c.resolve(c.RecordsFile)
}

// LabelsPath resolves LabelsFile against SourceDir.
func (c *Config) LabelsPath() string {
	return c.resolve(c.LabelsFile)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.SourceDir == "" {
		return path
	}
	return filepath.Join(c.SourceDir, path)
}
