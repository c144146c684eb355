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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/dataprep"
	"github.com/poiesic/dataprep/ai"
	"github.com/poiesic/dataprep/ai/openai"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/dataset"
	"github.com/poiesic/dataprep/labels"
	"github.com/poiesic/dataprep/metrics"
	"github.com/poiesic/dataprep/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dataprep",
		Usage: "Embed a product catalog and assemble a train/dev dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :2112)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "embed",
				Usage:  "Embed every shard of the catalog into the shard cache",
				Action: embedCommand,
				Flags:  append(pipelineFlags(), embedderFlags()...),
			},
			{
				Name:   "assemble",
				Usage:  "Assemble the dataset container from the shard cache",
				Action: assembleCommand,
				Flags:  pipelineFlags(),
			},
			{
				Name:   "run",
				Usage:  "Embed and assemble in one pass",
				Action: runCommand,
				Flags:  append(pipelineFlags(), embedderFlags()...),
			},
			{
				Name:      "inspect",
				Usage:     "Print the header and leading rows of a dataset container",
				ArgsUsage: "<container>",
				Action:    inspectCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "rows",
						Usage: "Number of rows to print per partition",
						Value: 3,
					},
				},
			},
		},
	}
}

func pipelineFlags() []cli.Flag {
	defaults := dataprep.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "source-dir",
			Aliases: []string{"s"},
			Usage:   "Directory relative paths are resolved against",
		},
		&cli.StringFlag{
			Name:  "records",
			Usage: "Tab-separated catalog file (id, categories, text)",
			Value: defaults.RecordsFile,
		},
		&cli.StringFlag{
			Name:  "labels",
			Usage: "Category vocabulary file, one label per line",
			Value: defaults.LabelsFile,
		},
		&cli.StringFlag{
			Name:  "on-missing-labels",
			Usage: "What to do when the vocabulary file is missing (abort, empty)",
			Value: defaults.OnMissingLabels.String(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Path of the published dataset container",
			Value:   defaults.OutputPath,
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "BadgerDB directory holding embedded shards",
			Value: defaults.CacheDir,
		},
		&cli.StringFlag{
			Name:  "compression",
			Usage: "Shard cache compression (none, lz4, zstd)",
			Value: defaults.Compression.String(),
		},
		&cli.IntFlag{
			Name:  "shard-size",
			Usage: "Records per embedding shard",
			Value: defaults.ShardSize,
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Rows buffered per partition before flushing",
			Value: defaults.ChunkSize,
		},
		&cli.Float64Flag{
			Name:  "train-ratio",
			Usage: "Probability that a record lands in the train partition",
			Value: defaults.TrainRatio,
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for the train/dev split",
			Value: defaults.Seed,
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Expected embedding width (0 adopts the provider's)",
		},
		&cli.StringFlag{
			Name:  "key-suffix",
			Usage: "Suffix appended to source ids to form record keys",
		},
	}
}

func embedderFlags() []cli.Flag {
	defaults := dataprep.DefaultConfig()
	aiDefaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: aiDefaults.EmbeddingHost,
		},
		&cli.StringFlag{
			Name:     "embedding-model",
			Usage:    "Embedding model name",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Embedding service API token",
			EnvVars: []string{"DATAPREP_EMBEDDING_TOKEN"},
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Texts per embedding request",
			Value: aiDefaults.BatchSize,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Shards embedded concurrently",
			Value: defaults.Workers,
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Maximum shard requests per second (0 disables)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per embedding request",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "skip-existing",
			Usage: "Reuse cached shards whose ids and texts are unchanged",
			Value: defaults.SkipExisting,
		},
	}
}

// configFromFlags builds a pipeline configuration from the command's flags.
func configFromFlags(c *cli.Context) (*dataprep.Config, error) {
	onMissing, err := labels.ParseOnMissing(c.String("on-missing-labels"))
	if err != nil {
		return nil, err
	}
	compression, err := storage.ParseCompression(c.String("compression"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	opts := []dataprep.ConfigOption{
		dataprep.WithSourceDir(c.String("source-dir")),
		dataprep.WithRecordsFile(c.String("records")),
		dataprep.WithLabelsFile(c.String("labels")),
		dataprep.WithOnMissingLabels(onMissing),
		dataprep.WithOutputPath(c.String("output")),
		dataprep.WithCacheDir(c.String("cache-dir")),
		dataprep.WithCompression(compression),
		dataprep.WithShardSize(c.Int("shard-size")),
		dataprep.WithChunkSize(c.Int("chunk-size")),
		dataprep.WithTrainRatio(c.Float64("train-ratio")),
		dataprep.WithSeed(c.Uint64("seed")),
		dataprep.WithDimension(c.Int("dimension")),
		dataprep.WithKeySuffix(c.String("key-suffix")),
	}
	if c.IsSet("workers") {
		opts = append(opts, dataprep.WithWorkers(c.Int("workers")))
	}
	if c.IsSet("rate-limit") {
		opts = append(opts, dataprep.WithRateLimit(c.Float64("rate-limit")))
	}
	if c.IsSet("skip-existing") {
		opts = append(opts, dataprep.WithSkipExisting(c.Bool("skip-existing")))
	}

	config := dataprep.NewConfig(opts...)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func embedderFromFlags(c *cli.Context) (ai.Embedder, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithToken(c.String("token")),
		ai.WithBatchSize(c.Int("batch-size")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	if c.Int("max-retries") <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return ai.NewRetryingEmbedder(embedder, c.Int("max-retries"), c.Duration("retry-delay")), nil
}

func openPipeline(c *cli.Context, config *dataprep.Config) (*dataprep.Pipeline, error) {
	opts := []dataprep.Option{dataprep.WithProgress(os.Stderr)}
	collector, err := startMetrics(c.String("metrics-addr"), prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics: %w", err)
	}
	if collector != nil {
		opts = append(opts, dataprep.WithMetrics(collector))
	}
	pipeline, err := dataprep.Open(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return pipeline, nil
}

// startMetrics registers the pipeline collectors with reg and serves them
// on addr at /metrics. It returns a nil collector when addr is empty.
func startMetrics(addr string, reg prometheus.Registerer) (metrics.Collector, error) {
	if addr == "" {
		return nil, nil
	}
	collector, err := metrics.NewPrometheusCollector(reg)
	if err != nil {
		return nil, err
	}

	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	go func() {
		slog.Info("serving metrics", "addr", listener.Addr().String())
		if err := http.Serve(listener, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return collector, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so an interrupted run
// discards its staging directory instead of leaving a partial container.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func embedCommand(c *cli.Context) error {
	config, err := configFromFlags(c)
	if err != nil {
		return err
	}
	embedder, err := embedderFromFlags(c)
	if err != nil {
		return err
	}
	pipeline, err := openPipeline(c, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "Records: %s\n", config.RecordsPath())
	fmt.Fprintf(os.Stderr, "Shard cache: %s\n", config.CacheDir)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	report, err := pipeline.Embed(ctx, embedder)
	if report != nil && report.Stats != nil {
		printEmbedStats(os.Stderr, report)
	}
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	return nil
}

func assembleCommand(c *cli.Context) error {
	config, err := configFromFlags(c)
	if err != nil {
		return err
	}
	pipeline, err := openPipeline(c, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := pipeline.Assemble(ctx)
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}
	printAssembleReport(os.Stderr, report)
	return nil
}

func runCommand(c *cli.Context) error {
	config, err := configFromFlags(c)
	if err != nil {
		return err
	}
	embedder, err := embedderFromFlags(c)
	if err != nil {
		return err
	}
	pipeline, err := openPipeline(c, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := pipeline.Run(ctx, embedder)
	if report != nil && report.Embed != nil && report.Embed.Stats != nil {
		printEmbedStats(os.Stderr, report.Embed)
	}
	if err != nil {
		if dataprep.IsShardFailure(err) {
			fmt.Fprintln(os.Stderr, "Some shards failed; rerun to retry only those shards.")
		}
		return err
	}
	printAssembleReport(os.Stderr, report.Assemble)
	return nil
}

func inspectCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one container path")
	}
	reader, err := dataset.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer reader.Close()

	return printContainer(os.Stdout, reader, c.Int("rows"))
}

func printEmbedStats(w io.Writer, report *dataprep.EmbedReport) {
	s := report.Stats
	fmt.Fprintf(w, "Records: %d in %d shards\n", report.Records, report.Shards)
	fmt.Fprintf(w, "Shards embedded: %d, skipped: %d, failed: %d\n", s.Embedded, s.Skipped, s.Failed)
	fmt.Fprintf(w, "Dimension: %d, duration: %s\n", s.Dim, s.Duration.Round(time.Millisecond))
}

func printAssembleReport(w io.Writer, report *dataprep.AssembleReport) {
	r := report.Result
	fmt.Fprintf(w, "Published %s (run %s)\n", report.Path, report.Header.RunID)
	fmt.Fprintf(w, "Train rows: %d, dev rows: %d\n", r.Train.Written, r.Dev.Written)
	fmt.Fprintf(w, "Dimension: %d, classes: %d, duration: %s\n", r.Dim, r.NumClasses, r.Duration.Round(time.Millisecond))
}

func printContainer(w io.Writer, reader *dataset.Reader, rows int) error {
	h := reader.Header()
	fmt.Fprintf(w, "Version: %d\n", h.Version)
	fmt.Fprintf(w, "Run: %s\n", h.RunID)
	fmt.Fprintf(w, "Created: %s\n", time.UnixMicro(h.CreatedAt).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Dimension: %d, classes: %d, id width: %d\n", h.Dim, h.NumClasses, h.IDWidth)

	for _, name := range core.Partitions {
		group, err := reader.Group(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n[%s] %d rows\n", name, group.Len())
		for i := 0; i < rows && i < group.Len(); i++ {
			row, err := group.Row(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s labels=%v embedding=%s\n", row.ID, row.Labels, formatVector(row.Embedding, 4))
		}
	}
	return nil
}

func formatVector(v []float32, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, x := range v {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
