package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/dataprep"
	"github.com/poiesic/dataprep/ai/mock"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/dataset"
	"github.com/poiesic/dataprep/labels"
	"github.com/poiesic/dataprep/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findStringFlag(cmd *cli.Command, name string) *cli.StringFlag {
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func TestCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"embed", "assemble", "run", "inspect"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}

	t.Run("embedding-model is required", func(t *testing.T) {
		for _, name := range []string{"embed", "run"} {
			f := findStringFlag(findCommand(t, app, name), "embedding-model")
			require.NotNil(t, f)
			assert.True(t, f.Required)
			assert.Empty(t, f.Value)
		}
	})

	t.Run("assemble takes no embedder flags", func(t *testing.T) {
		assert.Nil(t, findStringFlag(findCommand(t, app, "assemble"), "embedding-model"))
	})

	t.Run("embed without embedding-model fails", func(t *testing.T) {
		err := newApp().Run([]string{"dataprep", "embed", "--cache-dir", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding-model")
	})

	t.Run("flag defaults follow the pipeline defaults", func(t *testing.T) {
		defaults := dataprep.DefaultConfig()
		cmd := findCommand(t, app, "assemble")
		assert.Equal(t, defaults.RecordsFile, findStringFlag(cmd, "records").Value)
		assert.Equal(t, defaults.LabelsFile, findStringFlag(cmd, "labels").Value)
		assert.Equal(t, defaults.OutputPath, findStringFlag(cmd, "output").Value)
		assert.Equal(t, "zstd", findStringFlag(cmd, "compression").Value)
	})
}

// parseFlags runs the assemble flag set over args and hands the resulting
// context to fn.
func parseFlags(t *testing.T, args []string, fn func(c *cli.Context)) {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range append(pipelineFlags(), embedderFlags()...) {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	fn(cli.NewContext(newApp(), set, nil))
}

func TestConfigFromFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		parseFlags(t, nil, func(c *cli.Context) {
			config, err := configFromFlags(c)
			require.NoError(t, err)
			defaults := dataprep.DefaultConfig()
			assert.Equal(t, defaults.ShardSize, config.ShardSize)
			assert.Equal(t, defaults.TrainRatio, config.TrainRatio)
			assert.Equal(t, storage.CompressionZSTD, config.Compression)
			assert.True(t, config.SkipExisting)
		})
	})

	t.Run("overrides", func(t *testing.T) {
		args := []string{
			"--source-dir", "/data", "--shard-size", "50", "--chunk-size", "7",
			"--train-ratio", "0.6", "--seed", "11", "--compression", "lz4",
			"--on-missing-labels", "empty", "--key-suffix", ".jpg",
			"--workers", "2", "--rate-limit", "4", "--skip-existing=false",
		}
		parseFlags(t, args, func(c *cli.Context) {
			config, err := configFromFlags(c)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join("/data", dataprep.DefaultConfig().RecordsFile), config.RecordsPath())
			assert.Equal(t, 50, config.ShardSize)
			assert.Equal(t, 7, config.ChunkSize)
			assert.Equal(t, 0.6, config.TrainRatio)
			assert.Equal(t, uint64(11), config.Seed)
			assert.Equal(t, storage.CompressionLZ4, config.Compression)
			assert.Equal(t, labels.DegradeEmpty, config.OnMissingLabels)
			assert.Equal(t, ".jpg", config.KeySuffix)
			assert.Equal(t, 2, config.Workers)
			assert.Equal(t, 4.0, config.RateLimit)
			assert.False(t, config.SkipExisting)
		})
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, args := range [][]string{
			{"--compression", "brotli"},
			{"--on-missing-labels", "ignore"},
			{"--shard-size", "0"},
			{"--train-ratio", "-1"},
		} {
			parseFlags(t, args, func(c *cli.Context) {
				_, err := configFromFlags(c)
				assert.ErrorIs(t, err, core.ErrConfig, strings.Join(args, " "))
			})
		}
	})
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	products := filepath.Join(dir, "products")
	require.NoError(t, os.MkdirAll(products, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(products, "categories.txt"), []byte("red\nblue\n"), 0644))
	var rows strings.Builder
	for i := range 6 {
		fmt.Fprintf(&rows, "P%d\tred\tthing %d\n", i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(products, "products.tsv"), []byte(rows.String()), 0644))

	config := dataprep.NewConfig(
		dataprep.WithSourceDir(dir),
		dataprep.WithOutputPath(filepath.Join(dir, "out.dpds")),
		dataprep.WithShardSize(4),
		dataprep.WithWorkers(1),
	)
	pipeline, err := dataprep.Open(config, dataprep.WithInMemoryCache())
	require.NoError(t, err)
	defer pipeline.Close()
	_, err = pipeline.Run(context.Background(), mock.NewMockEmbedder(mock.WithDimension(8)))
	require.NoError(t, err)

	reader, err := dataset.Open(config.OutputPath)
	require.NoError(t, err)
	defer reader.Close()

	var out bytes.Buffer
	require.NoError(t, printContainer(&out, reader, 2))
	text := out.String()
	assert.Contains(t, text, "Dimension: 8, classes: 2, id width: 2")
	assert.Contains(t, text, "[train]")
	assert.Contains(t, text, "[dev]")
	assert.Contains(t, text, "labels=[1 0]")

	t.Run("requires one argument", func(t *testing.T) {
		err := newApp().Run([]string{"dataprep", "inspect"})
		require.Error(t, err)
	})
}

func TestStartMetrics(t *testing.T) {
	t.Run("disabled without an address", func(t *testing.T) {
		collector, err := startMetrics("", prometheus.NewRegistry())
		require.NoError(t, err)
		assert.Nil(t, collector)
	})

	t.Run("registers pipeline collectors", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		collector, err := startMetrics("127.0.0.1:0", reg)
		require.NoError(t, err)
		require.NotNil(t, collector)

		collector.RecordShard(10, time.Second, nil)
		count, err := testutil.GatherAndCount(reg, "dataprep_shards_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		_, err := startMetrics("127.0.0.1:0", reg)
		require.NoError(t, err)

		_, err = startMetrics("127.0.0.1:0", reg)
		assert.Error(t, err)
	})

	t.Run("unusable address fails", func(t *testing.T) {
		_, err := startMetrics("not-an-address", prometheus.NewRegistry())
		assert.Error(t, err)
	})
}

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[1.0000 2.0000]", formatVector([]float32{1, 2}, 4))
	assert.Equal(t, "[1.0000 2.0000 ...]", formatVector([]float32{1, 2, 3}, 2))
	assert.Equal(t, "[]", formatVector(nil, 4))
}

func TestSetupLogger(t *testing.T) {
	run := func(level string) error {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		return app.Run([]string{"test", "-l", level})
	}

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, run(level))
		})
	}

	err := run("invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
