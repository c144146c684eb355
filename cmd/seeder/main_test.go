package main

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/poiesic/dataprep/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	cats := []string{"a", "b", "c"}

	var rows []string
	for row := range records(rng, 50, cats, 2) {
		rows = append(rows, row)
	}
	require.Len(t, rows, 50)

	for _, row := range rows {
		fields := strings.Split(row, "\t")
		require.Len(t, fields, 3)
		labels := strings.Split(fields[1], ",")
		assert.LessOrEqual(t, len(labels), 2)
		for _, l := range labels {
			assert.True(t, slices.Contains(cats, l), l)
		}
		assert.NotEmpty(t, fields[2])
	}
}

func TestWriteLinesParsesAsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.tsv")
	n, err := writeLines(path, records(rand.New(rand.NewPCG(1, 2)), 20, defaultCategories, 3))
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	index, err := catalog.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 20, index.Len())
}

func TestLinesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.txt")
	require.NoError(t, os.WriteFile(path, []byte("red\n\n  blue \n"), 0644))

	lines, err := linesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, slices.Collect(lines))
}
