package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/dataprep/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = Layout{Dim: 2, NumClasses: 3, IDWidth: 6}

func stage(t *testing.T, dir string) *Staging {
	t.Helper()
	s, err := NewStaging(dir, testLayout, WithRunID("run-1"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Discard() })
	return s
}

func writeSample(t *testing.T, s *Staging) {
	t.Helper()
	train, dev := s.Train(), s.Dev()

	require.NoError(t, train.Grow(4))
	require.NoError(t, train.WriteRows(0,
		[]float32{1, 2, 3, 4},
		[]int32{1, 0, 1, 0, 1, 0},
		[]string{"a.jpg", "bb.jpg"}))
	require.NoError(t, train.WriteRows(2,
		[]float32{5, 6},
		[]int32{0, 0, 1},
		[]string{"c"}))
	require.NoError(t, train.Trim(3))

	require.NoError(t, dev.Grow(1))
	require.NoError(t, dev.WriteRows(0, []float32{-1, 0.5}, []int32{1, 1, 1}, []string{"dd"}))
	require.NoError(t, dev.Trim(1))
}

func TestPublishAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := stage(t, dir)
	writeSample(t, s)

	path := filepath.Join(dir, "dataset.dpds")
	header, err := s.Publish(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", header.RunID)
	assert.Len(t, header.Groups, 2)

	_, err = os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(err), "staging directory is removed after publish")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the container remains")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, 2, h.Dim)
	assert.Equal(t, 3, h.NumClasses)
	assert.Equal(t, 6, h.IDWidth)

	train, err := r.Group(core.PartitionTrain)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())

	row, err := train.Row(1)
	require.NoError(t, err)
	assert.Equal(t, Row{ID: "bb.jpg", Embedding: []float32{3, 4}, Labels: []int32{0, 1, 0}}, row)

	row, err = train.Row(2)
	require.NoError(t, err)
	assert.Equal(t, "c", row.ID)
	assert.Equal(t, []float32{5, 6}, row.Embedding)

	_, err = train.Row(3)
	assert.ErrorIs(t, err, ErrRowOutOfRange)

	dev, err := r.Group(core.PartitionDev)
	require.NoError(t, err)
	require.Equal(t, 1, dev.Len())
	emb, err := dev.Embedding(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 0.5}, emb)
	labels, err := dev.Labels(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1, 1}, labels)

	_, err = r.Group("test")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestPublish_EmptyPartition(t *testing.T) {
	dir := t.TempDir()
	s := stage(t, dir)

	train := s.Train()
	require.NoError(t, train.Grow(1))
	require.NoError(t, train.WriteRows(0, []float32{1, 1}, []int32{0, 0, 1}, []string{"x"}))
	require.NoError(t, train.Trim(1))
	require.NoError(t, s.Dev().Trim(0))

	path := filepath.Join(dir, "ds")
	_, err := s.Publish(path)
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	dev, err := r.Group(core.PartitionDev)
	require.NoError(t, err)
	assert.Equal(t, 0, dev.Len())
}

func TestPublish_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ds")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	s := stage(t, dir)
	writeSample(t, s)
	_, err := s.Publish(path)
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	r.Close()

	_, err = s.Publish(path)
	assert.ErrorIs(t, err, ErrStagingClosed)
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	s := stage(t, dir)
	writeSample(t, s)

	require.NoError(t, s.Discard())
	require.NoError(t, s.Discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGroup_Validation(t *testing.T) {
	s := stage(t, t.TempDir())
	g := s.Train()

	err := g.WriteRows(0, []float32{1, 2}, []int32{0, 0, 0}, []string{"x"})
	assert.Error(t, err, "write beyond capacity")

	require.NoError(t, g.Grow(2))
	err = g.WriteRows(0, []float32{1, 2}, []int32{0, 0, 0}, []string{"too-long-id"})
	assert.ErrorIs(t, err, ErrIDTooLong)

	err = g.WriteRows(0, []float32{1}, []int32{0, 0, 0}, []string{"x"})
	assert.Error(t, err)

	assert.Error(t, g.Trim(3))
}

func TestOpen_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s := stage(t, dir)
	writeSample(t, s)
	path := filepath.Join(dir, "ds")
	_, err := s.Publish(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	cases := map[string][]byte{
		"too short": data[:5],
		"bad magic": append(append([]byte(nil), data[:len(data)-4]...), 'X', 'X', 'X', 'X'),
		"truncated": data[len(data)/2:],
	}
	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-trailerSize-3] ^= 0xFF
	cases["header checksum"] = flipped

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			bad := filepath.Join(t.TempDir(), "bad")
			require.NoError(t, os.WriteFile(bad, content, 0644))
			_, err := Open(bad)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, core.ErrIO)
}
