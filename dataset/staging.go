package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/storage"
)

// Staging is a hidden working directory holding the groups of one
// in-progress dataset.
type Staging struct {
	dir    string
	layout Layout
	runID  string
	groups []*Group
	closed bool
	logger *slog.Logger
}

// StagingOption configures a Staging.
type StagingOption func(*Staging)

// WithRunID sets the run identifier recorded in the container header.
// Default is a random UUID.
func WithRunID(id string) StagingOption {
	return func(s *Staging) {
		s.runID = id
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) StagingOption {
	return func(s *Staging) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStaging creates outputDir if needed and a staging directory inside it
// with one empty group per partition.
func NewStaging(outputDir string, layout Layout, opts ...StagingOption) (*Staging, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", core.ErrIO, err)
	}
	dir, err := os.MkdirTemp(outputDir, ".dataprep-staging-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging directory: %w", core.ErrIO, err)
	}

	s := &Staging{
		dir:    dir,
		layout: layout,
		runID:  uuid.NewString(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "dataset")

	for _, name := range core.Partitions {
		g, err := createGroup(dir, name, layout)
		if err != nil {
			s.Discard()
			return nil, err
		}
		s.groups = append(s.groups, g)
	}
	return s, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// RunID returns the identifier that Publish records.
func (s *Staging) RunID() string {
	return s.runID
}

// Group returns the staging group of a partition.
func (s *Staging) Group(name core.PartitionName) (*Group, error) {
	for _, g := range s.groups {
		if g.name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// Train returns the train group.
func (s *Staging) Train() *Group {
	g, _ := s.Group(core.PartitionTrain)
	return g
}

// Dev returns the dev group.
func (s *Staging) Dev() *Group {
	g, _ := s.Group(core.PartitionDev)
	return g
}

// Publish writes the container to path atomically and removes the staging
// directory. Groups must already be trimmed.
func (s *Staging) Publish(path string) (*core.ContainerHeader, error) {
	if s.closed {
		return nil, ErrStagingClosed
	}

	header := &core.ContainerHeader{
		Version:    Version,
		RunID:      s.runID,
		Dim:        s.layout.Dim,
		NumClasses: s.layout.NumClasses,
		IDWidth:    s.layout.IDWidth,
		CreatedAt:  time.Now().UnixMicro(),
	}

	err := saveToFile(path, func(w io.Writer) error {
		var off int64
		for _, g := range s.groups {
			gh := core.GroupHeader{Name: string(g.name), Size: g.rows}

			gh.EmbeddingsOffset = off
			n, err := copyFile(w, g.embeddings, int64(g.rows)*s.layout.embeddingBytes())
			if err != nil {
				return err
			}
			off += n

			gh.LabelsOffset = off
			n, err = copyFile(w, g.labels, int64(g.rows)*s.layout.labelBytes())
			if err != nil {
				return err
			}
			off += n

			gh.IDsOffset = off
			n, err = copyFile(w, g.ids, int64(g.rows)*s.layout.idBytes())
			if err != nil {
				return err
			}
			off += n

			header.Groups = append(header.Groups, gh)
		}

		encoded := storage.MarshalContainerHeader(header)
		trailer := make([]byte, trailerSize)
		binary.LittleEndian.PutUint32(trailer[0:], uint32(len(encoded)))
		binary.LittleEndian.PutUint32(trailer[4:], crc32.ChecksumIEEE(encoded))
		copy(trailer[8:], Magic)
		if _, err := w.Write(encoded); err != nil {
			return err
		}
		_, err := w.Write(trailer)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: publish dataset: %w", core.ErrIO, err)
	}

	s.logger.Info("dataset published", "path", path, "runID", header.RunID,
		"train", s.Train().rows, "dev", s.Dev().rows, "dim", header.Dim, "classes", header.NumClasses)
	if err := s.Discard(); err != nil {
		s.logger.Warn("failed to remove staging directory", "dir", s.dir, "err", err)
	}
	return header, nil
}

// Discard closes the groups and removes the staging directory. It is safe
// to call more than once.
func (s *Staging) Discard() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, g := range s.groups {
		g.close()
	}
	return os.RemoveAll(s.dir)
}

// copyFile copies exactly size bytes from the start of f.
func copyFile(w io.Writer, f *os.File, size int64) (int64, error) {
	n, err := io.Copy(w, io.NewSectionReader(f, 0, size))
	if err != nil {
		return n, err
	}
	if n != size {
		return n, fmt.Errorf("staged file %s holds %d bytes, expected %d", f.Name(), n, size)
	}
	return n, nil
}

// saveToFile writes through a temp file in the target directory, syncs it,
// renames it over filename and syncs the directory.
func saveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
