package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/dataprep/assembly"
	"github.com/poiesic/dataprep/core"
)

// Group is the file-backed staging store of one partition.
type Group struct {
	name   core.PartitionName
	layout Layout
	rows   int

	embeddings *os.File
	labels     *os.File
	ids        *os.File
	buf        []byte
}

var _ assembly.Store = (*Group)(nil)

func createGroup(dir string, name core.PartitionName, layout Layout) (*Group, error) {
	g := &Group{name: name, layout: layout}
	files := []struct {
		suffix string
		dst    **os.File
	}{
		{"emb", &g.embeddings},
		{"lbl", &g.labels},
		{"ids", &g.ids},
	}
	for _, f := range files {
		file, err := os.OpenFile(filepath.Join(dir, string(name)+"."+f.suffix), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			g.close()
			return nil, fmt.Errorf("%w: create %s group: %w", core.ErrIO, name, err)
		}
		*f.dst = file
	}
	return g, nil
}

// Name returns the partition the group stages.
func (g *Group) Name() core.PartitionName {
	return g.name
}

// Len returns the current capacity in rows.
func (g *Group) Len() int {
	return g.rows
}

// Grow extends the backing files to hold rows. New rows read as zero.
func (g *Group) Grow(rows int) error {
	if rows <= g.rows {
		return nil
	}
	if err := g.resize(rows); err != nil {
		return err
	}
	g.rows = rows
	return nil
}

// Trim truncates the backing files to exactly rows.
func (g *Group) Trim(rows int) error {
	if rows < 0 || rows > g.rows {
		return fmt.Errorf("cannot trim %s group of %d rows to %d", g.name, g.rows, rows)
	}
	if err := g.resize(rows); err != nil {
		return err
	}
	g.rows = rows
	return nil
}

func (g *Group) resize(rows int) error {
	n := int64(rows)
	if err := g.embeddings.Truncate(n * g.layout.embeddingBytes()); err != nil {
		return err
	}
	if err := g.labels.Truncate(n * g.layout.labelBytes()); err != nil {
		return err
	}
	return g.ids.Truncate(n * g.layout.idBytes())
}

// WriteRows encodes a block of rows and writes it at row offset.
func (g *Group) WriteRows(offset int, embeddings []float32, labels []int32, ids []string) error {
	n := len(ids)
	if offset < 0 || offset+n > g.rows {
		return fmt.Errorf("%w: rows [%d, %d) with capacity %d", assembly.ErrStoreOverflow, offset, offset+n, g.rows)
	}
	if len(embeddings) != n*g.layout.Dim || len(labels) != n*g.layout.NumClasses {
		return fmt.Errorf("row block has %d embedding and %d label values for %d rows of width %d/%d",
			len(embeddings), len(labels), n, g.layout.Dim, g.layout.NumClasses)
	}

	width := g.layout.IDWidth
	for _, id := range ids {
		if len(id) > width {
			return fmt.Errorf("%w: %q is %d bytes, width is %d", ErrIDTooLong, id, len(id), width)
		}
	}

	off := int64(offset)
	if err := g.writeAt(g.embeddings, off*g.layout.embeddingBytes(), len(embeddings)*4, func(b []byte) {
		putFloat32s(b, embeddings)
	}); err != nil {
		return err
	}
	if err := g.writeAt(g.labels, off*g.layout.labelBytes(), len(labels)*4, func(b []byte) {
		putInt32s(b, labels)
	}); err != nil {
		return err
	}

	return g.writeAt(g.ids, off*g.layout.idBytes(), n*width, func(b []byte) {
		clear(b)
		for i, id := range ids {
			copy(b[i*width:], id)
		}
	})
}

func (g *Group) writeAt(f *os.File, at int64, size int, fill func([]byte)) error {
	if size == 0 {
		return nil
	}
	if cap(g.buf) < size {
		g.buf = make([]byte, size)
	}
	b := g.buf[:size]
	fill(b)
	_, err := f.WriteAt(b, at)
	return err
}

func (g *Group) close() error {
	var firstErr error
	for _, f := range []*os.File{g.embeddings, g.labels, g.ids} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
