package dataset

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/storage"
	"golang.org/x/exp/mmap"
)

// Reader gives random access to a published container.
type Reader struct {
	r      *mmap.ReaderAt
	header *core.ContainerHeader
	layout Layout
}

// Open maps the container at path and validates its footer and layout.
func Open(path string) (*Reader, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open dataset: %w", core.ErrIO, err)
	}
	header, err := readHeader(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &Reader{
		r:      r,
		header: header,
		layout: Layout{Dim: header.Dim, NumClasses: header.NumClasses, IDWidth: header.IDWidth},
	}, nil
}

func readHeader(r *mmap.ReaderAt) (*core.ContainerHeader, error) {
	size := int64(r.Len())
	if size < int64(trailerSize) {
		return nil, fmt.Errorf("%w: file is %d bytes", ErrCorrupt, size)
	}

	trailer := make([]byte, trailerSize)
	if _, err := r.ReadAt(trailer, size-int64(trailerSize)); err != nil {
		return nil, fmt.Errorf("%w: read trailer: %w", ErrCorrupt, err)
	}
	if string(trailer[8:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, trailer[8:])
	}

	headerLen := int64(binary.LittleEndian.Uint32(trailer[0:]))
	headerStart := size - int64(trailerSize) - headerLen
	if headerStart < 0 {
		return nil, fmt.Errorf("%w: header length %d exceeds file size", ErrCorrupt, headerLen)
	}
	encoded := make([]byte, headerLen)
	if _, err := r.ReadAt(encoded, headerStart); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrCorrupt, err)
	}
	if crc32.ChecksumIEEE(encoded) != binary.LittleEndian.Uint32(trailer[4:]) {
		return nil, fmt.Errorf("%w: header checksum mismatch", ErrCorrupt)
	}

	header, err := storage.UnmarshalContainerHeader(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	layout := Layout{Dim: header.Dim, NumClasses: header.NumClasses, IDWidth: header.IDWidth}
	if layout.Validate() != nil {
		return nil, fmt.Errorf("%w: invalid layout %+v", ErrCorrupt, layout)
	}

	for _, g := range header.Groups {
		if g.Size < 0 {
			return nil, fmt.Errorf("%w: group %q has negative size", ErrCorrupt, g.Name)
		}
		n := int64(g.Size)
		spans := [][2]int64{
			{g.EmbeddingsOffset, n * layout.embeddingBytes()},
			{g.LabelsOffset, n * layout.labelBytes()},
			{g.IDsOffset, n * layout.idBytes()},
		}
		for _, span := range spans {
			if span[0] < 0 || span[0]+span[1] > headerStart {
				return nil, fmt.Errorf("%w: group %q points outside the data region", ErrCorrupt, g.Name)
			}
		}
	}
	return header, nil
}

// Header returns the container header.
func (r *Reader) Header() core.ContainerHeader {
	return *r.header
}

// Group returns a reader for one partition.
func (r *Reader) Group(name core.PartitionName) (*GroupReader, error) {
	for _, g := range r.header.Groups {
		if g.Name == string(name) {
			return &GroupReader{r: r.r, header: g, layout: r.layout}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// Close unmaps the container. Group readers must not be used afterwards.
func (r *Reader) Close() error {
	return r.r.Close()
}

// Row is one decoded dataset row.
type Row struct {
	ID        string
	Embedding []float32
	Labels    []int32
}

// GroupReader reads rows of one partition.
type GroupReader struct {
	r      *mmap.ReaderAt
	header core.GroupHeader
	layout Layout
}

// Len returns the number of rows.
func (g *GroupReader) Len() int {
	return g.header.Size
}

func (g *GroupReader) read(i int, base, width int64) ([]byte, error) {
	if i < 0 || i >= g.header.Size {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, i, g.header.Size)
	}
	b := make([]byte, width)
	if width == 0 {
		return b, nil
	}
	if _, err := g.r.ReadAt(b, base+int64(i)*width); err != nil {
		return nil, fmt.Errorf("%w: read row %d: %w", core.ErrIO, i, err)
	}
	return b, nil
}

// Embedding returns row i's embedding.
func (g *GroupReader) Embedding(i int) ([]float32, error) {
	b, err := g.read(i, g.header.EmbeddingsOffset, g.layout.embeddingBytes())
	if err != nil {
		return nil, err
	}
	out := make([]float32, g.layout.Dim)
	getFloat32s(out, b)
	return out, nil
}

// Labels returns row i's 0/1 label row.
func (g *GroupReader) Labels(i int) ([]int32, error) {
	b, err := g.read(i, g.header.LabelsOffset, g.layout.labelBytes())
	if err != nil {
		return nil, err
	}
	out := make([]int32, g.layout.NumClasses)
	getInt32s(out, b)
	return out, nil
}

// ID returns row i's id with padding removed.
func (g *GroupReader) ID(i int) (string, error) {
	b, err := g.read(i, g.header.IDsOffset, g.layout.idBytes())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

// Row returns all of row i.
func (g *GroupReader) Row(i int) (Row, error) {
	id, err := g.ID(i)
	if err != nil {
		return Row{}, err
	}
	emb, err := g.Embedding(i)
	if err != nil {
		return Row{}, err
	}
	labels, err := g.Labels(i)
	if err != nil {
		return Row{}, err
	}
	return Row{ID: id, Embedding: emb, Labels: labels}, nil
}
