package assembly

import "fmt"

// Store is the growable backing storage of one partition. Rows are made of
// one embedding of width D, one 0/1 label row of width C and one id.
type Store interface {
	// Len returns the current capacity in rows.
	Len() int

	// Grow raises the capacity to at least rows.
	Grow(rows int) error

	// WriteRows copies len(ids) rows into positions [offset, offset+len(ids)).
	// embeddings holds len(ids)*D values and labels len(ids)*C values.
	WriteRows(offset int, embeddings []float32, labels []int32, ids []string) error

	// Trim shrinks the capacity to exactly rows. It is called once, at the
	// end of assembly.
	Trim(rows int) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	dim     int
	classes int
	rows    int

	embeddings []float32
	labels     []int32
	ids        []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store with a provisional capacity.
func NewMemoryStore(dim, classes, capacity int) *MemoryStore {
	capacity = max(capacity, 0)
	return &MemoryStore{
		dim:        dim,
		classes:    classes,
		rows:       capacity,
		embeddings: make([]float32, capacity*dim),
		labels:     make([]int32, capacity*classes),
		ids:        make([]string, capacity),
	}
}

func (s *MemoryStore) Len() int {
	return s.rows
}

func (s *MemoryStore) Grow(rows int) error {
	if rows <= s.rows {
		return nil
	}
	s.embeddings = append(s.embeddings, make([]float32, (rows-s.rows)*s.dim)...)
	s.labels = append(s.labels, make([]int32, (rows-s.rows)*s.classes)...)
	s.ids = append(s.ids, make([]string, rows-s.rows)...)
	s.rows = rows
	return nil
}

func (s *MemoryStore) WriteRows(offset int, embeddings []float32, labels []int32, ids []string) error {
	n := len(ids)
	if offset < 0 || offset+n > s.rows {
		return fmt.Errorf("%w: rows [%d, %d) with capacity %d", ErrStoreOverflow, offset, offset+n, s.rows)
	}
	if len(embeddings) != n*s.dim || len(labels) != n*s.classes {
		return fmt.Errorf("row block has %d embedding and %d label values for %d rows of width %d/%d",
			len(embeddings), len(labels), n, s.dim, s.classes)
	}
	copy(s.embeddings[offset*s.dim:], embeddings)
	copy(s.labels[offset*s.classes:], labels)
	copy(s.ids[offset:], ids)
	return nil
}

func (s *MemoryStore) Trim(rows int) error {
	if rows < 0 || rows > s.rows {
		return fmt.Errorf("cannot trim store of %d rows to %d", s.rows, rows)
	}
	s.embeddings = s.embeddings[:rows*s.dim:rows*s.dim]
	s.labels = s.labels[:rows*s.classes:rows*s.classes]
	s.ids = s.ids[:rows:rows]
	s.rows = rows
	return nil
}

// Embedding returns row i's embedding.
func (s *MemoryStore) Embedding(i int) []float32 {
	return s.embeddings[i*s.dim : (i+1)*s.dim]
}

// Labels returns row i's label row.
func (s *MemoryStore) Labels(i int) []int32 {
	return s.labels[i*s.classes : (i+1)*s.classes]
}

// ID returns row i's id.
func (s *MemoryStore) ID(i int) string {
	return s.ids[i]
}

// IDs returns all ids in row order.
func (s *MemoryStore) IDs() []string {
	return s.ids
}
