package catalog

import "github.com/poiesic/dataprep/core"

// Index maps record keys to records and remembers first-insertion order.
// It is read-only after parsing.
type Index struct {
	order   []string
	records map[string]*core.Record
	idWidth int
}

func newIndex() *Index {
	return &Index{records: make(map[string]*core.Record)}
}

// put stores rec. A repeated key replaces the stored value but keeps the
// position of its first occurrence.
func (x *Index) put(rec *core.Record) {
	if _, exists := x.records[rec.ID]; !exists {
		x.order = append(x.order, rec.ID)
	}
	x.records[rec.ID] = rec
	if n := len(rec.ID); n > x.idWidth {
		x.idWidth = n
	}
}

// Len returns the number of distinct records.
func (x *Index) Len() int {
	return len(x.order)
}

// IDs returns the canonical ordering. The slice is shared; callers must not
// modify it.
func (x *Index) IDs() []string {
	return x.order
}

// Get returns the record stored under id.
func (x *Index) Get(id string) (*core.Record, bool) {
	rec, ok := x.records[id]
	return rec, ok
}

// Text returns the embedding text of id, or "" if id is unknown.
func (x *Index) Text(id string) string {
	if rec, ok := x.records[id]; ok {
		return rec.Text
	}
	return ""
}

// Texts returns the texts of ids in the same order.
func (x *Index) Texts(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = x.Text(id)
	}
	return out
}

// MaxIDWidth returns the byte length of the longest key.
func (x *Index) MaxIDWidth() int {
	return x.idWidth
}
