package assembly

import (
	"fmt"

	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/metrics"
)

// partition pairs a Store with its chunk and write offset.
type partition struct {
	name    core.PartitionName
	store   Store
	chunk   *chunk
	written int
	flushes int
	metrics metrics.Collector
}

// flush copies the chunk into the store at the write offset, growing the
// store when the chunk does not fit.
func (p *partition) flush() error {
	if p.chunk == nil || p.chunk.count == 0 {
		return nil
	}
	n := p.chunk.count
	need := p.written + n
	if capacity := p.store.Len(); need > capacity {
		if err := p.store.Grow(max(need, 2*capacity)); err != nil {
			return fmt.Errorf("%w: grow %s store: %w", core.ErrIO, p.name, err)
		}
	}

	embeddings, labels, ids := p.chunk.rows()
	if err := p.store.WriteRows(p.written, embeddings, labels, ids); err != nil {
		return fmt.Errorf("%w: write %s rows [%d, %d): %w", core.ErrIO, p.name, p.written, need, err)
	}
	p.written = need
	p.flushes++
	p.metrics.RecordFlush(string(p.name), n)
	p.chunk.reset()
	return nil
}

func (p *partition) finalize() error {
	if err := p.flush(); err != nil {
		return err
	}
	if err := p.store.Trim(p.written); err != nil {
		return fmt.Errorf("%w: trim %s store to %d rows: %w", core.ErrIO, p.name, p.written, err)
	}
	return nil
}
