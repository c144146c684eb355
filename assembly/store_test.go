package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(2, 3, 1)
	assert.Equal(t, 1, s.Len())

	err := s.WriteRows(0, []float32{1, 2, 3, 4}, []int32{1, 0, 0, 0, 1, 0}, []string{"x", "y"})
	assert.ErrorIs(t, err, ErrStoreOverflow)

	require.NoError(t, s.Grow(4))
	assert.Equal(t, 4, s.Len())
	require.NoError(t, s.WriteRows(0, []float32{1, 2, 3, 4}, []int32{1, 0, 0, 0, 1, 0}, []string{"x", "y"}))
	require.NoError(t, s.WriteRows(2, []float32{5, 6}, []int32{0, 0, 1}, []string{"z"}))

	require.NoError(t, s.Trim(3))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float32{3, 4}, s.Embedding(1))
	assert.Equal(t, []int32{0, 0, 1}, s.Labels(2))
	assert.Equal(t, []string{"x", "y", "z"}, s.IDs())

	assert.Error(t, s.Trim(5))
}

func TestMemoryStore_RejectsBadWidths(t *testing.T) {
	s := NewMemoryStore(2, 3, 2)
	err := s.WriteRows(0, []float32{1, 2, 3}, []int32{1, 0, 0}, []string{"x"})
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	c := newChunk(2, 2, 1)

	emb, lab := c.next()
	copy(emb, []float32{1, 2})
	lab[0] = 1
	c.commit("a")
	assert.False(t, c.full())

	emb, _ = c.next()
	copy(emb, []float32{3, 4})
	c.commit("b")
	assert.True(t, c.full())

	embeddings, labels, ids := c.rows()
	assert.Equal(t, []float32{1, 2, 3, 4}, embeddings)
	assert.Equal(t, []int32{1, 0}, labels)
	assert.Equal(t, []string{"a", "b"}, ids)

	c.reset()
	embeddings, _, ids = c.rows()
	assert.Empty(t, embeddings)
	assert.Empty(t, ids)
}
