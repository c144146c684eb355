package assembly

// chunk is a fixed-capacity row buffer.
type chunk struct {
	size    int
	dim     int
	classes int
	count   int

	embeddings []float32
	labels     []int32
	ids        []string
}

func newChunk(size, dim, classes int) *chunk {
	return &chunk{
		size:       size,
		dim:        dim,
		classes:    classes,
		embeddings: make([]float32, size*dim),
		labels:     make([]int32, size*classes),
		ids:        make([]string, size),
	}
}

// next returns the embedding and label slots of the next row. The caller
// fills them and then calls commit.
func (c *chunk) next() ([]float32, []int32) {
	return c.embeddings[c.count*c.dim : (c.count+1)*c.dim],
		c.labels[c.count*c.classes : (c.count+1)*c.classes]
}

func (c *chunk) commit(id string) {
	c.ids[c.count] = id
	c.count++
}

func (c *chunk) full() bool {
	return c.count == c.size
}

// rows returns the filled portion of the buffers.
func (c *chunk) rows() ([]float32, []int32, []string) {
	return c.embeddings[:c.count*c.dim], c.labels[:c.count*c.classes], c.ids[:c.count]
}

func (c *chunk) reset() {
	c.count = 0
}
