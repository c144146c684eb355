package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// PartitionName identifies one of the two output subsets of a dataset.
type PartitionName string

const (
	// PartitionTrain holds rows selected for training.
	PartitionTrain PartitionName = "train"
	// PartitionDev holds rows held out for evaluation.
	PartitionDev PartitionName = "dev"
)

// Partitions lists the output subsets in container order.
var Partitions = []PartitionName{PartitionTrain, PartitionDev}

// Record is a single catalogue entry parsed from the source file.
type Record struct {
	ID       string   // Derived key, unique within an index
	SourceID string   // Identifier as it appeared in the source row
	Text     string   // Text handed to the embedding provider
	Labels   []string // Category names, each must exist in the vocabulary
}

// Shard is a contiguous block of the canonical record order that is
// embedded and cached as a unit.
type Shard struct {
	Index int
	IDs   []string
}

// ShardEntry is the persisted result of embedding a shard. IDs and Vectors
// are parallel: Vectors[i] is the embedding of IDs[i].
type ShardEntry struct {
	Index   int
	Digest  uint64 // ShardDigest of the ids and texts that produced the entry
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// Lookup returns the vector cached for id.
func (e *ShardEntry) Lookup(id string) ([]float32, bool) {
	for i, candidate := range e.IDs {
		if candidate == id {
			return e.Vectors[i], true
		}
	}
	return nil, false
}

// Mapping returns the entry as an id to vector map.
func (e *ShardEntry) Mapping() map[string][]float32 {
	m := make(map[string][]float32, len(e.IDs))
	for i, id := range e.IDs {
		m[id] = e.Vectors[i]
	}
	return m
}

// Manifest records the shard plan used by the embed phase so that a later
// assemble phase can verify it streams the same ordering.
type Manifest struct {
	ShardSize  int
	NumShards  int
	NumRecords int
	Dim        int
	UpdatedAt  int64 // Unix microseconds
}

// GroupHeader locates one partition's arrays inside a dataset container.
type GroupHeader struct {
	Name             string
	Size             int
	EmbeddingsOffset int64
	LabelsOffset     int64
	IDsOffset        int64
}

// ContainerHeader describes a published dataset container.
type ContainerHeader struct {
	Version    int
	RunID      string
	Dim        int
	NumClasses int
	IDWidth    int
	CreatedAt  int64 // Unix microseconds
	Groups     []GroupHeader
}

// ShardDigest fingerprints the ids and texts of a shard using BLAKE2b.
// A cached entry whose digest differs from the current shard is stale.
func ShardDigest(ids, texts []string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	var lenBuf [binary.MaxVarintLen64]byte
	for i, id := range ids {
		n := binary.PutUvarint(lenBuf[:], uint64(len(id)))
		h.Write(lenBuf[:n])
		h.Write([]byte(id))
		text := ""
		if i < len(texts) {
			text = texts[i]
		}
		n = binary.PutUvarint(lenBuf[:], uint64(len(text)))
		h.Write(lenBuf[:n])
		h.Write([]byte(text))
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}
