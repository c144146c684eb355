package storage

import (
	"testing"

	"github.com/poiesic/dataprep/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalShardEntry(t *testing.T) {
	entry := &core.ShardEntry{
		Index:   12,
		Digest:  core.ShardDigest([]string{"a.jpg", "b.jpg"}, []string{"red shoe", "blue hat"}),
		Dim:     3,
		IDs:     []string{"a.jpg", "b.jpg"},
		Vectors: [][]float32{{0.1, -0.2, 0.3}, {1.5, 0, -7.25}},
	}

	data := MarshalShardEntry(entry)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalShardEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
	require.NoError(t, core.ValidateShardEntry(decoded))
}

func TestUnmarshalShardEntry_Truncated(t *testing.T) {
	entry := &core.ShardEntry{
		Index:   1,
		Dim:     2,
		IDs:     []string{"x"},
		Vectors: [][]float32{{1, 2}},
	}
	data := MarshalShardEntry(entry)

	_, err := UnmarshalShardEntry(data[:len(data)-3])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalShardEntry([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalManifest(t *testing.T) {
	manifest := &core.Manifest{
		ShardSize:  1000,
		NumShards:  4,
		NumRecords: 3500,
		Dim:        768,
		UpdatedAt:  1730000000000000,
	}

	decoded, err := UnmarshalManifest(MarshalManifest(manifest))
	require.NoError(t, err)
	assert.Equal(t, manifest, decoded)
}

func TestMarshalUnmarshalContainerHeader(t *testing.T) {
	header := &core.ContainerHeader{
		Version:    1,
		RunID:      "3f1c2b9e-1111-4222-8333-444455556666",
		Dim:        4,
		NumClasses: 3,
		IDWidth:    14,
		CreatedAt:  1730000000000000,
		Groups: []core.GroupHeader{
			{Name: "train", Size: 8, EmbeddingsOffset: 0, LabelsOffset: 128, IDsOffset: 224},
			{Name: "dev", Size: 2, EmbeddingsOffset: 336, LabelsOffset: 368, IDsOffset: 392},
		},
	}

	decoded, err := UnmarshalContainerHeader(MarshalContainerHeader(header))
	require.NoError(t, err)
	assert.Equal(t, header, decoded)
}
