package storage

import (
	"context"

	"github.com/poiesic/dataprep/core"
)

// ShardCache persists embedded shards keyed by shard index.
// Implementations must be thread-safe: the embed phase writes shards from
// a worker pool while other shards are still being computed.
type ShardCache interface {
	// PutShard stores the entry under entry.Index, replacing any previous
	// entry. The write is atomic: readers observe either the old entry or
	// the complete new one.
	PutShard(ctx context.Context, entry *core.ShardEntry) error

	// GetShard retrieves the entry for a shard index.
	// Returns ErrNotFound if the shard has not been cached.
	GetShard(ctx context.Context, index int) (*core.ShardEntry, error)

	// MatchShard reports whether an entry exists for index and was produced
	// from records with the given digest. On a match it also returns the
	// entry's vector width without decoding its vectors.
	MatchShard(ctx context.Context, index int, digest uint64) (dim int, ok bool, err error)

	// DeleteShard removes a cached entry. Deleting a missing entry is not an error.
	DeleteShard(ctx context.Context, index int) error

	// ShardIndexes lists cached shard indexes in ascending order.
	ShardIndexes(ctx context.Context) ([]int, error)

	// Close releases resources held by the cache.
	Close() error
}

// ManifestRepository stores the shard plan of the most recent embed phase.
type ManifestRepository interface {
	// SaveManifest persists the manifest, replacing any previous one.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error

	// LoadManifest retrieves the stored manifest.
	// Returns nil, nil if no manifest exists.
	LoadManifest(ctx context.Context) (*core.Manifest, error)
}
