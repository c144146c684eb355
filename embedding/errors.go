package embedding

import "errors"

var (
	// ErrCacheRequired is returned when a shard cache is not provided.
	ErrCacheRequired = errors.New("shard cache required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidShardSize is returned for a shard size below 1.
	ErrInvalidShardSize = errors.New("shard size must be at least 1")
)
