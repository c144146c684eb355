package assembly

import "errors"

var (
	// ErrOrderMismatch is returned when the shard plan, the membership or the
	// canonical order disagree about which record sits at which position.
	ErrOrderMismatch = errors.New("record order mismatch")

	// ErrMissingVector is returned when the cache has no vector for a record.
	ErrMissingVector = errors.New("missing vector")

	// ErrStaleShard is returned when a cached shard was computed from ids or
	// texts that differ from the current records.
	ErrStaleShard = errors.New("stale shard")

	// ErrCacheRequired is returned when a shard cache is not provided.
	ErrCacheRequired = errors.New("shard cache required")

	// ErrVocabularyRequired is returned when a label vocabulary is not provided.
	ErrVocabularyRequired = errors.New("label vocabulary required")

	// ErrStoreOverflow is returned when a write would exceed a store's capacity.
	ErrStoreOverflow = errors.New("write beyond store capacity")
)
