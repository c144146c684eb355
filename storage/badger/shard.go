package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/storage"
)

// ShardCache implements storage.ShardCache for BadgerDB.
type ShardCache struct {
	backend     *Backend
	compression storage.Compression
	logger      *slog.Logger
}

var _ storage.ShardCache = (*ShardCache)(nil)

// ShardCacheOption configures a ShardCache.
type ShardCacheOption func(*ShardCache)

// WithCompression sets the block codec applied to cached entries.
// Entries written with any codec remain readable regardless of this setting.
func WithCompression(c storage.Compression) ShardCacheOption {
	return func(sc *ShardCache) {
		sc.compression = c
	}
}

// NewShardCache creates a shard cache on top of an open backend.
//
// Returns storage.ShardCache interface to enforce abstraction.
func NewShardCache(backend *Backend, opts ...ShardCacheOption) (storage.ShardCache, error) {
	return newShardCache(backend, opts...)
}

func newShardCache(backend *Backend, opts ...ShardCacheOption) (*ShardCache, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	sc := &ShardCache{
		backend:     backend,
		compression: storage.CompressionNone,
		logger:      backend.logger,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// PutShard stores the entry and its digest in a single transaction.
func (sc *ShardCache) PutShard(ctx context.Context, entry *core.ShardEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sc.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := core.ValidateShardEntry(entry); err != nil {
		return err
	}

	value, err := storage.CompressBlock(storage.MarshalShardEntry(entry), sc.compression)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	digest := makeShardStamp(entry.Digest, entry.Dim)

	err = sc.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeShardKey(entry.Index), value); err != nil {
			return err
		}
		if err := tx.Set(makeShardDigestKey(entry.Index), digest); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	sc.logger.Debug("cached shard", "shard", entry.Index, "rows", len(entry.IDs), "bytes", len(value))
	return nil
}

// GetShard retrieves and decodes a shard entry.
func (sc *ShardCache) GetShard(ctx context.Context, index int) (*core.ShardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var entry *core.ShardEntry
	err := sc.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeShardKey(index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: index %d", storage.ErrNotFound, index)
			}
			return err
		}

		return item.Value(func(val []byte) error {
			raw, err := storage.DecompressBlock(val)
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			entry, err = storage.UnmarshalShardEntry(raw)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	if entry.Index != index {
		return nil, fmt.Errorf("%w: key %d holds shard %d", core.ErrInvalidShardEntry, index, entry.Index)
	}
	if err := core.ValidateShardEntry(entry); err != nil {
		return nil, fmt.Errorf("shard %d: %w", index, err)
	}
	return entry, nil
}

// MatchShard reports whether the shard is cached with a matching digest,
// along with the cached vector width. The width is 0 for an empty shard.
func (sc *ShardCache) MatchShard(ctx context.Context, index int, digest uint64) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if sc.backend.IsClosed() {
		return 0, false, storage.ErrStorageClosed
	}

	var (
		dim   int
		found bool
	)
	err := sc.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeShardDigestKey(index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			stored, width, err := parseShardStamp(val)
			if err != nil {
				return err
			}
			if stored == digest {
				dim, found = width, true
			}
			return nil
		})
	}, false)
	if err != nil {
		return 0, false, err
	}
	return dim, found, nil
}

// DeleteShard removes a shard entry and its digest.
func (sc *ShardCache) DeleteShard(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sc.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return sc.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeShardKey(index)); err != nil {
			return err
		}
		if err := tx.Delete(makeShardDigestKey(index)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ShardIndexes lists cached shard indexes in ascending order.
func (sc *ShardCache) ShardIndexes(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var indexes []int
	err := sc.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(shardPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			index, err := parseShardKey(iter.Item().Key())
			if err != nil {
				return err
			}
			indexes = append(indexes, index)
		}
		return nil
	}, false)

	return indexes, err
}

// Close is a no-op; the backend owns the database handle.
func (sc *ShardCache) Close() error {
	return nil
}
