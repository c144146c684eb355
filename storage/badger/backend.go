package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// ErrNotDirectory is returned when the cache path exists but is a file.
var ErrNotDirectory = errors.New("cache path is not a directory")

// Backend owns the BadgerDB instance holding shard entries and the manifest.
type Backend struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger     *slog.Logger
	syncWrites bool
}

// WithBackendLogger routes badger's own log output through logger.
// Default is slog.Default().
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) { o.logger = logger }
}

// WithSyncWrites makes every committed shard durable before PutShard
// returns. Off by default; the embed phase calls Sync once when it ends.
func WithSyncWrites(sync bool) BackendOption {
	return func(o *backendOptions) { o.syncWrites = sync }
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
// Badger's info output is compaction and value-log chatter, so it is logged
// at debug level.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens the shard cache directory at dir, creating it if
// needed. With inMemory set, dir is ignored and nothing touches disk.
func OpenBackend(dir string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	o := backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(o.syncWrites)
	}

	logger := o.logger.With("component", "shard-cache")
	bopts.Logger = &badgerLoggerAdapter{logger: logger}
	// Values are block-compressed by the shard cache itself.
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	logger.Debug("shard cache opened", "dir", dir, "inMemory", inMemory)

	return &Backend{
		db:       db,
		inMemory: inMemory,
		logger:   logger,
	}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// Sync flushes pending writes to disk. Cache entries are written by many
// goroutines; the embed phase syncs once at the end instead of per shard.
func (b *Backend) Sync() error {
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Size reports the on-disk bytes of the LSM tree and the value log.
func (b *Backend) Size() (lsm, vlog int64) {
	return b.db.Size()
}
