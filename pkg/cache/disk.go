package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	diskGCInterval     = 10 * time.Minute
	diskGCDiscardRatio = 0.5
)

// DiskBackend stores entries in a badger database under the cache directory.
// Badger expires entries natively, so TTLs survive restarts.
type DiskBackend struct {
	db     *badger.DB
	logger *zap.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDiskBackend opens (creating if needed) the cache database in dir and
// starts periodic value-log garbage collection.
func NewDiskBackend(dir string, logger *zap.Logger) (*DiskBackend, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	d := &DiskBackend{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go d.runGC()
	return d, nil
}

var _ Backend = (*DiskBackend)(nil)

func (d *DiskBackend) Name() string { return "disk" }

func (d *DiskBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

func (d *DiskBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close stops garbage collection and closes the database.
func (d *DiskBackend) Close() error {
	close(d.stopCh)
	<-d.doneCh
	return d.db.Close()
}

func (d *DiskBackend) runGC() {
	defer close(d.doneCh)

	ticker := time.NewTicker(diskGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			err := d.db.RunValueLogGC(diskGCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				d.logger.Warn("Cache value log GC failed", zap.Error(err))
			}
		}
	}
}

// badgerLogger routes badger's internal logging to zap. Info and debug output
// is dropped; badger is chatty at those levels.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(string, ...any)                {}
func (l *badgerLogger) Debugf(string, ...any)               {}
