// Package badgerstore implements cache.Store on top of an embedded BadgerDB
// database, giving step outputs a cache that survives process restarts.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/codec"
)

var keyPrefix = []byte("cache/")

// Config holds the settings of a badger-backed cache store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps everything in memory; used by tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// TTL expires entries after the given duration. Zero keeps them forever.
	TTL time.Duration
	// Codec serializes entries. Defaults to msgpack.
	Codec codec.Codec
	// Logger receives badger's internal log output. Nil silences it.
	Logger *slog.Logger
}

// Store is a cache.Store backed by BadgerDB.
type Store struct {
	db    *badger.DB
	codec codec.Codec
	ttl   time.Duration
}

var _ cache.Store = (*Store)(nil)

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	c := cfg.Codec
	if c == nil {
		c = codec.Msgpack{}
	}
	return &Store{db: db, codec: c, ttl: cfg.TTL}, nil
}

func dbKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}

func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e cache.Entry
	if err := s.codec.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return &e, true, nil
}

func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	raw, err := s.codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", e.Key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(dbKey(e.Key), raw)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
}

func (s *Store) Scan(ctx context.Context, fn func(*cache.Entry) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e cache.Entry
			if err := s.codec.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("decode entry %s: %w", it.Item().Key(), err)
			}
			if !fn(&e) {
				return nil
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
