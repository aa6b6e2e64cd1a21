// Package kv implements the checkpoint store on Badger, for deployments
// that want progress kept apart from the document database.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Options controls how the database is opened.
type Options struct {
	// InMemory keeps everything in RAM. Path is ignored.
	InMemory bool
}

// Open opens or creates the Badger database at path.
func Open(path string, logger *slog.Logger, o Options) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil            // Badger's own logging is noisy
	opts.SyncWrites = true       // a checkpoint is only saved once it is on disk
	opts.CompactL0OnClose = true // faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("badger checkpoint store opened", "path", path, "in_memory", o.InMemory)

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing badger checkpoint store")
	return s.db.Close()
}

// keyPool provides reusable byte slices for building keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix plus a NanoID-sized suffix fits comfortably.
		return make([]byte, 0, 64)
	},
}

// buildKey concatenates prefix and suffix into a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

func releaseKey(key []byte) {
	if cap(key) <= 256 {
		keyPool.Put(key[:0])
	}
}

// get decodes the value at key into dest. It reports false when the key
// does not exist.
func (s *Store) get(key []byte, dest any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// set stores value at key as JSON.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// scan decodes every value under prefix, in key order.
func (s *Store) scan(prefix string, decode func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(decode); err != nil {
				return err
			}
		}
		return nil
	})
}
