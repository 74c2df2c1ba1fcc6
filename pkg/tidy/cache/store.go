package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no usable entry exists for a path.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for fingerprint lookups.
type Store struct {
	db *badger.DB
}

// DefaultPath returns $XDG_CACHE_HOME/tidy/fingerprints.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "tidy", "fingerprints")
}

// OpenStore opens or creates a store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw entry for path.
func (s *Store) Get(algorithm, path string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(algorithm, path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Lookup returns the cached digest for path if it is still valid for the
// given size and modification time.
func (s *Store) Lookup(algorithm, path string, size int64, mtime time.Time) (string, bool) {
	entry, err := s.Get(algorithm, path)
	if err != nil || !entry.Matches(size, mtime) {
		return "", false
	}
	return entry.Digest, true
}

// Put stores one fingerprint.
func (s *Store) Put(algorithm, path string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(algorithm, path), value)
	})
}

// PutBatch stores many fingerprints in one write batch.
func (s *Store) PutBatch(algorithm string, entries map[string]*Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for path, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(MakeKey(algorithm, path), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Delete removes the fingerprint for path under every algorithm prefix
// supplied. With no algorithms it removes path under all of them.
func (s *Store) Delete(path string, algorithms ...string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		keys := make([][]byte, 0, len(algorithms))
		for _, algo := range algorithms {
			keys = append(keys, MakeKey(algo, path))
		}
		if len(algorithms) == 0 {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				if _, p := ParseKey(it.Item().Key()); p == path {
					keys = append(keys, it.Item().KeyCopy(nil))
				}
			}
			it.Close()
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored fingerprints.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.db.DropAll()
}
