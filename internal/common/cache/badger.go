// internal/common/cache/badger.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on an embedded BadgerDB. The CLI uses it so
// clarification sessions survive between invocations without a Redis server.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store at dir. An empty dir opens an
// in-memory store.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Get(ctx context.Context, key string) (string, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("badger get %s: %w", key, err)
	}
	return string(raw), nil
}

func (s *BadgerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

// IncrField stores the hash as a JSON object; the read-modify-write runs in one
// transaction.
func (s *BadgerStore) IncrField(ctx context.Context, key, field string, ttl time.Duration) (int64, error) {
	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		fields, err := readFields(txn, key)
		if err != nil {
			return err
		}
		fields[field]++
		next = fields[field]

		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		entry := badger.NewEntry([]byte(key), raw)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, fmt.Errorf("badger incr %s: %w", key, err)
	}
	return next, nil
}

func (s *BadgerStore) Fields(ctx context.Context, key string) (map[string]int64, error) {
	var fields map[string]int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		fields, err = readFields(txn, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger fields %s: %w", key, err)
	}
	return fields, nil
}

func readFields(txn *badger.Txn, key string) (map[string]int64, error) {
	fields := make(map[string]int64)
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fields, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
