package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/interfaces"
)

// KVStorage implements the KeyValueStorage interface on Badger's raw
// keyspace. It backs the secret store, AI page cache, taxonomy payloads,
// and budget counters; plain string values skip badgerhold's reflection.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// kvKey namespaces raw keys away from badgerhold's typed records.
func kvKey(key string) []byte {
	return []byte("kv:" + key)
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(kvKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return "", fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStorage) Set(ctx context.Context, key, value string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Set(kvKey(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(kvKey(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
