package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds settings for the embedded Badger backend.
type BadgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// BadgerCache writes warmed values into an embedded Badger store. It gives a
// single-node deployment a cache that survives restarts without an external
// service.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) the store at cfg.Path.
func NewBadgerCache(cfg BadgerConfig) (*BadgerCache, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}
	return &BadgerCache{db: db}, nil
}

// Write stores value as JSON under namespace:key with Badger's native TTL.
func (c *BadgerCache) Write(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKey(namespace, key)), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close flushes and closes the store.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
