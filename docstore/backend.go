// ABOUTME: Key-value backends for the document store: Charm cloud KV and local BadgerDB
// ABOUTME: Normalizes missing-key errors so the client can report absent documents
package docstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

// KV is the byte-level store a Client persists documents in.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
}

// errKeyMissing is returned by backends for absent keys.
var errKeyMissing = errors.New("key not found")

// charmKV adapts a Charm KV database. Writes are local until Sync pushes them
// to the charm server; Sync also pulls remote changes.
type charmKV struct {
	db *kv.KV
}

// OpenCharmKV opens the Charm-backed KV for the given app name against host.
func OpenCharmKV(appName, host string) (KV, error) {
	if host != "" {
		// charm reads its server from the environment
		_ = os.Setenv("CHARM_HOST", host)
	}
	db, err := kv.OpenWithDefaults(appName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}
	return &charmKV{db: db}, nil
}

func (c *charmKV) Get(key []byte) ([]byte, error) {
	v, err := c.db.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errKeyMissing
	}
	return v, err
}

func (c *charmKV) Set(key, value []byte) error {
	return c.db.Set(key, value)
}

func (c *charmKV) Delete(key []byte) error {
	return c.db.Delete(key)
}

func (c *charmKV) Keys() ([][]byte, error) {
	return c.db.Keys()
}

func (c *charmKV) Sync() error {
	return c.db.Sync()
}

// BadgerKV is a purely local backend with no remote sync.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadgerKV opens (or creates) a BadgerDB in dir.
func OpenBadgerKV(dir string) (*BadgerKV, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerKV{db: db}, nil
}

func (b *BadgerKV) Get(key []byte) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errKeyMissing
	}
	return result, err
}

func (b *BadgerKV) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerKV) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerKV) Keys() ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// Sync is a no-op; local data never leaves the machine.
func (b *BadgerKV) Sync() error {
	return nil
}

func (b *BadgerKV) Close() error {
	return b.db.Close()
}
