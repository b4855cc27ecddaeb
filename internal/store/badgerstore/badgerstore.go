// Package badgerstore is the on-disk Backend built on badger.
package badgerstore

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

type BadgerStore struct {
	db *badger.DB
}

// Open opens (creating if needed) a badger database in dir.
func Open(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return open(opts)
}

// OpenInMemory is used by tests and preview mode.
func OpenInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts)
}

func open(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore.Open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (bs *BadgerStore) GetItem(key string) (string, bool, error) {
	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badgerstore.GetItem %q: %w", key, err)
	}
	return string(value), true, nil
}

// SetItem writes in a single transaction; a failed commit leaves the old
// value readable.
func (bs *BadgerStore) SetItem(key, value string) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badgerstore.SetItem %q: %w", key, err)
	}
	return nil
}

func (bs *BadgerStore) RemoveItem(key string) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badgerstore.RemoveItem %q: %w", key, err)
	}
	return nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}
