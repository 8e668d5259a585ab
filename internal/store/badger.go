package store

import (
	"context"
	"errors"
	"fmt"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerOptions configures the embedded database.
type BadgerOptions struct {
	// Path to the database directory. Empty means in-memory.
	Path     string
	InMemory bool
	Logger   badger.Logger
}

// BadgerDB owns one Badger database shared by any number of tables.
type BadgerDB struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the embedded database.
func OpenBadger(opts BadgerOptions) (*BadgerDB, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	// A nil logger silences Badger.
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerDB{db: db}, nil
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// Table returns a Store bound to def.
func (b *BadgerDB) Table(def TableDefinition) *BadgerStore {
	return &BadgerStore{db: b.db, table: def}
}

// BadgerStore implements Store for one table and keeps its secondary indexes
// in the same transaction as the base item.
type BadgerStore struct {
	db    *badger.DB
	table TableDefinition
}

// Get reads one item by primary key.
func (s *BadgerStore) Get(ctx context.Context, key Key) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStorage("get", err)
	}

	var item Item
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = s.read(txn, key)
		return err
	})
	if err != nil {
		return nil, appErrors.NewStorage("get", err)
	}
	return item, nil
}

// Put writes an item and refreshes its index entries.
func (s *BadgerStore) Put(ctx context.Context, item Item) error {
	key, err := KeyOf(item)
	if err != nil {
		return appErrors.NewValidation(err.Error())
	}
	if err := ctx.Err(); err != nil {
		return appErrors.NewStorage("put", err)
	}

	data, err := serializeItem(item)
	if err != nil {
		return appErrors.NewValidation(err.Error())
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		old, err := s.read(txn, key)
		if err != nil {
			return err
		}
		if err := txn.Set(baseKey(s.table.Name, key), data); err != nil {
			return err
		}
		for _, idx := range s.table.Indexes {
			if err := s.updateIndex(txn, idx, key, item, old, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.NewStorage("put", err)
	}
	return nil
}

// Delete removes an item and its index entries. Missing items are ignored.
func (s *BadgerStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return appErrors.NewStorage("delete", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		old, err := s.read(txn, key)
		if err != nil || old == nil {
			return err
		}
		if err := txn.Delete(baseKey(s.table.Name, key)); err != nil {
			return err
		}
		for _, idx := range s.table.Indexes {
			if entry, ok := s.indexEntry(idx, key, old); ok {
				if err := txn.Delete(entry); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.NewStorage("delete", err)
	}
	return nil
}

// Query walks one partition of the base table or of an index in sort key
// order, reversed when scanForward is false.
func (s *BadgerStore) Query(ctx context.Context, cond KeyCondition, scanForward bool) ([]Item, error) {
	var prefix []byte
	if cond.Index == "" {
		prefix = basePartitionPrefix(s.table.Name, cond.PartitionValue, cond.SortPrefix)
	} else {
		idx, ok := s.table.Index(cond.Index)
		if !ok {
			return nil, appErrors.NewInternal("unknown index "+cond.Index, nil)
		}
		if cond.SortPrefix != "" && cond.SortAttr != "" && cond.SortAttr != idx.SortAttr {
			return nil, appErrors.NewInternal(
				fmt.Sprintf("index %s sorts by %s, not %s", idx.Name, idx.SortAttr, cond.SortAttr), nil)
		}
		prefix = indexPartitionPrefix(s.table.Name, idx.Name, cond.PartitionValue, cond.SortPrefix)
	}

	var items []Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = !scanForward
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		if scanForward {
			it.Seek(prefix)
		} else {
			it.Seek(incrementBytes(prefix))
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var item Item
			err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = deserializeItem(val)
				return err
			})
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.NewStorage("query", err)
	}
	return items, nil
}

func (s *BadgerStore) read(txn *badger.Txn, key Key) (Item, error) {
	entry, err := txn.Get(baseKey(s.table.Name, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item Item
	err = entry.Value(func(val []byte) error {
		var err error
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}

// indexEntry returns the index key for item, or false when the item lacks
// either index attribute (sparse index).
func (s *BadgerStore) indexEntry(idx IndexDefinition, key Key, item Item) ([]byte, bool) {
	pk, ok := StringAttr(item, idx.PartitionAttr)
	if !ok || pk == "" {
		return nil, false
	}
	sk := ""
	if idx.SortAttr != "" {
		sk, ok = StringAttr(item, idx.SortAttr)
		if !ok {
			return nil, false
		}
	}
	return indexKey(s.table.Name, idx, pk, sk, key), true
}

func (s *BadgerStore) updateIndex(txn *badger.Txn, idx IndexDefinition, key Key, item, old Item, data []byte) error {
	newEntry, hasNew := s.indexEntry(idx, key, item)

	if old != nil {
		if oldEntry, hadOld := s.indexEntry(idx, key, old); hadOld {
			if !hasNew || string(oldEntry) != string(newEntry) {
				if err := txn.Delete(oldEntry); err != nil {
					return err
				}
			}
		}
	}

	if !hasNew {
		return nil
	}
	// Index entries hold a full copy of the item, like an ALL projection.
	return txn.Set(newEntry, data)
}
