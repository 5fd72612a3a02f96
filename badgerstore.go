package snvindex

import (
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerPersistence is the durable PersistencePort backed by BadgerDB.
// Grounded on the Open/Close/WithTxn shape used by the corpus's own
// badger wrapper; generalised here to the flat key/value, prefix-scan
// shape PersistencePort requires rather than exposing raw transactions.
type BadgerPersistence struct {
	db *badger.DB
}

// BadgerOptions configures OpenBadgerPersistence.
type BadgerOptions struct {
	// Path is the directory for BadgerDB's files. Required unless
	// InMemory is set.
	Path string
	// InMemory runs BadgerDB with no on-disk footprint, for tests that
	// want to exercise the real BadgerDB code path without touching
	// disk.
	InMemory bool
	// SyncWrites forces an fsync after every write batch.
	SyncWrites bool
}

// OpenBadgerPersistence opens (creating if necessary) a BadgerDB-backed
// PersistencePort.
func OpenBadgerPersistence(opts BadgerOptions) (*BadgerPersistence, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, newErr("OpenBadgerPersistence", KindConfigError, "", fmt.Errorf("path is required for a persistent store"))
		}
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, newErr("OpenBadgerPersistence", KindPersistenceFailure, "", err)
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, newErr("OpenBadgerPersistence", KindPersistenceFailure, "", err)
	}
	return &BadgerPersistence{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (b *BadgerPersistence) Close() error {
	return b.db.Close()
}

func (b *BadgerPersistence) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return newErr("Put", KindPersistenceFailure, "", err)
	}
	return nil
}

func (b *BadgerPersistence) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, newErr("Get", KindPersistenceFailure, "", err)
	}
	return out, out != nil, nil
}

func (b *BadgerPersistence) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return newErr("Delete", KindPersistenceFailure, "", err)
	}
	return nil
}

type badgerIterator struct {
	txn  *badger.Txn
	it   *badger.Iterator
	pfx  []byte
	key  string
	val  []byte
	err  error
	done bool
}

func (it *badgerIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.it.ValidForPrefix(it.pfx) {
		it.done = true
		return false
	}
	item := it.it.Item()
	it.key = string(item.Key())
	val, err := item.ValueCopy(nil)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	it.val = val
	it.it.Next()
	return true
}

func (it *badgerIterator) Key() string   { return it.key }
func (it *badgerIterator) Value() []byte { return it.val }
func (it *badgerIterator) Err() error    { return it.err }
func (it *badgerIterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return nil
}

func (b *BadgerPersistence) Scan(ctx context.Context, prefix string) (PersistenceIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	it.Seek([]byte(prefix))
	return &badgerIterator{txn: txn, it: it, pfx: []byte(prefix)}, nil
}

func (b *BadgerPersistence) AtomicBatch(ctx context.Context, ops []BatchOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if op.Key == "" {
			return newErr("AtomicBatch", KindInvalidInput, "", errEmptyKey)
		}
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.Delete {
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(op.Key), op.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return newErr("AtomicBatch", KindPersistenceFailure, "", err)
	}
	return nil
}
