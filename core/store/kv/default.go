package kv

import (
	"bytes"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// New opens the database file at the given path, creating it if necessary.
func New(path string) (DB, error) {
	bolt, err := bbolt.Open(path, 0666, &bbolt.Options{})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	return database{bolt: bolt}, nil
}

// database adapts a bbolt database to the kv.DB interface. Each View or
// Update call scopes a bbolt transaction to a single bucket.
//
// - implements kv.DB
type database struct {
	bolt *bbolt.DB
}

// View implements kv.DB. It runs fn against the bucket inside a read-only
// transaction. The bucket must exist.
func (db database) View(name []byte, fn func(Bucket) error) error {
	return db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return xerrors.Errorf("bucket '%x' not found", name)
		}

		return fn(bucket{b: b})
	})
}

// Update implements kv.DB. It runs fn against the bucket inside a writable
// transaction, creating the bucket on first use. An error from fn rolls the
// whole transaction back.
func (db database) Update(name []byte, fn func(Bucket) error) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		return fn(bucket{b: b})
	})
}

// Close implements kv.DB. Pending and future transactions fail once the
// database is closed.
func (db database) Close() error {
	return db.bolt.Close()
}

// bucket adapts a bbolt bucket to the kv.Bucket interface.
//
// - implements kv.Bucket
type bucket struct {
	b *bbolt.Bucket
}

// Get implements kv.Bucket. It returns the value stored under the key, or nil
// when the key is absent.
func (bk bucket) Get(key []byte) []byte {
	return bk.b.Get(key)
}

// Set implements kv.Bucket. It stores the value under the key.
func (bk bucket) Set(key, value []byte) error {
	return bk.b.Put(key, value)
}

// Delete implements kv.Bucket. It removes the key from the bucket.
func (bk bucket) Delete(key []byte) error {
	return bk.b.Delete(key)
}

// ForEach implements kv.Bucket. It calls fn for every key of the bucket in
// lexicographic order.
func (bk bucket) ForEach(fn func(k, v []byte) error) error {
	return bk.b.ForEach(fn)
}

// Scan implements kv.Bucket. It calls fn for every key sharing the prefix, in
// lexicographic order.
func (bk bucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	cursor := bk.b.Cursor()

	for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		err := fn(k, v)
		if err != nil {
			return xerrors.Errorf("callback failed: %v", err)
		}
	}

	return nil
}
