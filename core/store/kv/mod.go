// Package kv defines the abstraction for a persistent key/value database with
// transactional access to named buckets.
package kv

import "go.neoki.io/neoki/core/store"

// Bucket is the storage unit of the database. Keys inside a bucket are sorted
// lexicographically.
type Bucket interface {
	// Get reads the key from the bucket and returns the value, or nil if it
	// is not set.
	Get(key []byte) []byte

	// Set assigns the value to the provided key.
	Set(key, value []byte) error

	// Delete removes the key from the bucket.
	Delete(key []byte) error

	// ForEach iterates over all the items in the bucket in lexicographic
	// order of the keys.
	ForEach(fn func(k, v []byte) error) error

	// Scan iterates over the keys matching the prefix in lexicographic order.
	Scan(prefix []byte, fn func(k, v []byte) error) error
}

// DB is a persistent storage of buckets.
type DB interface {
	// View opens a read-only transaction on the given bucket.
	View(bucket []byte, fn func(Bucket) error) error

	// Update opens a read-write transaction on the given bucket. The writes
	// are applied only if the callback returns nil.
	Update(bucket []byte, fn func(Bucket) error) error

	// Close closes the database and the sessions in progress.
	Close() error
}

// NewSnapshot exposes a bucket as a store.Snapshot so that contracts can run
// inside a database transaction.
func NewSnapshot(bucket Bucket) store.Snapshot {
	return bucketSnapshot{bucket: bucket}
}

// bucketSnapshot adapts a bucket to the snapshot interface.
//
// - implements store.Snapshot
type bucketSnapshot struct {
	bucket Bucket
}

// Get implements store.Readable.
func (s bucketSnapshot) Get(key []byte) ([]byte, error) {
	return s.bucket.Get(key), nil
}

// Set implements store.Writable.
func (s bucketSnapshot) Set(key, value []byte) error {
	return s.bucket.Set(key, value)
}

// Delete implements store.Writable.
func (s bucketSnapshot) Delete(key []byte) error {
	return s.bucket.Delete(key)
}
