// Package store defines the key/value abstractions the contracts are written
// against. Contracts only ever see a Snapshot, never the backing database.
package store

// Readable exposes the read side of a store.
type Readable interface {
	Get(key []byte) ([]byte, error)
}

// Writable exposes the write side of a store.
type Writable interface {
	Set(key []byte, value []byte) error

	Delete(key []byte) error
}

// Snapshot is an isolated view of the store. Writes land in the snapshot
// only; whether they ever reach the backing store is up to its owner.
type Snapshot interface {
	Readable
	Writable
}
