// Package mem provides in-memory implementations of the store abstractions.
//
// The staging snapshot keeps the writes of an execution separate from its
// parent store so that a failed execution leaves the parent untouched. A
// deleted key is recorded as a tombstone so that it masks the parent value
// until the staging is applied.
package mem

import "go.neoki.io/neoki/core/store"

// Snapshot is a plain in-memory key/value snapshot.
//
// - implements store.Snapshot
type Snapshot struct {
	values map[string][]byte
}

// NewSnapshot creates a new empty in-memory snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		values: make(map[string][]byte),
	}
}

// Get implements store.Readable.
func (snap *Snapshot) Get(key []byte) ([]byte, error) {
	return snap.values[string(key)], nil
}

// Set implements store.Writable.
func (snap *Snapshot) Set(key, value []byte) error {
	snap.values[string(key)] = value

	return nil
}

// Delete implements store.Writable.
func (snap *Snapshot) Delete(key []byte) error {
	delete(snap.values, string(key))

	return nil
}

// Staging is an overlay on top of a parent snapshot. Reads fall through to the
// parent for keys that have not been written, writes and deletes stay in the
// overlay until Apply is called.
//
// - implements store.Snapshot
type Staging struct {
	parent  store.Snapshot
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewStaging creates a staging snapshot over the parent.
func NewStaging(parent store.Snapshot) *Staging {
	return &Staging{
		parent:  parent,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get implements store.Readable. It returns the staged value, or the parent
// value if the key has not been written, or nil if the key is staged for
// deletion.
func (s *Staging) Get(key []byte) ([]byte, error) {
	str := string(key)

	if _, found := s.deletes[str]; found {
		return nil, nil
	}

	if value, found := s.writes[str]; found {
		return value, nil
	}

	return s.parent.Get(key)
}

// Set implements store.Writable.
func (s *Staging) Set(key, value []byte) error {
	str := string(key)

	delete(s.deletes, str)
	s.writes[str] = value

	return nil
}

// Delete implements store.Writable.
func (s *Staging) Delete(key []byte) error {
	str := string(key)

	delete(s.writes, str)
	s.deletes[str] = struct{}{}

	return nil
}

// Apply writes the staged updates to the parent snapshot.
func (s *Staging) Apply() error {
	for key, value := range s.writes {
		err := s.parent.Set([]byte(key), value)
		if err != nil {
			return err
		}
	}

	for key := range s.deletes {
		err := s.parent.Delete([]byte(key))
		if err != nil {
			return err
		}
	}

	return nil
}
