package kv

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestDatabase_UpdateAndView(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View([]byte("bucket"), func(b Bucket) error {
		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		return nil
	})
	require.NoError(t, err)

	err = db.View([]byte{0xaa}, nil)
	require.EqualError(t, err, "bucket 'aa' not found")

	err = db.Update(nil, nil)
	require.EqualError(t, err, "failed to create bucket: bucket name required")
}

func TestDatabase_Update_Rollback(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("pong")))

		return xerrors.New("oops")
	})
	require.EqualError(t, err, "oops")

	// a failed update leaves no trace; the bucket itself was rolled back
	err = db.View([]byte("bucket"), nil)
	require.EqualError(t, err, "bucket '6275636b6574' not found")
}

func TestBucket_Get_Set_Delete(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("pong")))

		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		value = b.Get([]byte("pong"))
		require.Nil(t, value)

		require.NoError(t, b.Delete([]byte("ping")))

		value = b.Get([]byte("ping"))
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)
}

func TestBucket_ForEachAndScan(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("aa"), []byte{1}))
		require.NoError(t, b.Set([]byte("ab"), []byte{2}))
		require.NoError(t, b.Set([]byte("ba"), []byte{3}))

		var keys []string

		err := b.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"aa", "ab", "ba"}, keys)

		keys = nil

		err = b.Scan([]byte("a"), func(k, v []byte) error {
			keys = append(keys, string(k))

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"aa", "ab"}, keys)

		err = b.Scan(nil, func(k, v []byte) error {
			return xerrors.New("oops")
		})
		require.EqualError(t, err, "callback failed: oops")

		return nil
	})
	require.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		snap := NewSnapshot(b)

		require.NoError(t, snap.Set([]byte("ping"), []byte("pong")))

		value, err := snap.Get([]byte("ping"))
		require.NoError(t, err)
		require.Equal(t, []byte("pong"), value)

		require.NoError(t, snap.Delete([]byte("ping")))

		value, err = snap.Get([]byte("ping"))
		require.NoError(t, err)
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDB(t *testing.T) (DB, func()) {
	dir, err := ioutil.TempDir(os.TempDir(), "neoki-core-kv")
	require.NoError(t, err)

	db, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}
