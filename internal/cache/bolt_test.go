package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/leonardcser/kvcache/internal/cache"
)

func TestOpenBolt_Failure(t *testing.T) {
	// A directory cannot be opened as a database file.
	s, err := cache.OpenBolt[string](t.TempDir(), cache.BoltOptions{})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, cache.ErrFailure)
}

func TestBoltStore_ExpiredRecordRemovedOnRead(t *testing.T) {
	clock := newFakeClock()
	s, err := cache.OpenBolt[string](filepath.Join(t.TempDir(), "c.bbolt"), cache.BoltOptions{
		Options: cache.Options{Now: clock.Now},
	})
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Set("k", "v", time.Second)
	_, _ = s.Set("keep", "v", 0)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, s.Len())

	v, _ := s.Get("k", "d")
	assert.Equal(t, "d", v)
	assert.Equal(t, 1, s.Len())
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.bbolt")
	opts := cache.BoltOptions{Bucket: "web"}

	s, err := cache.OpenBolt[map[string]any](path, opts)
	require.NoError(t, err)
	_, _ = s.Set("doc", map[string]any{"title": "hello"}, time.Hour)
	require.NoError(t, s.Close())

	s, err = cache.OpenBolt[map[string]any](path, opts)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("doc", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "hello"}, v)
}

func TestBoltStore_ShortRecordIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.bbolt")
	s, err := cache.OpenBolt[string](path, cache.BoltOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("cache")).Put([]byte("short"), []byte{1, 2})
	}))
	require.NoError(t, db.Close())

	s, err = cache.OpenBolt[string](path, cache.BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("short", "d")
	require.NoError(t, err)
	assert.Equal(t, "d", v)
	has, _ := s.Has("short")
	assert.False(t, has)
}

func TestBoltStore_ClearRecreatesBucket(t *testing.T) {
	s, err := cache.OpenBolt[int](filepath.Join(t.TempDir(), "c.bbolt"), cache.BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Set("a", 1, 0)
	assert.True(t, s.Clear())
	assert.Zero(t, s.Len())

	ok, _ := s.Set("b", 2, 0)
	assert.True(t, ok)
}

func TestBoltStore_CloseNil(t *testing.T) {
	var s *cache.BoltStore[string]
	assert.NoError(t, s.Close())
}
