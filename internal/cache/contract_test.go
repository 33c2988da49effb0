package cache_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kvcache/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engine struct {
	name string
	open func(t *testing.T, opts cache.Options) cache.Cache[string]
}

func engines() []engine {
	return []engine{
		{"memory", func(t *testing.T, opts cache.Options) cache.Cache[string] {
			return cache.NewMemoryStore[string](opts)
		}},
		{"file", func(t *testing.T, opts cache.Options) cache.Cache[string] {
			s, err := cache.NewFileStore[string](t.TempDir(), cache.FileOptions{Options: opts})
			require.NoError(t, err)
			return s
		}},
		{"file-json", func(t *testing.T, opts cache.Options) cache.Cache[string] {
			s, err := cache.NewFileStore[string](t.TempDir(), cache.FileOptions{Options: opts, Codec: cache.JSON})
			require.NoError(t, err)
			return s
		}},
		{"bolt", func(t *testing.T, opts cache.Options) cache.Cache[string] {
			s, err := cache.OpenBolt[string](filepath.Join(t.TempDir(), "cache.bbolt"), cache.BoltOptions{Options: opts})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func forEachEngine(t *testing.T, fn func(t *testing.T, c cache.Cache[string], clock *fakeClock)) {
	t.Helper()
	for _, e := range engines() {
		t.Run(e.name, func(t *testing.T) {
			clock := newFakeClock()
			fn(t, e.open(t, cache.Options{Now: clock.Now}), clock)
		})
	}
}

func TestContract_RoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		ok, err := c.Set("greeting", "hello", 0)
		require.NoError(t, err)
		assert.True(t, ok)

		v, err := c.Get("greeting", "none")
		require.NoError(t, err)
		assert.Equal(t, "hello", v)

		has, err := c.Has("greeting")
		require.NoError(t, err)
		assert.True(t, has)
	})
}

func TestContract_Overwrite(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		_, _ = c.Set("k", "v1", 0)
		_, _ = c.Set("k", "v2", time.Minute)

		v, err := c.Get("k", "")
		require.NoError(t, err)
		assert.Equal(t, "v2", v)
	})
}

func TestContract_MissReturnsDefault(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		v, err := c.Get("absent", "fallback")
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)

		has, err := c.Has("absent")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestContract_TTLExpires(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], clock *fakeClock) {
		ok, err := c.Set("k", "v", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		v, _ := c.Get("k", "X")
		assert.Equal(t, "v", v, "fresh within ttl")

		clock.Advance(2 * time.Second)

		v, err = c.Get("k", "X")
		require.NoError(t, err)
		assert.Equal(t, "X", v)

		has, err := c.Has("k")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestContract_FreshAtExpirationSecond(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], clock *fakeClock) {
		_, _ = c.Set("k", "v", time.Second)
		clock.Advance(time.Second)

		has, err := c.Has("k")
		require.NoError(t, err)
		assert.True(t, has, "expiration == now is still fresh")
	})
}

func TestContract_NoTTLNeverExpires(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], clock *fakeClock) {
		_, _ = c.Set("k", "v", 0)
		clock.Advance(50 * 365 * 24 * time.Hour)

		v, err := c.Get("k", "X")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	})
}

func TestContract_NegativeTTLIsAlreadyExpired(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		ok, err := c.Set("k", "v", -time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		has, err := c.Has("k")
		require.NoError(t, err)
		assert.False(t, has)
		v, _ := c.Get("k", "X")
		assert.Equal(t, "X", v)
	})
}

func TestContract_NegativeTTLIgnoresDefaultTTL(t *testing.T) {
	for _, e := range engines() {
		t.Run(e.name, func(t *testing.T) {
			clock := newFakeClock()
			c := e.open(t, cache.Options{Now: clock.Now, DefaultTTL: time.Hour})

			_, _ = c.Set("k", "v", -5*time.Second)
			has, _ := c.Has("k")
			assert.False(t, has)
		})
	}
}

func TestContract_DeleteUnsetKey(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		ok, err := c.Delete("never-set")
		require.NoError(t, err)
		assert.True(t, ok)

		has, err := c.Has("never-set")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestContract_Delete(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		_, _ = c.Set("k", "v", 0)

		ok, err := c.Delete("k")
		require.NoError(t, err)
		assert.True(t, ok)

		v, _ := c.Get("k", "gone")
		assert.Equal(t, "gone", v)
	})
}

func TestContract_Clear(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		for _, k := range []string{"a", "b", "c"} {
			_, _ = c.Set(k, k, 0)
		}

		assert.True(t, c.Clear())

		for _, k := range []string{"a", "b", "c"} {
			has, err := c.Has(k)
			require.NoError(t, err)
			assert.False(t, has, k)
		}
	})
}

func TestContract_SetMultipleGetMultipleOrder(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		values := cache.NewValues(
			cache.Item[string]{Key: "b", Value: "2"},
			cache.Item[string]{Key: "a", Value: "1"},
		)
		ok, err := c.SetMultiple(values, 0)
		require.NoError(t, err)
		require.True(t, ok)

		seq, err := c.GetMultiple([]string{"a", "b", "missing"}, "-")
		require.NoError(t, err)

		var got []cache.Item[string]
		for k, v := range seq {
			got = append(got, cache.Item[string]{Key: k, Value: v})
		}
		assert.Equal(t, []cache.Item[string]{
			{Key: "a", Value: "1"},
			{Key: "b", Value: "2"},
			{Key: "missing", Value: "-"},
		}, got)
	})
}

func TestContract_GetMultipleIsLazy(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		seq, err := c.GetMultiple([]string{"a", "b"}, "-")
		require.NoError(t, err)

		// Written after the sequence was created, observed at pull time.
		_, _ = c.Set("a", "late", 0)

		for k, v := range seq {
			assert.Equal(t, "a", k)
			assert.Equal(t, "late", v)
			break
		}
	})
}

func TestContract_DeleteMultiple(t *testing.T) {
	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		_, _ = c.SetMultiple(cache.NewValues(
			cache.Item[string]{Key: "a", Value: "1"},
			cache.Item[string]{Key: "b", Value: "2"},
			cache.Item[string]{Key: "c", Value: "3"},
		), 0)

		ok, err := c.DeleteMultiple([]string{"a", "b", "never"})
		require.NoError(t, err)
		assert.True(t, ok)

		for k, want := range map[string]bool{"a": false, "b": false, "c": true} {
			has, _ := c.Has(k)
			assert.Equal(t, want, has, k)
		}
	})
}

func TestContract_InvalidKeys(t *testing.T) {
	badKeys := []string{"", "a{b", "a}b", "a(b", "a)b", "a/b", `a\b`, "a@b", "user:1"}

	forEachEngine(t, func(t *testing.T, c cache.Cache[string], _ *fakeClock) {
		_, err := c.Set("good", "v", 0)
		require.NoError(t, err)

		for _, k := range badKeys {
			_, err := c.Get(k, "")
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "get %q", k)

			ok, err := c.Set(k, "v", 0)
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "set %q", k)
			assert.False(t, ok)

			_, err = c.Delete(k)
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "delete %q", k)

			_, err = c.Has(k)
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "has %q", k)

			_, err = c.GetMultiple([]string{"good", k}, "")
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "get multiple %q", k)

			ok, err = c.SetMultiple(cache.NewValues(
				cache.Item[string]{Key: "other", Value: "x"},
				cache.Item[string]{Key: k, Value: "x"},
			), 0)
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "set multiple %q", k)
			assert.False(t, ok)

			_, err = c.DeleteMultiple([]string{"good", k})
			assert.ErrorIs(t, err, cache.ErrInvalidKey, "delete multiple %q", k)
		}

		// Nothing was mutated by the rejected calls.
		v, _ := c.Get("good", "")
		assert.Equal(t, "v", v)
		has, _ := c.Has("other")
		assert.False(t, has)
	})
}

func TestContract_DefaultTTL(t *testing.T) {
	for _, e := range engines() {
		t.Run(e.name, func(t *testing.T) {
			clock := newFakeClock()
			c := e.open(t, cache.Options{Now: clock.Now, DefaultTTL: time.Minute})

			_, _ = c.Set("defaulted", "v", 0)
			_, _ = c.Set("explicit", "v", time.Hour)
			clock.Advance(2 * time.Minute)

			has, _ := c.Has("defaulted")
			assert.False(t, has)
			has, _ = c.Has("explicit")
			assert.True(t, has)
		})
	}
}
