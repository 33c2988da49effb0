package cache

import (
	"iter"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// Cache defines the key-value cache contract with TTL semantics shared by
// every engine.
//
// The only error ever returned from a Cache method is an invalid key
// (errors.Is(err, ErrInvalidKey)). Storage failures are soft: Get returns the
// supplied default, Has returns false and the bool-returning methods return
// false.
//
// A zero ttl means the entry never expires, unless the engine was opened with
// a positive Options.DefaultTTL. A negative ttl stores an entry that is
// already expired.
type Cache[V any] interface {
	Get(key string, def V) (V, error)
	Set(key string, value V, ttl time.Duration) (bool, error)
	Delete(key string) (bool, error)
	Clear() bool
	Has(key string) (bool, error)

	// GetMultiple validates every key, then returns a lazy sequence that
	// performs one Get per step in input order.
	GetMultiple(keys []string, def V) (iter.Seq2[string, V], error)
	// SetMultiple stops at the first failed Set. Earlier writes are kept.
	SetMultiple(values *Values[V], ttl time.Duration) (bool, error)
	// DeleteMultiple stops at the first failed Delete. Earlier deletes are kept.
	DeleteMultiple(keys []string) (bool, error)
}

// Values is a key-value mapping that remembers insertion order.
type Values[V any] = orderedmap.OrderedMap[string, V]

// Item is one key-value pair.
type Item[V any] struct {
	Key   string
	Value V
}

// NewValues builds a Values mapping from items, in order. A repeated key keeps
// its first position and its last value.
func NewValues[V any](items ...Item[V]) *Values[V] {
	m := orderedmap.New[string, V]()
	for _, it := range items {
		m.Set(it.Key, it.Value)
	}
	return m
}

// Options configures the engines.
type Options struct {
	// Logger receives debug logs for swallowed storage errors. Nil disables logging.
	Logger *zap.Logger
	// DefaultTTL is used when Set is called with a zero ttl.
	// If DefaultTTL <= 0, such entries never expire.
	DefaultTTL time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// expiresAt converts ttl into an absolute expiration at write time.
func (o Options) expiresAt(ttl time.Duration) int64 {
	if ttl == 0 {
		ttl = o.DefaultTTL
	}
	if ttl <= 0 {
		return Never
	}
	return o.Now().Add(ttl).Unix()
}
