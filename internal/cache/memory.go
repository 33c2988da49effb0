package cache

import (
	"iter"
	"sync"
	"time"
)

// MemoryStore keeps entries in a process-local map. Values are lost when the
// process exits. Expired entries stay in the map until overwritten, deleted or
// cleared. It is safe for concurrent use by multiple goroutines.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	opts    Options
}

var _ Cache[any] = (*MemoryStore[any])(nil)

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore[V any](opts Options) *MemoryStore[V] {
	return &MemoryStore[V]{
		entries: make(map[string]Entry[V]),
		opts:    opts.withDefaults(),
	}
}

func (s *MemoryStore[V]) lookup(key string) (Entry[V], bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.Expired(s.opts.Now()) {
		return e, false
	}
	return e, true
}

// Get returns the value for key, or def when it is missing or expired.
func (s *MemoryStore[V]) Get(key string, def V) (V, error) {
	if err := checkKey("get", key); err != nil {
		return def, err
	}
	e, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	return e.Value, nil
}

// Set stores value under key, replacing any previous entry.
func (s *MemoryStore[V]) Set(key string, value V, ttl time.Duration) (bool, error) {
	if err := checkKey("set", key); err != nil {
		return false, err
	}
	e := Entry[V]{Key: key, ExpiresAt: s.opts.expiresAt(ttl), Value: value}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return true, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *MemoryStore[V]) Delete(key string) (bool, error) {
	if err := checkKey("delete", key); err != nil {
		return false, err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return true, nil
}

// Clear removes every entry.
func (s *MemoryStore[V]) Clear() bool {
	s.mu.Lock()
	s.entries = make(map[string]Entry[V])
	s.mu.Unlock()
	return true
}

// Has reports whether key holds a value that has not expired.
func (s *MemoryStore[V]) Has(key string) (bool, error) {
	if err := checkKey("has", key); err != nil {
		return false, err
	}
	_, ok := s.lookup(key)
	return ok, nil
}

// GetMultiple returns a lazy sequence of Get results in key order.
func (s *MemoryStore[V]) GetMultiple(keys []string, def V) (iter.Seq2[string, V], error) {
	return getMultiple[V](s, keys, def)
}

// SetMultiple stores values in insertion order.
func (s *MemoryStore[V]) SetMultiple(values *Values[V], ttl time.Duration) (bool, error) {
	return setMultiple[V](s, values, ttl)
}

// DeleteMultiple removes keys in order.
func (s *MemoryStore[V]) DeleteMultiple(keys []string) (bool, error) {
	return deleteMultiple[V](s, keys)
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
