package cache

import (
	"iter"
	"time"
)

// single is the subset of Cache the bulk operations are composed from.
type single[V any] interface {
	Get(key string, def V) (V, error)
	Set(key string, value V, ttl time.Duration) (bool, error)
	Delete(key string) (bool, error)
}

func getMultiple[V any](c single[V], keys []string, def V) (iter.Seq2[string, V], error) {
	if err := checkKeys("get multiple", keys); err != nil {
		return nil, err
	}
	return func(yield func(string, V) bool) {
		for _, k := range keys {
			v, _ := c.Get(k, def)
			if !yield(k, v) {
				return
			}
		}
	}, nil
}

func setMultiple[V any](c single[V], values *Values[V], ttl time.Duration) (bool, error) {
	if values == nil {
		return true, nil
	}
	for p := values.Oldest(); p != nil; p = p.Next() {
		if err := checkKey("set multiple", p.Key); err != nil {
			return false, err
		}
	}
	for p := values.Oldest(); p != nil; p = p.Next() {
		if ok, _ := c.Set(p.Key, p.Value, ttl); !ok {
			return false, nil
		}
	}
	return true, nil
}

func deleteMultiple[V any](c single[V], keys []string) (bool, error) {
	if err := checkKeys("delete multiple", keys); err != nil {
		return false, err
	}
	for _, k := range keys {
		if ok, _ := c.Delete(k); !ok {
			return false, nil
		}
	}
	return true, nil
}
