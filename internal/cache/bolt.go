package cache

import (
	"encoding/binary"
	"errors"
	"iter"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// headerSize is the 8-byte big endian expiration stored before each value.
const headerSize = 8

var errShortRecord = errors.New("record shorter than header")

// BoltStore keeps all entries in a single bbolt database file.
// It is safe for concurrent use by multiple goroutines.
type BoltStore[V any] struct {
	db     *bolt.DB
	bucket []byte
	codec  Codec
	opts   Options
	log    *zap.Logger
}

var _ Cache[any] = (*BoltStore[any])(nil)

// BoltOptions configures a BoltStore.
type BoltOptions struct {
	Options
	// Bucket is the name of the Bolt bucket to use. Defaults to "cache".
	Bucket string
	// Codec encodes values. Defaults to CBOR.
	Codec Codec
}

// OpenBolt initializes or opens a BoltStore at the given path.
func OpenBolt[V any](path string, opts BoltOptions) (*BoltStore[V], error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, failure("open", "open ["+path+"] failure", err)
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, failure("open", "create bucket failure", err)
	}
	if opts.Codec == nil {
		opts.Codec = CBOR
	}
	o := opts.Options.withDefaults()
	return &BoltStore[V]{
		db:     db,
		bucket: bucket,
		codec:  opts.Codec,
		opts:   o,
		log:    o.Logger.With(zap.String("db", path)),
	}, nil
}

// Close closes the underlying database.
func (s *BoltStore[V]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Layout: 8 bytes big endian expiresAt || codec(value)
func (s *BoltStore[V]) encode(expiresAt int64, value V) ([]byte, error) {
	raw, err := s.codec.Marshal(value)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, headerSize+len(raw))
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expiresAt))
	copy(buf[headerSize:], raw)
	return buf, nil
}

func (s *BoltStore[V]) decode(key string, v []byte) (Entry[V], error) {
	e := Entry[V]{Key: key}
	if len(v) < headerSize {
		return e, errShortRecord
	}
	e.ExpiresAt = int64(binary.BigEndian.Uint64(v[:headerSize]))
	err := s.codec.Unmarshal(v[headerSize:], &e.Value)
	return e, err
}

// fresh returns the live entry for key, deleting it when it has expired.
func (s *BoltStore[V]) fresh(key string) (Entry[V], bool) {
	var (
		e       Entry[V]
		exists  bool
		decoded error
	)
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		exists = true
		e, decoded = s.decode(key, v)
		return nil
	}); err != nil {
		s.log.Debug(logReadFailed, zap.String("key", key), zap.Error(err))
		return e, false
	}
	if !exists {
		return e, false
	}
	if decoded != nil {
		s.log.Debug(logDecodeFailed, zap.String("key", key), zap.Error(decoded))
		return e, false
	}
	if e.Expired(s.opts.Now()) {
		s.remove(key)
		return e, false
	}
	return e, true
}

func (s *BoltStore[V]) remove(key string) bool {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	}); err != nil {
		s.log.Debug(logRemoveFailed, zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Get returns the value for key, or def on a miss. An expired record is deleted.
func (s *BoltStore[V]) Get(key string, def V) (V, error) {
	if err := checkKey("get", key); err != nil {
		return def, err
	}
	e, ok := s.fresh(key)
	if !ok {
		return def, nil
	}
	return e.Value, nil
}

// Set stores value under key in a single transaction.
func (s *BoltStore[V]) Set(key string, value V, ttl time.Duration) (bool, error) {
	if err := checkKey("set", key); err != nil {
		return false, err
	}
	buf, err := s.encode(s.opts.expiresAt(ttl), value)
	if err != nil {
		s.log.Debug(logEncodeFailed, zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	}); err != nil {
		s.log.Debug(logWriteFailed, zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Delete removes key from the bucket.
func (s *BoltStore[V]) Delete(key string) (bool, error) {
	if err := checkKey("delete", key); err != nil {
		return false, err
	}
	return s.remove(key), nil
}

// Clear drops and recreates the bucket.
func (s *BoltStore[V]) Clear() bool {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	}); err != nil {
		s.log.Debug(logClearFailed, zap.Error(err))
		return false
	}
	return true
}

// Has reports whether key holds a fresh value. An expired record is deleted.
func (s *BoltStore[V]) Has(key string) (bool, error) {
	if err := checkKey("has", key); err != nil {
		return false, err
	}
	_, ok := s.fresh(key)
	return ok, nil
}

// GetMultiple returns a lazy sequence of Get results in key order.
func (s *BoltStore[V]) GetMultiple(keys []string, def V) (iter.Seq2[string, V], error) {
	return getMultiple[V](s, keys, def)
}

// SetMultiple stores values in insertion order, one transaction per key.
func (s *BoltStore[V]) SetMultiple(values *Values[V], ttl time.Duration) (bool, error) {
	return setMultiple[V](s, values, ttl)
}

// DeleteMultiple removes keys in order.
func (s *BoltStore[V]) DeleteMultiple(keys []string) (bool, error) {
	return deleteMultiple[V](s, keys)
}

// Len returns the number of stored records, expired ones included.
func (s *BoltStore[V]) Len() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n
}
