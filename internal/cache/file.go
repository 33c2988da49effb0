package cache

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	dirPerms = 0o755
	// tempPattern names in-flight writes. It is independent of the key so
	// any key the filesystem accepts as a file name can be written.
	tempPattern = ".kvcache-*.tmp"

	logReadFailed   = "failed to read cache file"
	logDecodeFailed = "failed to decode cache file"
	logEncodeFailed = "failed to encode cache entry"
	logWriteFailed  = "failed to write cache file"
	logRemoveFailed = "failed to remove cache file"
	logClearFailed  = "failed to clear cache directory"
)

// FileStore keeps one file per key directly under its root directory.
// The file name is the key itself and the content is the codec-encoded Entry.
// Entries survive process restarts.
//
// FileStore does no locking. Writes go through a temporary file renamed over
// the target, so readers see either the old or the new content.
type FileStore[V any] struct {
	root  string
	codec Codec
	opts  Options
	log   *zap.Logger
}

var _ Cache[any] = (*FileStore[any])(nil)

// FileOptions configures a FileStore.
type FileOptions struct {
	Options
	// Codec encodes entries on disk. Defaults to CBOR.
	Codec Codec
}

// NewFileStore opens a store rooted at root, creating the directory (and
// parents) if needed.
func NewFileStore[V any](root string, opts FileOptions) (*FileStore[V], error) {
	if root == "" {
		return nil, failure("open", "root directory is required", nil)
	}
	if err := os.MkdirAll(root, dirPerms); err != nil {
		return nil, failure("open", "mkdir ["+root+"] failure", err)
	}
	if opts.Codec == nil {
		opts.Codec = CBOR
	}
	o := opts.Options.withDefaults()
	return &FileStore[V]{
		root:  root,
		codec: opts.Codec,
		opts:  o,
		log:   o.Logger.With(zap.String("root", root)),
	}, nil
}

// Root returns the directory holding the cache files.
func (s *FileStore[V]) Root() string { return s.root }

func (s *FileStore[V]) path(key string) string { return filepath.Join(s.root, key) }

// load reads and decodes the entry for key. Every failure is a miss.
func (s *FileStore[V]) load(key string) (Entry[V], bool) {
	var e Entry[V]
	p := s.path(key)
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return e, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		s.log.Debug(logReadFailed, zap.String("key", key), zap.Error(err))
		return e, false
	}
	if err := s.codec.Unmarshal(data, &e); err != nil {
		s.log.Debug(logDecodeFailed, zap.String("key", key), zap.Error(err))
		return e, false
	}
	return e, true
}

// fresh returns the live entry for key, removing the file when it has expired.
func (s *FileStore[V]) fresh(key string) (Entry[V], bool) {
	e, ok := s.load(key)
	if !ok {
		return e, false
	}
	if e.Expired(s.opts.Now()) {
		s.remove(key)
		return e, false
	}
	return e, true
}

func (s *FileStore[V]) remove(key string) bool {
	p := s.path(key)
	fi, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err != nil {
		s.log.Debug(logRemoveFailed, zap.String("key", key), zap.Error(err))
		return false
	}
	// Only regular files are entries; "." and ".." resolve to directories.
	if fi.IsDir() {
		return true
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true
		}
		s.log.Debug(logRemoveFailed, zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Get returns the value for key, or def on a miss. An expired file is removed.
func (s *FileStore[V]) Get(key string, def V) (V, error) {
	if err := checkKey("get", key); err != nil {
		return def, err
	}
	e, ok := s.fresh(key)
	if !ok {
		return def, nil
	}
	return e.Value, nil
}

// Set writes value under key, replacing the file atomically.
func (s *FileStore[V]) Set(key string, value V, ttl time.Duration) (bool, error) {
	if err := checkKey("set", key); err != nil {
		return false, err
	}
	data, err := s.codec.Marshal(Entry[V]{Key: key, ExpiresAt: s.opts.expiresAt(ttl), Value: value})
	if err != nil {
		s.log.Debug(logEncodeFailed, zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if err := s.write(key, data); err != nil {
		s.log.Debug(logWriteFailed, zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// write replaces the file for key atomically.
func (s *FileStore[V]) write(key string, data []byte) error {
	f, err := os.CreateTemp(s.root, tempPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes the file for key. A missing file counts as deleted.
func (s *FileStore[V]) Delete(key string) (bool, error) {
	if err := checkKey("delete", key); err != nil {
		return false, err
	}
	return s.remove(key), nil
}

// Clear removes every file under the root. Subdirectories are removed
// with a plain rmdir, so a non-empty one makes Clear stop and return false;
// entries removed before that point stay removed.
func (s *FileStore[V]) Clear() bool {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.log.Debug(logClearFailed, zap.Error(err))
		return false
	}
	for _, de := range entries {
		p := filepath.Join(s.root, de.Name())
		if err := os.Remove(p); err != nil {
			s.log.Debug(logClearFailed, zap.String("path", p), zap.Bool("dir", de.IsDir()), zap.Error(err))
			return false
		}
	}
	return true
}

// Has reports whether key holds a fresh value. An expired file is removed.
func (s *FileStore[V]) Has(key string) (bool, error) {
	if err := checkKey("has", key); err != nil {
		return false, err
	}
	_, ok := s.fresh(key)
	return ok, nil
}

// GetMultiple returns a lazy sequence of Get results in key order.
func (s *FileStore[V]) GetMultiple(keys []string, def V) (iter.Seq2[string, V], error) {
	return getMultiple[V](s, keys, def)
}

// SetMultiple writes values in insertion order.
func (s *FileStore[V]) SetMultiple(values *Values[V], ttl time.Duration) (bool, error) {
	return setMultiple[V](s, values, ttl)
}

// DeleteMultiple removes keys in order.
func (s *FileStore[V]) DeleteMultiple(keys []string) (bool, error) {
	return deleteMultiple[V](s, keys)
}
