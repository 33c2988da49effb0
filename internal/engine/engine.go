// Package engine builds the cache engine selected by the configuration.
package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/leonardcser/kvcache/internal/cache"
	"github.com/leonardcser/kvcache/internal/config"
)

// Engine is an opened cache plus the function that releases it.
type Engine struct {
	Cache cache.Cache[any]
	Name  string
	close func() error
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	if e == nil || e.close == nil {
		return nil
	}
	return e.close()
}

// Open builds the configured engine. Values are stored as untyped data so
// they can carry any JSON document. When reg is non-nil the cache is wrapped
// with prometheus instrumentation.
func Open(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	codec, err := cache.CodecByName(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", cfg.Engine, err)
	}
	opts := cache.Options{
		Logger:     log.With(zap.String("engine", cfg.Engine)),
		DefaultTTL: cfg.DefaultTTL,
	}

	e := &Engine{Name: cfg.Engine}
	switch cfg.Engine {
	case config.EngineMemory:
		e.Cache = cache.NewMemoryStore[any](opts)
	case config.EngineFile:
		s, err := cache.NewFileStore[any](cfg.Dir, cache.FileOptions{Options: opts, Codec: codec})
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", cfg.Engine, err)
		}
		e.Cache = s
	case config.EngineBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Bolt.Path), 0o755); err != nil {
			return nil, fmt.Errorf("engine %s: %w", cfg.Engine, err)
		}
		s, err := cache.OpenBolt[any](cfg.Bolt.Path, cache.BoltOptions{Options: opts, Bucket: cfg.Bolt.Bucket, Codec: codec})
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", cfg.Engine, err)
		}
		e.Cache = s
		e.close = s.Close
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}

	if reg != nil {
		e.Cache = cache.NewInstrumented(e.Cache, e.Name, cache.NewMetrics(reg))
	}
	log.Info("cache engine opened", zap.String("engine", e.Name), zap.String("codec", codec.Name()))
	return e, nil
}
