// Package config loads kvcache settings from the environment or a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Engine names.
const (
	EngineFile   = "file"
	EngineMemory = "memory"
	EngineBolt   = "bolt"
)

const envDir = "KVCACHE_DIR"

// Config is the complete kvcache configuration.
type Config struct {
	Engine     string        `yaml:"engine" env:"KVCACHE_ENGINE" env-default:"file"`
	Dir        string        `yaml:"dir" env:"KVCACHE_DIR"`
	Codec      string        `yaml:"codec" env:"KVCACHE_CODEC" env-default:"cbor"`
	DefaultTTL time.Duration `yaml:"default_ttl" env:"KVCACHE_DEFAULT_TTL" env-default:"0s"`
	Bolt       BoltConfig    `yaml:"bolt"`
	Logging    LoggingConfig `yaml:"logging"`
	Metrics    MetricsConfig `yaml:"metrics"`
}

// BoltConfig configures the bolt engine.
type BoltConfig struct {
	Path   string `yaml:"path" env:"KVCACHE_BOLT_PATH"`
	Bucket string `yaml:"bucket" env:"KVCACHE_BOLT_BUCKET" env-default:"cache"`
}

// LoggingConfig configures the log file (rotation powered by lumberjack).
type LoggingConfig struct {
	Path       string `yaml:"path" env:"KVCACHE_LOG"`
	Level      string `yaml:"level" env:"KVCACHE_LOG_LEVEL" env-default:"info"`
	MaxSize    int    `yaml:"max_size" env:"KVCACHE_LOG_MAX_SIZE" env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env:"KVCACHE_LOG_MAX_BACKUPS" env-default:"3"`
	MaxAge     int    `yaml:"max_age" env:"KVCACHE_LOG_MAX_AGE" env-default:"28"`
	Compress   bool   `yaml:"compress" env:"KVCACHE_LOG_COMPRESS" env-default:"false"`
}

// MetricsConfig configures the prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"KVCACHE_METRICS_ADDR"`
}

// Load reads the configuration. With a non-empty path the YAML file is read
// first and environment variables override it; otherwise only the
// environment is used. Unset directories are resolved with DefaultDir.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	switch c.Engine {
	case EngineFile, EngineMemory, EngineBolt:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
	if c.Bolt.Path == "" {
		c.Bolt.Path = BoltPathFor(c.Dir)
	}
	return nil
}

// BoltPathFor returns the default bolt database path for a cache directory.
// The database sits next to dir, never inside it, so the file engine sharing
// dir neither lists it as a key nor removes it on Clear.
func BoltPathFor(dir string) string {
	return filepath.Clean(dir) + ".bbolt"
}

// DefaultDir resolves the cache directory.
// Precedence:
//  1. KVCACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/kvcache
//  3. <executable dir>/runtime/cache
//  4. ./runtime/cache
func DefaultDir() string {
	if d := os.Getenv(envDir); d != "" {
		return d
	}
	if d, err := os.UserCacheDir(); err == nil && d != "" {
		return filepath.Join(d, "kvcache")
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "runtime", "cache")
	}
	return filepath.Join(".", "runtime", "cache")
}
