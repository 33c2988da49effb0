package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables used by InitFromEnv.
const (
	envLogPath  = "KVCACHE_LOG"
	envLogLevel = "KVCACHE_LOG_LEVEL"
)

// Rotation controls log file rotation.
type Rotation struct {
	MaxSize    int // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

var (
	mu      sync.RWMutex
	std     = zap.NewNop()
	logFile *lumberjack.Logger
)

// DefaultPath returns KVCACHE_LOG or kvcache.log next to the executable.
func DefaultPath() string {
	if p := os.Getenv(envLogPath); p != "" {
		return p
	}
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "kvcache.log")
	}
	return "./kvcache.log"
}

// InitFromEnv initializes the logger using KVCACHE_LOG and KVCACHE_LOG_LEVEL.
func InitFromEnv() error {
	return Init(DefaultPath(), os.Getenv(envLogLevel), Rotation{})
}

// Init initializes the logger to write JSON lines to the provided file path.
// It creates parent directories if needed. Calling Init again replaces the
// previous logger.
func Init(path, level string, rot Rotation) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(rot.MaxSize, 10),
		MaxBackups: orDefault(rot.MaxBackups, 3),
		MaxAge:     orDefault(rot.MaxAge, 28),
		Compress:   rot.Compress,
	}
	l := New(zapcore.AddSync(w), level)

	mu.Lock()
	old := logFile
	std, logFile = l, w
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// New builds a JSON zap logger writing to ws at the given level.
func New(ws zapcore.WriteSyncer, level string) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, ParseLevel(level))
	return zap.New(core)
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the current logger. It is a no-op logger until Init is called.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Set replaces the current logger.
func Set(l *zap.Logger) {
	mu.Lock()
	std = l
	mu.Unlock()
}

// Close flushes and closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	_ = std.Sync()
	std = zap.NewNop()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Debugf logs debug messages.
func Debugf(format string, args ...any) { L().Sugar().Debugf(format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { L().Sugar().Infof(format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { L().Sugar().Warnf(format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { L().Sugar().Errorf(format, args...) }

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
