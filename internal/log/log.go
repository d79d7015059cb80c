package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu      sync.RWMutex
	sugared *zap.SugaredLogger
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the global logger on first use. Output goes to stderr
// in zap's console format with ISO8601 timestamps.
func initLogger() *zap.SugaredLogger {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	if s != nil {
		return s
	}

	mu.Lock()
	defer mu.Unlock()
	if sugared == nil {
		sugared = build(false)
	}
	return sugared
}

func build(jsonOutput bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if jsonOutput {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		// Building only fails on bad sink paths; stderr is always valid.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Configure switches the output encoding. json=true emits one JSON object
// per line, which is what log shippers in production expect.
func Configure(json bool) {
	mu.Lock()
	defer mu.Unlock()
	if sugared != nil {
		_ = sugared.Sync()
	}
	sugared = build(json)
}

// Use replaces the global logger. Tests use it with zaptest/observer cores.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugared = l.WithOptions(zap.AddCallerSkip(2)).Sugar()
}

func SetLevel(l Level) {
	level.SetLevel(toZap(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level,
// defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func Sync() {
	_ = initLogger().Sync()
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(l Level, msg string, kv ...any) {
	s := initLogger()
	// Odd trailing key is dropped, same as before the zap backend.
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}
	switch l {
	case LevelDebug:
		s.Debugw(msg, kv...)
	case LevelWarn:
		s.Warnw(msg, kv...)
	case LevelError:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

func toZap(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
