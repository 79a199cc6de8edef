package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(os.Getenv("DEBUG") == "true")
)

func newLogger(debug bool) *zap.SugaredLogger {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Init rebuilds the process logger. debug also honours DEBUG=true.
func Init(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(debug || os.Getenv("DEBUG") == "true")
}

// SetLogger replaces the process logger (tests use an observer core)
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

// Sync flushes buffered entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Info logs an informational message (always shown)
func Info(subsystem, format string, args ...any) {
	get().Infow(fmt.Sprintf(format, args...), "subsystem", subsystem)
}

// Debug logs a debug message (only shown if DEBUG=true)
func Debug(subsystem, format string, args ...any) {
	get().Debugw(fmt.Sprintf(format, args...), "subsystem", subsystem)
}

// Warn logs a recoverable problem
func Warn(subsystem, format string, args ...any) {
	get().Warnw(fmt.Sprintf(format, args...), "subsystem", subsystem)
}

// Error logs a failure that was absorbed
func Error(subsystem, format string, args ...any) {
	get().Errorw(fmt.Sprintf(format, args...), "subsystem", subsystem)
}

// Truncate truncates a string to maxLen and adds ellipsis
func Truncate(s string, maxLen int) string {
	// Replace newlines with spaces for one-line logs
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
