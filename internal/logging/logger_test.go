package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 100, "line one line two"},
		{"abcdefghij", 4, "abcd..."},
		{"  padded  ", 10, "padded"},
		{"hojas según", 9, "hojas seg..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
	}
}

func TestSubsystemField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { Init(false) })

	Info("engine", "cycle %d done", 3)
	Warn("sinric", "device %s offline", "light-1")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "cycle 3 done", entries[0].Message)
	assert.Equal(t, "engine", entries[0].ContextMap()["subsystem"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestInitLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Cleanup(func() { Init(false) })

	tests := []struct {
		debug bool
		want  zapcore.Level
	}{
		{true, zapcore.DebugLevel},
		{false, zapcore.InfoLevel},
		{true, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		Init(tt.debug)
		assert.Equal(t, tt.want, level.Level(), "Init(%v)", tt.debug)
	}
}
