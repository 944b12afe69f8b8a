package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetLevelFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		expectedLevel LogLevel
	}{
		{"trace level", "trace", LevelTrace},
		{"debug level", "debug", LevelDebug},
		{"info level", "info", LevelInfo},
		{"warn level", "warn", LevelWarn},
		{"error level", "error", LevelError},
		{"uppercase trace", "TRACE", LevelTrace},
		{"mixed case debug", "DeBuG", LevelDebug},
		{"empty string", "", LevelInfo},
		{"invalid value", "verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tt.envValue)
			assert.Equal(t, tt.expectedLevel, GetLevelFromEnv())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, level)

	level, ok = ParseLevel("bogus")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, level)
}

func newBufferLogger(level LogLevel) (*consoleLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, level).(*consoleLogger)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func TestConsoleLoggerLevels(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Error("failed: %s", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "2024-01-02T03:04:05Z [INFO]  shown 2\n")
	assert.Contains(t, out, "[ERROR] failed: boom")
	assert.NotContains(t, out, "\x1b[", "no colours when not writing to a terminal")
}

func TestConsoleLoggerIsLevelEnabled(t *testing.T) {
	l, _ := newBufferLogger(LevelWarn)
	assert.False(t, l.IsLevelEnabled(LevelDebug))
	assert.False(t, l.IsLevelEnabled(LevelInfo))
	assert.True(t, l.IsLevelEnabled(LevelWarn))
	assert.True(t, l.IsLevelEnabled(LevelError))
}

func TestConsoleLoggerPrefixAndMetadata(t *testing.T) {
	l, buf := newBufferLogger(LevelTrace)
	child := l.WithPrefix("[reaper]").WithPrefix("[reaper]").With(map[string]interface{}{"run": "abc"})
	child.Trace("round %d", 3)

	assert.Equal(t, "2024-01-02T03:04:05Z [TRACE] [reaper] round 3 {\"run\":\"abc\"}\n", buf.String())

	// parent is not affected by derived loggers
	buf.Reset()
	l.Info("plain")
	assert.Equal(t, "2024-01-02T03:04:05Z [INFO]  plain\n", buf.String())
}

func TestTestLoggerSharesEntries(t *testing.T) {
	log := NewTestLogger()
	child := log.With(map[string]interface{}{"app": "/shop"}).WithPrefix("x")

	log.Info("one %d", 1)
	child.Error("two %s", "b")
	child.Warn("three")

	entries := log.Logs()
	assert.Len(t, entries, 3)
	assert.Equal(t, "one 1", entries[0].String())
	assert.Equal(t, "ERROR", entries[1].Severity)
	assert.Equal(t, "/shop", entries[1].Metadata["app"])
	assert.Equal(t, 1, log.Count("ERROR"))
	assert.Equal(t, 1, log.Count("WARN"))
}

func TestTestLoggerFatalPanics(t *testing.T) {
	log := NewTestLogger()
	assert.Panics(t, func() { log.Fatal("bad %s", "thing") })
	assert.Equal(t, 1, log.Count("FATAL"))
}
