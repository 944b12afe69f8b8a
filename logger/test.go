package logger

import (
	"fmt"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// String returns the formatted message.
func (e TestLogEntry) String() string {
	return fmt.Sprintf(e.Message, e.Arguments...)
}

type testLogs struct {
	mu      sync.Mutex
	entries []TestLogEntry
}

// TestLogger records every entry, including those written through loggers derived
// with With or WithPrefix, so tests can assert on what a component logged.
type TestLogger struct {
	metadata map[string]interface{}
	logs     *testLogs
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, logs: c.logs}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) log(level string, msg string, args ...interface{}) {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	c.logs.entries = append(c.logs.entries, TestLogEntry{level, msg, args, c.metadata})
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.log("TRACE", msg, args...)
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.log("DEBUG", msg, args...)
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.log("INFO", msg, args...)
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.log("WARN", msg, args...)
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.log("ERROR", msg, args...)
}

// Fatal records the entry and panics instead of exiting so tests can recover.
func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.log("FATAL", msg, args...)
	panic(fmt.Sprintf(msg, args...))
}

// Logs returns a copy of every entry recorded so far.
func (c *TestLogger) Logs() []TestLogEntry {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	out := make([]TestLogEntry, len(c.logs.entries))
	copy(out, c.logs.entries)
	return out
}

// Count returns how many entries were recorded at the given severity.
func (c *TestLogger) Count(severity string) int {
	var n int
	for _, e := range c.Logs() {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{logs: &testLogs{}}
}
