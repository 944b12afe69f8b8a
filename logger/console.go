package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

const (
	Reset      = "\033[0m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Magenta    = "\033[35m"
	BlueBold   = "\033[34;1m"
	RedBold    = "\033[31;1m"
	YellowBold = "\033[33;1m"
	WhiteBold  = "\033[37;1m"
	CyanBold   = "\033[36;1m"
	Gray       = "\033[1;90m"
	Purple     = "\u001b[38;5;200m"
)

type palette struct {
	level   string
	message string
}

var palettes = map[LogLevel]palette{
	LevelTrace: {CyanBold, Gray},
	LevelDebug: {BlueBold, Green},
	LevelInfo:  {YellowBold, WhiteBold},
	LevelWarn:  {Purple, Magenta},
	LevelError: {RedBold, Red},
}

// writers are shared between clones so lines from derived loggers never interleave
type output struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

type consoleLogger struct {
	prefixes []string
	metadata map[string]interface{}
	level    LogLevel
	out      *output
	now      func() time.Time
}

var _ Logger = (*consoleLogger)(nil)

func isColorWriter(w io.Writer) bool {
	if isWindows || os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *consoleLogger) clone() *consoleLogger {
	prefixes := make([]string, len(c.prefixes))
	copy(prefixes, c.prefixes)
	metadata := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &consoleLogger{
		prefixes: prefixes,
		metadata: metadata,
		level:    c.level,
		out:      c.out,
		now:      c.now,
	}
}

func (c *consoleLogger) color(val string) string {
	if !c.out.color {
		return ""
	}
	return val
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.level
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	p := palettes[level]
	text := fmt.Sprintf(msg, args...)
	var prefix, suffix string
	if len(c.prefixes) > 0 {
		prefix = c.color(Purple) + strings.Join(c.prefixes, " ") + c.color(Reset) + " "
	}
	if len(c.metadata) > 0 {
		buf, _ := json.Marshal(c.metadata)
		suffix = " " + c.color(Gray) + string(buf) + c.color(Reset)
	}
	name := level.String()
	levelText := c.color(p.level) + fmt.Sprintf("[%s]%s", name, strings.Repeat(" ", 5-len(name))) + c.color(Reset)
	line := fmt.Sprintf("%s %s%s%s%s", levelText, prefix, c.color(p.message), text, c.color(Reset)) + suffix
	ts := c.now().Format(time.RFC3339)

	c.out.mu.Lock()
	defer c.out.mu.Unlock()
	fmt.Fprintf(c.out.w, "%s %s\n", ts, line)
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, msg, args...)
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, msg, args...)
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, msg, args...)
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, msg, args...)
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
}

func (c *consoleLogger) Fatal(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
	os.Exit(1)
}

// NewConsoleLogger returns a new Logger instance which will log to stderr
func NewConsoleLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return NewWriterLogger(os.Stderr, level)
}

// NewWriterLogger returns a console formatted Logger writing to w. Colours are only
// emitted when w is a terminal.
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return &consoleLogger{
		metadata: make(map[string]interface{}),
		level:    level,
		out:      &output{w: w, color: isColorWriter(w)},
		now:      time.Now,
	}
}
