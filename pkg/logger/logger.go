// Package logger provides the leveled structured logger shared by all nopo
// CI tooling. Lines are single-line and grep-friendly: a bracketed UTC
// timestamp, the upper-cased level, the message, and an optional compact
// JSON context payload.
//
// Debug and info lines go to the standard output sink, warn and error lines
// to the standard error sink, so shell redirection can separate diagnostic
// noise from operational errors.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level is an ordered log severity. Higher values are more severe.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// timestampLayout renders ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ParseLevel converts a level name into a Level. It accepts the four level
// names case-insensitively, plus "warning" as an alias for "warn".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level '%s', use debug, info, warn, or error", s)
	}
}

// Logger emits leveled log lines to a pair of output sinks. The minimum
// level is stored atomically so concurrent callers observe a consistent
// threshold; the last write wins.
type Logger struct {
	level atomic.Int32
	out   io.Writer // debug, info
	err   io.Writer // warn, error
}

// New returns a Logger writing debug/info lines to out and warn/error lines
// to err. The initial minimum level is info.
func New(out, err io.Writer) *Logger {
	l := &Logger{out: out, err: err}
	l.level.Store(int32(LevelInfo))
	return l
}

// SetLevel replaces the minimum level. It affects all subsequent calls.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// Debug logs a message at debug level with optional structured context.
func (l *Logger) Debug(message string, context ...map[string]any) {
	l.log(LevelDebug, message, context)
}

// Info logs a message at info level with optional structured context.
func (l *Logger) Info(message string, context ...map[string]any) {
	l.log(LevelInfo, message, context)
}

// Warn logs a message at warn level with optional structured context.
func (l *Logger) Warn(message string, context ...map[string]any) {
	l.log(LevelWarn, message, context)
}

// Error logs a message at error level with optional structured context.
func (l *Logger) Error(message string, context ...map[string]any) {
	l.log(LevelError, message, context)
}

// log performs the threshold check, formats the entry, and writes exactly
// one line to the sink for the level. A filtered call returns before any
// formatting work happens.
func (l *Logger) log(level Level, message string, context []map[string]any) {
	if level < l.Level() {
		return
	}

	line := "[" + time.Now().UTC().Format(timestampLayout) + "] [" + strings.ToUpper(level.String()) + "] " + message

	if fields := mergeContext(context); len(fields) > 0 {
		payload, err := json.Marshal(fields)
		if err != nil {
			// Malformed context is a caller error; the logger still must not
			// become a second source of failure, so the error text stands in
			// for the payload.
			payload = fmt.Appendf(nil, `{"logger_context_error":%q}`, err.Error())
		}
		line += " " + string(payload)
	}

	w := l.out
	if level >= LevelWarn {
		w = l.err
	}
	fmt.Fprintln(w, line)
}

// mergeContext flattens the variadic context maps into one. Later maps win
// on key collisions. Returns nil when no entries are present.
func mergeContext(context []map[string]any) map[string]any {
	var merged map[string]any
	for _, m := range context {
		for k, v := range m {
			if merged == nil {
				merged = make(map[string]any, len(m))
			}
			merged[k] = v
		}
	}
	return merged
}

// std is the process-wide default logger bound to the real stdout/stderr.
var std = New(os.Stdout, os.Stderr)

// SetLogLevel replaces the process-wide minimum level for the default logger.
func SetLogLevel(level Level) { std.SetLevel(level) }

// GetLogLevel returns the process-wide minimum level of the default logger.
func GetLogLevel() Level { return std.Level() }

// Debug logs to the default logger at debug level.
func Debug(message string, context ...map[string]any) { std.Debug(message, context...) }

// Info logs to the default logger at info level.
func Info(message string, context ...map[string]any) { std.Info(message, context...) }

// Warn logs to the default logger at warn level.
func Warn(message string, context ...map[string]any) { std.Warn(message, context...) }

// Error logs to the default logger at error level.
func Error(message string, context ...map[string]any) { std.Error(message, context...) }
