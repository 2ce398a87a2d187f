// Package logger implements a minimal structured, levelled logger writing
// one JSON object per line. There is no third-party logging dependency in
// this tree's teacher lineage for this concern, so this package stays
// stdlib-only, matching that lineage exactly.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the level's name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Field is one structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool creates a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Error creates an error field, nil-safe.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}

	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any creates a field with an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// sensitiveFieldKeys never make it into a log line with their real value —
// this module handles password-authenticated key exchange, so a field
// that's misnamed "password" or "session_key" by a future caller is
// redacted rather than trusted not to happen.
var sensitiveFieldKeys = map[string]bool{
	"password":     true,
	"session_key":  true,
	"confirm_key":  true,
	"access_token": true,
}

// Logger is the interface the rest of this module logs through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	WithFields(fields ...Field) Logger
	// WithSessionID scopes every subsequent entry to a login/registration
	// session, the one piece of request-scoped state this module actually
	// threads through its call chains (server.SessionTable's UUIDs).
	WithSessionID(id string) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// StructuredLogger is the JSON-line Logger implementation.
type StructuredLogger struct {
	mu          sync.RWMutex
	level       Level
	output      io.Writer
	baseFields  []Field
	timeFormat  string
	prettyPrint bool

	throttle *throttler
}

// throttler suppresses repeat emission of the same msg within a window,
// whatever its level, so a client hammering /auth/api/login/ with a wrong
// password doesn't turn the log into one line per attempt.
type throttler struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newThrottler(window time.Duration) *throttler {
	return &throttler{window: window, seen: make(map[string]time.Time)}
}

// allow reports whether key should actually be emitted right now, given
// when it was last seen.
func (t *throttler) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[key]
	if ok && now.Sub(last) < t.window {
		return false
	}

	t.seen[key] = now

	return true
}

// New creates a logger writing to output at the given minimum level.
func New(output io.Writer, level Level) *StructuredLogger {
	return &StructuredLogger{level: level, output: output, timeFormat: time.RFC3339}
}

// NewDefault creates a logger reading its level from VERDANT_LOG_LEVEL,
// defaulting to InfoLevel, writing to stdout.
func NewDefault() *StructuredLogger {
	level := InfoLevel
	switch strings.ToUpper(os.Getenv("VERDANT_LOG_LEVEL")) {
	case "DEBUG":
		level = DebugLevel
	case "WARN":
		level = WarnLevel
	case "ERROR":
		level = ErrorLevel
	}

	return New(os.Stdout, level)
}

// SetPrettyPrint toggles indented JSON output, useful for local CLI runs.
func (l *StructuredLogger) SetPrettyPrint(pretty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prettyPrint = pretty
}

// SetThrottle enables repeat-suppression for WARN/ERROR entries sharing
// the same message within window. Disabled (the default) when window is
// zero — most deployments only want this on a server exposed to
// unauthenticated brute-force attempts.
func (l *StructuredLogger) SetThrottle(window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if window <= 0 {
		l.throttle = nil
		return
	}

	l.throttle = newThrottler(window)
}

func (l *StructuredLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *StructuredLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *StructuredLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *StructuredLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

func (l *StructuredLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields...)
	os.Exit(1)
}

// WithFields returns a child logger carrying additional base fields.
func (l *StructuredLogger) WithFields(fields ...Field) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	newFields := make([]Field, len(l.baseFields)+len(fields))
	copy(newFields, l.baseFields)
	copy(newFields[len(l.baseFields):], fields)

	return &StructuredLogger{
		level:       l.level,
		output:      l.output,
		baseFields:  newFields,
		timeFormat:  l.timeFormat,
		prettyPrint: l.prettyPrint,
		throttle:    l.throttle,
	}
}

// WithSessionID scopes a child logger to session_id, so every log line
// emitted while handling one login/registration exchange can be grepped
// out of a busy server's output without threading a context.Context
// through every call.
func (l *StructuredLogger) WithSessionID(id string) Logger {
	return l.WithFields(String("session_id", id))
}

// SetLevel sets the minimum level that will be emitted.
func (l *StructuredLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum level.
func (l *StructuredLogger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}

func (l *StructuredLogger) log(level Level, msg string, fields ...Field) {
	l.mu.RLock()
	belowLevel := level < l.level
	throttle := l.throttle
	l.mu.RUnlock()

	if belowLevel {
		return
	}

	now := time.Now()
	if throttle != nil && level >= WarnLevel && !throttle.allow(msg, now) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entry := make(map[string]interface{}, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = now.Format(l.timeFormat)
	entry["level"] = level.String()
	entry["message"] = msg

	if pc, file, line, ok := runtime.Caller(2); ok {
		entry["caller"] = fmt.Sprintf("%s:%d", file, line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			entry["function"] = fn.Name()
		}
	}

	for _, f := range l.baseFields {
		setEntryField(entry, f)
	}
	for _, f := range fields {
		setEntryField(entry, f)
	}

	var data []byte
	var err error
	if l.prettyPrint {
		data, err = json.MarshalIndent(entry, "", "  ")
	} else {
		data, err = json.Marshal(entry)
	}

	if err != nil {
		fmt.Fprintf(l.output, `{"level":"ERROR","message":"failed to marshal log entry","error":"%v"}`+"\n", err)
		return
	}

	fmt.Fprintf(l.output, "%s\n", data)
}

func setEntryField(entry map[string]interface{}, f Field) {
	if sensitiveFieldKeys[f.Key] {
		entry[f.Key] = "[redacted]"
		return
	}

	entry[f.Key] = f.Value
}

var defaultLogger Logger = NewDefault()

// SetDefault replaces the package-level default logger.
func SetDefault(l Logger) { defaultLogger = l }

// Default returns the package-level default logger.
func Default() Logger { return defaultLogger }

func Debug(msg string, fields ...Field)    { defaultLogger.Debug(msg, fields...) }
func Info(msg string, fields ...Field)     { defaultLogger.Info(msg, fields...) }
func Warn(msg string, fields ...Field)     { defaultLogger.Warn(msg, fields...) }
func ErrorMsg(msg string, fields ...Field) { defaultLogger.Error(msg, fields...) }
func Fatal(msg string, fields ...Field)    { defaultLogger.Fatal(msg, fields...) }
