// Package logging provides the levelled key/value logger used across sightline.
// Every line has the shape "LEVEL: message | k=v k=v" with context fields sorted
// by key, so run logs diff cleanly between invocations.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Level represents a log level.
type Level int

const (
	// LevelDebug is for agent item dumps and actuator traces.
	LevelDebug Level = iota
	// LevelInfo is for run progress.
	LevelInfo
	// LevelWarn is for failures that do not change a run's verdict.
	LevelWarn
	// LevelError is for failures that abort a run.
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
}

// Logger writes levelled lines carrying a fixed set of context fields.
type Logger struct {
	mu       sync.RWMutex
	minLevel Level
	fields   map[string]any
	output   *log.Logger
}

var defaultLogger = New()

// New creates a Logger writing to stderr at info level.
func New() *Logger {
	return &Logger{
		minLevel: LevelInfo,
		fields:   map[string]any{},
		output:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLevel sets the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Level returns the minimum level that is written.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minLevel
}

// SetOutput redirects the logger.
func (l *Logger) SetOutput(output *log.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
}

// SetWriter redirects the logger to w without timestamps.
func (l *Logger) SetWriter(w io.Writer) {
	l.SetOutput(log.New(w, "", 0))
}

// With returns a child Logger carrying one extra field.
func (l *Logger) With(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields returns a child Logger carrying extra fields. The receiver is
// left untouched.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{minLevel: l.minLevel, fields: merged, output: l.output}
}

func (l *Logger) log(level Level, msg string, keyVals ...any) {
	l.mu.RLock()
	minLevel, output, fields := l.minLevel, l.output, l.fields
	l.mu.RUnlock()

	if level < minLevel {
		return
	}

	all := make(map[string]any, len(fields)+len(keyVals)/2)
	for k, v := range fields {
		all[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		if key, ok := keyVals[i].(string); ok {
			all[key] = keyVals[i+1]
		}
	}

	var sb strings.Builder
	sb.WriteString(level.String())
	sb.WriteString(": ")
	sb.WriteString(msg)

	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" |")
		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(formatValue(all[k]))
		}
	}

	output.Print(sb.String())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case fmt.Stringer:
		return formatValue(val.String())
	default:
		return fmt.Sprint(v)
	}
}

func (l *Logger) Debug(msg string, keyVals ...any) { l.log(LevelDebug, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...any)  { l.log(LevelInfo, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...any)  { l.log(LevelWarn, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...any) { l.log(LevelError, msg, keyVals...) }

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

// Package-level functions that use the default logger.

func SetLevel(level Level)                     { defaultLogger.SetLevel(level) }
func SetOutput(output *log.Logger)             { defaultLogger.SetOutput(output) }
func SetWriter(w io.Writer)                    { defaultLogger.SetWriter(w) }
func With(key string, value any) *Logger       { return defaultLogger.With(key, value) }
func WithFields(fields map[string]any) *Logger { return defaultLogger.WithFields(fields) }
func Debug(msg string, keyVals ...any)         { defaultLogger.Debug(msg, keyVals...) }
func Info(msg string, keyVals ...any)          { defaultLogger.Info(msg, keyVals...) }
func Warn(msg string, keyVals ...any)          { defaultLogger.Warn(msg, keyVals...) }
func Error(msg string, keyVals ...any)         { defaultLogger.Error(msg, keyVals...) }
