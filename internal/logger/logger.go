// Package logger provides structured, module-aware logging for FallWatch.
//
// All packages obtain their logger from the central logger:
//
//	log := logger.Global().Module("capture")
//	log.Info("camera connected", logger.String("source", "rtsp"))
//
// Fields are typed through the constructor helpers (String, Int, Float64,
// Error, ...) so call sites never build key/value slices by hand. The
// central logger routes records to a human readable console handler and,
// when enabled, a JSON file handler. Per-module levels allow turning on
// verbose output for a single subsystem, e.g. "datastore: trace" to see
// every SQL statement.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel is a textual log level as used in configuration files.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field is a single structured key/value pair attached to a log record.
type Field struct {
	Key   string
	Value any
}

// internKey deduplicates field keys; the same handful of keys is used on every frame.
func internKey(key string) string {
	return unique.Make(key).Value()
}

var errorKey = internKey("error")

// Logger is the logging interface used throughout the application.
type Logger interface {
	// Module returns a logger scoped to a sub-module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every record
	With(fields ...Field) Logger
	// WithContext returns a logger carrying values from ctx, such as the trace id
	WithContext(ctx context.Context) Logger

	// Log writes a record at an explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures buffered records are written
	Flush() error
}

func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: internKey(key), Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an "error" field. A nil error produces a nil value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value}
}

func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
