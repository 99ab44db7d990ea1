// Package logging provides structured logging for the client subsystem.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// UserIDKey is the context key carrying the authenticated user id.
	UserIDKey contextKey = "user_id"

	// RoleKey is the context key carrying the authenticated role name.
	RoleKey contextKey = "role"
)

// Logger wraps a logrus entry with context-aware field helpers.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the given component at info level.
func New(component string) *Logger {
	return NewWithLevel(component, "info")
}

// NewWithLevel creates a logger for the given component. Unknown level
// strings fall back to info.
func NewWithLevel(component, level string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(parsed)
	}
	return &Logger{entry: l.WithField("component", component)}
}

// Discard returns a logger that drops everything. Used as the nil
// fallback in component constructors and in tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithContext attaches user identity fields found in the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	entry := l.entry
	if v, ok := ctx.Value(UserIDKey).(string); ok && v != "" {
		entry = entry.WithField("user_id", v)
	}
	if v, ok := ctx.Value(RoleKey).(string); ok && v != "" {
		entry = entry.WithField("role", v)
	}
	return &Logger{entry: entry}
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// WithField attaches a single field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields attaches multiple fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }

// OrDiscard returns the logger itself, or a discarding logger when nil.
// Component constructors call this so a nil logger is always safe.
func (l *Logger) OrDiscard() *Logger {
	if l == nil {
		return Discard()
	}
	return l
}
