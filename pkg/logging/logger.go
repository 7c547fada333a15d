package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	// WithField returns a child logger that tags every entry with key=value.
	WithField(key string, value any) Logger
}

type contextKey struct{}

var (
	baseMu     sync.RWMutex
	baseLogger = newBaseLogger()
)

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debug(args ...any) {
	l.entry.Debug(args...)
}

func (l *logrusLogger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(args ...any) {
	l.entry.Info(args...)
}

func (l *logrusLogger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Error(args ...any) {
	l.entry.Error(args...)
}

func (l *logrusLogger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) Warn(args ...any) {
	l.entry.Warn(args...)
}

func (l *logrusLogger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

// Configure sets the level and output format of the shared logrus logger.
// Unknown levels fall back to info; format "json" switches to the JSON formatter.
func Configure(level string, format string) {
	baseMu.Lock()
	defer baseMu.Unlock()

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	baseLogger.SetLevel(parsed)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		baseLogger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	baseLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// WithFields stores fields on ctx so every logger created from it carries them.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	merged := logrus.Fields{}
	if existing, ok := ctx.Value(contextKey{}).(logrus.Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

func NewLogger(ctx context.Context) Logger {
	factory := GetLoggerFactory()
	if factory != nil {
		return factory.CreateLogger(ctx)
	}

	return newLogrusLogger(ctx)
}

func newLogrusLogger(ctx context.Context) Logger {
	baseMu.RLock()
	logger := baseLogger
	baseMu.RUnlock()

	entry := logger.WithContext(ctx)
	if fields, ok := ctx.Value(contextKey{}).(logrus.Fields); ok && len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	return &logrusLogger{entry: entry}
}

func newBaseLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
