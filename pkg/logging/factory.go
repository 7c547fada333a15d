package logging

import (
	"context"
	"sync"
)

// LoggerFactory lets an embedding application route pipeline logs into its own sink.
type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

// FactoryFunc adapts a plain function to LoggerFactory.
type FactoryFunc func(ctx context.Context) Logger

func (f FactoryFunc) CreateLogger(ctx context.Context) Logger {
	return f(ctx)
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory
)

// SetLoggerFactory installs factory; nil restores the logrus default.
func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}
