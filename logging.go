// Package-level structured logging, built on github.com/joeycumines/logiface
// with the logrus backend (github.com/joeycumines/logiface-logrus) wired by
// default. A Runtime logs scheduling lifecycle events (spawn, couple,
// decouple, exit) at Debug/Trace so they are silent unless a caller opts
// in; a suspected livelock is logged at Warning and a panicking task body
// at error level.
package cotask

import (
	"sync"

	"github.com/joeycumines/logiface"
	ilogrus "github.com/joeycumines/logiface-logrus"
	"github.com/sirupsen/logrus"
)

// Logger is the structured logging facade used throughout this package. It
// is a thin alias so callers need not import logiface directly just to
// pass a *Runtime a logger.
type Logger = logiface.Logger[*ilogrus.Event]

var (
	globalLogger struct {
		sync.RWMutex
		logger *Logger
	}
)

// SetStructuredLogger installs the package-level default logger, used by
// any Runtime that was not given one explicitly via WithLogger.
func SetStructuredLogger(l *Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

// getGlobalLogger returns the package-level default logger, or a disabled
// no-op logger if none has been installed.
func getGlobalLogger() *Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return noopLogger()
}

// NewLogrusLogger builds a Logger backed by a *logrus.Logger, for use with
// SetStructuredLogger or WithLogger.
func NewLogrusLogger(backend *logrus.Logger, level logiface.Level) *Logger {
	return ilogrus.L.New(
		ilogrus.L.WithLogrus(backend),
		ilogrus.L.WithLevel(level),
	)
}

var (
	noopOnce sync.Once
	noop     *Logger
)

// noopLogger returns a Logger with no backend attached, so every Log call
// is a cheap no-op (logiface.ErrDisabled path).
func noopLogger() *Logger {
	noopOnce.Do(func() {
		noop = ilogrus.L.New()
	})
	return noop
}

func (rt *Runtime) logger() *Logger {
	if rt.cfg.logger != nil {
		return rt.cfg.logger
	}
	return getGlobalLogger()
}
