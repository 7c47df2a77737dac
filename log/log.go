/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package log

import (
	"sync"
)

// Logger defines the common logging surface used across the server.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Close() error
}

var (
	mu   sync.RWMutex
	inst Logger
)

// Set sets the package global logger instance.
func Set(logger Logger) {
	mu.Lock()
	inst = logger
	mu.Unlock()
}

// Unset clears the global logger instance, closing the previous one if set.
func Unset() {
	mu.Lock()
	if inst != nil {
		_ = inst.Close()
	}
	inst = nil
	mu.Unlock()
}

func instance() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return inst
}

// Debugf logs a 'debug' formatted message.
func Debugf(format string, args ...interface{}) {
	if l := instance(); l != nil {
		l.Debugf(format, args...)
	}
}

// Infof logs an 'info' formatted message.
func Infof(format string, args ...interface{}) {
	if l := instance(); l != nil {
		l.Infof(format, args...)
	}
}

// Warnf logs a 'warning' formatted message.
func Warnf(format string, args ...interface{}) {
	if l := instance(); l != nil {
		l.Warnf(format, args...)
	}
}

// Errorf logs an 'error' formatted message.
func Errorf(format string, args ...interface{}) {
	if l := instance(); l != nil {
		l.Errorf(format, args...)
	}
}

// Error logs an error value.
func Error(err error) {
	if l := instance(); l != nil {
		l.Errorf("%v", err)
	}
}

// Fatalf logs a 'fatal' formatted message. Application will terminate after logging.
func Fatalf(format string, args ...interface{}) {
	if l := instance(); l != nil {
		l.Fatalf(format, args...)
	}
}

// Debugw logs a 'debug' message with some additional context.
func Debugw(msg string, keysAndValues ...interface{}) {
	if l := instance(); l != nil {
		l.Debugw(msg, keysAndValues...)
	}
}

// Infow logs an 'info' message with some additional context.
func Infow(msg string, keysAndValues ...interface{}) {
	if l := instance(); l != nil {
		l.Infow(msg, keysAndValues...)
	}
}

// Warnw logs a 'warning' message with some additional context.
func Warnw(msg string, keysAndValues ...interface{}) {
	if l := instance(); l != nil {
		l.Warnw(msg, keysAndValues...)
	}
}

// Errorw logs an 'error' message with some additional context.
func Errorw(msg string, keysAndValues ...interface{}) {
	if l := instance(); l != nil {
		l.Errorw(msg, keysAndValues...)
	}
}
