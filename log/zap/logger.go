/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package zap

import (
	"github.com/jabberwock-im/jabberwock/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger represents a zap backed logger implementation.
type Logger struct {
	lg       *zap.Logger
	sgLogger *zap.SugaredLogger
}

// NewLogger creates an initialized zap logger instance writing to
// standard output and, optionally, to an additional output path.
func NewLogger(level log.Level, outputPath string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	outputPaths := []string{"stdout"}
	if len(outputPath) > 0 {
		outputPaths = append(outputPaths, outputPath)
	}
	cfg.OutputPaths = outputPaths

	logger, _ := cfg.Build()
	return &Logger{
		lg:       logger,
		sgLogger: logger.Sugar(),
	}
}

func zapLevel(level log.Level) zapcore.Level {
	switch level {
	case log.DebugLevel:
		return zap.DebugLevel
	case log.InfoLevel:
		return zap.InfoLevel
	case log.WarningLevel:
		return zap.WarnLevel
	case log.ErrorLevel:
		return zap.ErrorLevel
	case log.OffLevel:
		return zap.FatalLevel
	}
	return zap.InfoLevel
}

// Debugf uses fmt.Sprintf to log a 'debug' templated message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sgLogger.Debugf(format, args...)
}

// Infof uses fmt.Sprintf to log an 'info' templated message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sgLogger.Infof(format, args...)
}

// Warnf uses fmt.Sprintf to log a 'warn' templated message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sgLogger.Warnf(format, args...)
}

// Errorf uses fmt.Sprintf to log an 'error' templated message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sgLogger.Errorf(format, args...)
}

// Fatalf uses fmt.Sprintf to log a 'fatal' templated message.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.sgLogger.Fatalf(format, args...)
}

// Debugw writes a 'debug' message with some additional context.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sgLogger.Debugw(msg, keysAndValues...)
}

// Infow writes an 'info' message with some additional context.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sgLogger.Infow(msg, keysAndValues...)
}

// Warnw writes a 'warning' message with some additional context.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sgLogger.Warnw(msg, keysAndValues...)
}

// Errorw writes an 'error' message with some additional context.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sgLogger.Errorw(msg, keysAndValues...)
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.lg.Sync()
}
