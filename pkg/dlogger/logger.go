// Package dlogger builds the zap loggers used across nest.
//
// Libraries default to a JSON logger at info level. The CLI asks for a
// console encoder writing to stderr, so that command output on stdout stays clean.
package dlogger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelInfo sets the log level to info
	LogLevelInfo = "info"

	// LogLevelDebug sets the log level to debug
	LogLevelDebug = "debug"

	// LogLevelNone disables logging altogether
	LogLevelNone = "none"

	defaultName = "nest"
)

// Option tunes the logger built by GetLogger
type Option func(*settings)

type settings struct {
	name    string
	console bool
	fields  []zap.Field
}

// WithName sets the logger name, "nest" by default
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithConsole switches to a human-readable encoding
func WithConsole(enabled bool) Option {
	return func(s *settings) {
		s.console = enabled
	}
}

// WithFields adds fields to every entry
func WithFields(fields ...zap.Field) Option {
	return func(s *settings) {
		s.fields = append(s.fields, fields...)
	}
}

// GetLogger returns a zap logger with the specified level.
//
// Entries are always written to stderr, without sampling.
func GetLogger(logLevel string, opts ...Option) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}

	s := settings{name: defaultName}
	for _, apply := range opts {
		apply(&s)
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}

	var zapConfig zap.Config
	if s.console {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Development = false
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.OutputPaths = []string{"stderr"}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.Sampling = nil

	logger, err := zapConfig.Build(zap.Fields(s.fields...))
	if err != nil {
		return nil, err
	}
	return logger.Named(s.name), nil
}

// MustGetLogger returns a zap logger with the specified level or panics
func MustGetLogger(logLevel string, opts ...Option) *zap.Logger {
	l, err := GetLogger(logLevel, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
