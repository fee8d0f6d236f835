// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the zap logger shared by all woodguard tools.
package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option adjusts the zap configuration before the logger is built.
type Option func(*zap.Config)

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
func WithLevel(level string) Option {
	return func(cfg *zap.Config) {
		cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	}
}

// WithJSON switches from the console encoder to JSON lines.
func WithJSON() Option {
	return func(cfg *zap.Config) {
		cfg.Encoding = "json"
	}
}

// WithFields attaches fields to every log line.
func WithFields(fields map[string]interface{}) Option {
	return func(cfg *zap.Config) {
		if cfg.InitialFields == nil {
			cfg.InitialFields = map[string]interface{}{}
		}
		for k, v := range fields {
			if k == "" {
				continue
			}
			cfg.InitialFields[k] = v
		}
	}
}

// New builds a logger writing to stderr.
func New(opts ...Option) (*zap.Logger, error) {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "console",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Must is New for main packages: it falls back to a bare stderr logger
// rather than running without one.
func Must(opts ...Option) *zap.Logger {
	logger, err := New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig()),
			zapcore.Lock(os.Stderr),
			zapcore.InfoLevel,
		))
	}
	return logger
}

// ParseLevel converts a level name, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     encodeTimeUTC,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func encodeTimeUTC(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}
