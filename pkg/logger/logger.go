// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DebugLevel is the debug log level, i.e. the most verbose.
	DebugLevel = "debug"
	// InfoLevel is the default log level.
	InfoLevel = "info"
	// ErrorLevel is a log level where only errors are logged.
	ErrorLevel = "error"

	// FormatJSON is the output type that produces a JSON object per log line.
	FormatJSON = "json"
	// FormatText outputs the log as human-readable text.
	FormatText = "text"
)

// MustNewZapLogger is like NewZapLogger but panics on invalid input.
func MustNewZapLogger(level string, format string, additionalOpts ...zap.Option) logr.Logger {
	logger, err := NewZapLogger(level, format, additionalOpts...)
	if err != nil {
		panic(err)
	}
	return logger
}

// NewZapLogger creates a new logr.Logger backed by zap.
func NewZapLogger(level string, format string, additionalOpts ...zap.Option) (logr.Logger, error) {
	var zapLevel zapcore.LevelEnabler
	switch level {
	case DebugLevel:
		zapLevel = zap.DebugLevel
	case "", InfoLevel:
		zapLevel = zap.InfoLevel
	case ErrorLevel:
		zapLevel = zap.ErrorLevel
	default:
		return logr.Discard(), fmt.Errorf("invalid log level %q", level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	switch format {
	case "", FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatText:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return logr.Discard(), fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapLevel)
	opts := append([]zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}, additionalOpts...)

	return zapr.NewLogger(zap.New(core, opts...)), nil
}
