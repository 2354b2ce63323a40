// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging keyed by component, client and request.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	zl *zap.Logger
}

// New creates a new Logger for the specified component. Level is read from
// SPP_LOG_LEVEL (debug, info, warn, error); default is info.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		parseLevel(os.Getenv("SPP_LOG_LEVEL")),
	)

	zl := zap.New(core).With(
		zap.String("component", component),
		zap.String("instance_id", instanceID),
		zap.String("container", container),
	)

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		zl:         zl,
	}
}

// NewWithZap wraps an existing zap logger. Tests pass zap.NewNop().
func NewWithZap(component string, zl *zap.Logger) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{
		Component:  component,
		InstanceID: "unknown",
		Container:  "unknown",
		zl:         zl.With(zap.String("component", component)),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return NewWithZap("nop", zap.NewNop())
}

// Named returns a child logger for a sub-component sharing the same sink.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Component:  component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		zl:         l.zl.With(zap.String("subcomponent", component)),
	}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// Log writes a structured entry at the given level.
func (l *Logger) Log(level LogLevel, clientID, requestID, message string, fields map[string]interface{}) {
	zf := make([]zap.Field, 0, len(fields)+2)
	if clientID != "" {
		zf = append(zf, zap.String("client_id", clientID))
	}
	if requestID != "" {
		zf = append(zf, zap.String("request_id", requestID))
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}

	switch level {
	case DEBUG:
		l.zl.Debug(message, zf...)
	case WARN:
		l.zl.Warn(message, zf...)
	case ERROR:
		l.zl.Error(message, zf...)
	default:
		l.zl.Info(message, zf...)
	}
}

// Info logs an informational message
func (l *Logger) Info(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, clientID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, clientID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, clientID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, clientID, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(clientID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(clientID, requestID, message, fields)
}

// ErrorWithCode logs an error with status code. The error text is sanitized.
func (l *Logger) ErrorWithCode(clientID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = SanitizeError(err)
	}
	l.Error(clientID, requestID, message, fields)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
