// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps Zap with context-aware methods and owns the session file.
type Logger struct {
	zap       *zap.Logger
	config    *Config
	sessionID string
	path      string
	file      *os.File
}

// NewLogger creates a logger from config. When cfg.Dir is set, entries are
// written as newline-delimited JSON to a fresh session file under it.
func NewLogger(cfg *Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sessionID := uuid.NewString()[:8]

	cores := make([]zapcore.Core, 0, 2)
	var file *os.File
	var path string

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		name := fmt.Sprintf("session_%s_%s.log", time.Now().Format("20060102-150405"), sessionID)
		path = filepath.Join(cfg.Dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open session log: %w", err)
		}
		file = f

		encoder, err := newEncoder("json", cfg.Redaction)
		if err != nil {
			file.Close()
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), cfg.Level))
	}

	if cfg.Stderr {
		encoder, err := newEncoder("console", cfg.Redaction)
		if err != nil {
			if file != nil {
				file.Close()
			}
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), cfg.Level))
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	opts := []zap.Option{}
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}

	zapLogger := zap.New(core, opts...)

	fields := make([]zap.Field, 0, len(cfg.Fields)+1)
	fields = append(fields, zap.String("session_id", sessionID))
	for k, v := range cfg.Fields {
		fields = append(fields, zap.String(k, v))
	}
	zapLogger = zapLogger.With(fields...)

	return &Logger{
		zap:       zapLogger,
		config:    cfg,
		sessionID: sessionID,
		path:      path,
		file:      file,
	}, nil
}

// newEncoder creates a JSON or console encoder wrapped with redaction.
func newEncoder(format string, redaction RedactionConfig) (zapcore.Encoder, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = encodeLevel

	var base zapcore.Encoder
	if format == "console" {
		base = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		base = zapcore.NewJSONEncoder(encoderCfg)
	}
	return NewRedactingEncoder(base, redaction)
}

// encodeLevel renders TraceLevel as "trace" instead of zap's Level(-2).
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// SessionID returns the short identifier embedded in every entry and
// in the session file name.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Path returns the session log file path, or "" when the file sink is off.
func (l *Logger) Path() string {
	return l.path
}

// Context-aware logging methods

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	if l.Enabled(TraceLevel) {
		allFields := append(ContextFields(ctx), fields...)
		l.zap.Log(TraceLevel, msg, allFields...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	allFields := append(ContextFields(ctx), fields...)
	l.zap.Debug(msg, allFields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	allFields := append(ContextFields(ctx), fields...)
	l.zap.Info(msg, allFields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	allFields := append(ContextFields(ctx), fields...)
	l.zap.Warn(msg, allFields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	allFields := append(ContextFields(ctx), fields...)
	l.zap.Error(msg, allFields...)
}

func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	allFields := append(ContextFields(ctx), fields...)
	l.zap.Fatal(msg, allFields...)
}

// Child logger creation

func (l *Logger) With(fields ...zap.Field) *Logger {
	child := *l
	child.zap = l.zap.With(fields...)
	return &child
}

func (l *Logger) Named(name string) *Logger {
	child := *l
	child.zap = l.zap.Named(name)
	return &child
}

// Tee returns a logger that duplicates every entry into core. The MCP
// server uses this to bridge entries onto the notification channel.
func (l *Logger) Tee(core zapcore.Core) *Logger {
	child := *l
	child.zap = l.zap.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
	return &child
}

// Enabled returns true if the given level is enabled.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	// Ignore sync errors on terminal devices (common on Linux)
	if err != nil && isTerminalSyncError(err) {
		return nil
	}
	return err
}

// Close flushes and closes the session file. Safe to call once at exit.
func (l *Logger) Close() error {
	syncErr := l.Sync()
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return err
		}
	}
	return syncErr
}

// Underlying returns the underlying zap.Logger.
// Useful when integrating with libraries that require a *zap.Logger.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// isTerminalSyncError checks if error is a harmless stderr sync error.
// On Linux, syncing a terminal returns EINVAL or ENOTTY.
func isTerminalSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
