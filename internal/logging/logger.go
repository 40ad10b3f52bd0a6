// Package logging wraps zap the way the rest of the pipeline expects:
// a small Logger facade, structured fields, and a console+file tee core.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a type alias for zap.Field so callers don't import zap directly.
type Field = zap.Field

// Common field constructors, re-exported so callers only import this package.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Any      = zap.Any
	ErrField = zap.Error
	Duration = zap.Duration
)

// LevelFromString converts a config-supplied level string to a zapcore.Level.
func LevelFromString(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps zap.Logger with the handful of methods the pipeline uses.
type Logger struct {
	zap *zap.Logger
}

// Config controls where and how verbosely Logger writes.
type Config struct {
	LogDir         string
	FileLevel      zapcore.Level
	ConsoleLevel   zapcore.Level
	ConsoleEnabled bool
}

// DefaultConfig returns the default logging configuration: info-level file
// logging under .handover/logs, debug-level console output.
func DefaultConfig() *Config {
	return &Config{
		LogDir:         filepath.Join(".handover", "logs"),
		FileLevel:      zapcore.InfoLevel,
		ConsoleLevel:   zapcore.DebugLevel,
		ConsoleEnabled: true,
	}
}

// New creates a Logger writing JSON lines to cfg.LogDir/handover.log and,
// when enabled, human-readable colored lines to stderr.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, err
	}

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.TimeKey = "timestamp"
	fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder := zapcore.NewJSONEncoder(fileEncoderCfg)

	logFile := filepath.Join(cfg.LogDir, "handover.log")
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fileWriter := zapcore.AddSync(file)

	var core zapcore.Core
	if cfg.ConsoleEnabled {
		consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderCfg)
		consoleWriter := zapcore.AddSync(os.Stderr)

		core = zapcore.NewTee(
			zapcore.NewCore(fileEncoder, fileWriter, cfg.FileLevel),
			zapcore.NewCore(consoleEncoder, consoleWriter, cfg.ConsoleLevel),
		)
	} else {
		core = zapcore.NewCore(fileEncoder, fileWriter, cfg.FileLevel)
	}

	return &Logger{zap: zap.New(core)}, nil
}

// Nop returns a Logger that discards everything, for tests and library use.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

// With returns a child logger that always includes the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger scoped under the given subsystem name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Sync flushes buffered log entries. Safe to call on process exit.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
