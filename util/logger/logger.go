package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	defaultMu    sync.Mutex
	defaultLevel = INFO
	defaultCore  zapcore.Core
)

// SetDefaultLevel sets the level used by loggers created after this call.
func SetDefaultLevel(level LogLevel) {
	defaultMu.Lock()
	defaultLevel = level
	defaultMu.Unlock()
}

func baseCore() (zapcore.Core, LogLevel) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCore == nil {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		// Filtering happens in each Logger's AtomicLevel.
		defaultCore = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(stdout{})), zapcore.DebugLevel)
	}
	return defaultCore, defaultLevel
}

// Logger represents a logger with configurable log level
type Logger struct {
	level  zap.AtomicLevel
	prefix string
	sugar  *zap.SugaredLogger
}

// NewLogger creates a new Logger instance with the default level (INFO unless
// changed by SetDefaultLevel)
func NewLogger(prefix string) *Logger {
	core, level := baseCore()
	return NewLoggerWithCore(prefix, core, level)
}

// NewLoggerWithCore creates a Logger writing to the given zap core. Mostly useful in
// tests together with zaptest/observer.
func NewLoggerWithCore(prefix string, core zapcore.Core, level LogLevel) *Logger {
	atomicLevel := zap.NewAtomicLevelAt(level.zapLevel())
	filtered := &levelCore{Core: core, level: atomicLevel}
	zl := zap.New(filtered)
	if prefix != "" {
		zl = zl.Named(prefix)
	}
	return &Logger{
		level:  atomicLevel,
		prefix: prefix,
		sugar:  zl.Sugar(),
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	case zapcore.FatalLevel:
		return FATAL
	default:
		return INFO
	}
}

// Prefix returns the logger name
func (l *Logger) Prefix() string {
	return l.prefix
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Fatalf logs a fatal message and exits the program
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// levelCore gates a shared core with a per-logger level.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
