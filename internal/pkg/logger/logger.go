package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity of a log entry.
type Level = zapcore.Level

const (
	DEBUG = zapcore.DebugLevel
	INFO  = zapcore.InfoLevel
	WARN  = zapcore.WarnLevel
	ERROR = zapcore.ErrorLevel
)

// Config controls where and how the default logger writes.
type Config struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`  // human-readable encoder instead of JSON
	File       string `yaml:"file"`     // optional rotated log file, stderr is always written
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	RedactPII  *bool  `yaml:"redact_pii"`
}

// Logger provides structured logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	level     zap.AtomicLevel
	base      *zap.SugaredLogger
	redactPII bool
}

var defaultLogger = newLogger(zapcore.AddSync(os.Stderr), false)

func newLogger(w zapcore.WriteSyncer, console bool) *Logger {
	lvl := zap.NewAtomicLevelAt(INFO)
	return &Logger{
		level:     lvl,
		base:      zap.New(zapcore.NewCore(encoder(console), w, lvl)).Sugar(),
		redactPII: true,
	}
}

func encoder(console bool) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if console {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Init rebuilds the default logger from cfg.
func Init(cfg Config) error {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		lvl = INFO
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}))
	}

	l := newLogger(zapcore.NewMultiWriteSyncer(sinks...), cfg.Console)
	l.level.SetLevel(lvl)
	if cfg.RedactPII != nil {
		l.redactPII = *cfg.RedactPII
	}

	defaultLogger.mu.Lock()
	defaultLogger.base = l.base
	defaultLogger.level = l.level
	defaultLogger.redactPII = l.redactPII
	defaultLogger.mu.Unlock()
	return nil
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.RLock()
	defaultLogger.level.SetLevel(l)
	defaultLogger.mu.RUnlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	return defaultLogger.base.Sync()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	base, redact := l.base, l.redactPII
	l.mu.RUnlock()

	if !base.Desugar().Core().Enabled(level) {
		return
	}

	// Parse key-value pairs from fields
	kv := make([]interface{}, 0, len(fields))
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		if s, ok := val.(string); ok && redact {
			val = redactPIIValue(key, s)
		}
		kv = append(kv, key, val)
	}

	switch level {
	case DEBUG:
		base.Debugw(msg, kv...)
	case INFO:
		base.Infow(msg, kv...)
	case WARN:
		base.Warnw(msg, kv...)
	default:
		base.Errorw(msg, kv...)
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	// Relay logins are mailbox addresses
	if strings.Contains(key, "email") || key == "user" || key == "login" {
		if strings.Contains(val, "@") {
			return RedactEmail(val)
		}
		return val
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
