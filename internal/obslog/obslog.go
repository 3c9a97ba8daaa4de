package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L returns the process logger. It is a no-op logger until InitFromEnv runs.
func L() *zap.Logger { return global.Load() }

// Replace swaps the process logger and returns a func restoring the old one.
func Replace(l *zap.Logger) func() {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() { _ = L().Sync() }

type settings struct {
	level   zapcore.Level
	console bool
	toFile  bool
	caller  bool
	format  string
	file    string
}

func settingsFromEnv() settings {
	s := settings{
		level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		console: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		toFile:  strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true"),
		caller:  strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		format:  strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
		file:    strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "arena.log"))),
	}
	switch s.format {
	case "legacy", "json", "console":
	default:
		s.format = "legacy"
	}
	if s.format == "legacy" {
		s.caller = true
	}
	return s
}

// InitFromEnv builds the process logger from LOG_* variables.
func InitFromEnv() error {
	l, err := build(settingsFromEnv())
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

func build(s settings) (*zap.Logger, error) {
	var cores []zapcore.Core
	if s.console {
		cores = append(cores, zapcore.NewCore(encoderFor(s.format), zapcore.AddSync(os.Stdout), s.level))
	}
	if s.toFile {
		if err := ensureDir(filepath.Dir(s.file)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(s.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(s.format), zapcore.AddSync(f), s.level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), s.level))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if s.caller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(legacyEncoderConfig())
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// legacy: "2006-01-02 15:04:05 | INFO | caller | msg | {fields}"
func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
