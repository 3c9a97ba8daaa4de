package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_TO_FILE", "")
	t.Setenv("LOG_FORMAT", "yaml")
	t.Setenv("LOG_FILE", "")
	s := settingsFromEnv()
	if s.level != zapcore.WarnLevel {
		t.Fatalf("level = %v", s.level)
	}
	if s.toFile {
		t.Fatal("file output should default off")
	}
	if s.format != "legacy" || !s.caller {
		t.Fatalf("format = %q caller = %v", s.format, s.caller)
	}
	if s.file != filepath.Join("logs", "arena.log") {
		t.Fatalf("file = %q", s.file)
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	l, err := build(settings{level: zapcore.InfoLevel, toFile: true, format: "json", file: path})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	l.Debug("hidden")
	l.Info("session_create", zap.String("session_id", "s1"))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, `"msg":"session_create"`) || !strings.Contains(out, `"session_id":"s1"`) {
		t.Fatalf("log = %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry leaked: %s", out)
	}
}

func TestReplace(t *testing.T) {
	l := zap.NewExample()
	restore := Replace(l)
	if L() != l {
		t.Fatal("logger not replaced")
	}
	restore()
	if L() == l {
		t.Fatal("logger not restored")
	}
}
