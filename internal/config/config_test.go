package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
listen:
  port: 9090
ollama:
  url: http://ollama.local:11434
  model: qwen3:4b
extract:
  subtitle_language: de
  whisper_model: small
data_dir: /var/lib/clipqa
log_level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Listen.Port != 9090 {
		t.Errorf("Listen.Port = %d, want 9090", cfg.Listen.Port)
	}
	if cfg.Ollama.Model != "qwen3:4b" {
		t.Errorf("Ollama.Model = %q, want qwen3:4b", cfg.Ollama.Model)
	}
	if cfg.Extract.SubtitleLanguage != "de" {
		t.Errorf("Extract.SubtitleLanguage = %q, want de", cfg.Extract.SubtitleLanguage)
	}
	if cfg.Extract.WhisperModel != "small" {
		t.Errorf("Extract.WhisperModel = %q, want small", cfg.Extract.WhisperModel)
	}
	if cfg.DataDir != "/var/lib/clipqa" {
		t.Errorf("DataDir = %q, want /var/lib/clipqa", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_DefaultsPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// A minimal config should keep defaults for everything unset.
	if err := os.WriteFile(path, []byte("listen:\n  port: 8081\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Listen.Port != 8081 {
		t.Errorf("Listen.Port = %d, want 8081", cfg.Listen.Port)
	}
	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("Ollama.URL = %q, want default", cfg.Ollama.URL)
	}
	if cfg.Extract.MaxContentChars != 50000 {
		t.Errorf("Extract.MaxContentChars = %d, want 50000", cfg.Extract.MaxContentChars)
	}
	if cfg.Extract.SubtitleLanguage != "en" {
		t.Errorf("Extract.SubtitleLanguage = %q, want en", cfg.Extract.SubtitleLanguage)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("CLIPQA_TEST_MODEL", "llama3.2:3b")
	if err := os.WriteFile(path, []byte("ollama:\n  model: ${CLIPQA_TEST_MODEL}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ollama.Model != "llama3.2:3b" {
		t.Errorf("Ollama.Model = %q, want env-expanded value", cfg.Ollama.Model)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("FindConfig() with missing explicit path should error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"  debug  ", slog.LevelDebug, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	got := ReplaceLogLevelNames(nil, a)
	if got.Value.String() != "TRACE" {
		t.Errorf("ReplaceLogLevelNames trace = %q, want TRACE", got.Value.String())
	}

	b := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(slog.LevelInfo)}
	got = ReplaceLogLevelNames(nil, b)
	if got.Value.Any().(slog.Level) != slog.LevelInfo {
		t.Errorf("ReplaceLogLevelNames should leave non-trace levels alone")
	}
}
