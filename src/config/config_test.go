package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/tmp/shots")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("FOCAL_SCALE", "1.5")
	t.Setenv("COPY_TO_CLIPBOARD", "yes")
	t.Setenv("EXPORT_DEADLINE_SEC", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.OutputDir != "/tmp/shots" {
		t.Errorf("Expected OutputDir '/tmp/shots', got '%s'", cfg.OutputDir)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true")
	}
	if cfg.Hotkey != "Ctrl+Shift+T" {
		t.Errorf("Expected Hotkey 'Ctrl+Shift+T', got '%s'", cfg.Hotkey)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.FocalScale != 1.5 {
		t.Errorf("Expected FocalScale 1.5, got %v", cfg.FocalScale)
	}
	if !cfg.CopyToClipboard {
		t.Errorf("Expected CopyToClipboard to be true")
	}
	if cfg.ExportDeadlineSec != 30 {
		t.Errorf("Expected ExportDeadlineSec 30, got %d", cfg.ExportDeadlineSec)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"OUTPUT_DIR", "HOTKEY", "ENABLE_FILE_LOGGING", "LOG_LEVEL", "FOCAL_SCALE", "COPY_TO_CLIPBOARD", "EXPORT_DEADLINE_SEC", EnvFileEnvVar} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != DefaultHotkey {
		t.Errorf("Hotkey = %q", cfg.Hotkey)
	}
	if cfg.LogLevel != DefaultLogLevel || cfg.EnableFileLogging || cfg.CopyToClipboard {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.FocalScale != 0 || cfg.ExportDeadlineSec != DefaultExportDeadline {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.OutputDir == "" || cfg.LogDir == "" {
		t.Errorf("output and log dirs must never be empty: %+v", cfg)
	}
}

func TestLoadWithOptionsOverrides(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/from/env")
	t.Setenv("FOCAL_SCALE", "2")
	t.Setenv("HOTKEY", "Alt+F1")

	cfg, err := LoadWithOptions(LoadOptions{
		OutputDirOverride:  "/from/flag",
		FocalScaleOverride: 1.25,
		HotkeyOverride:     "Ctrl+F2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputDir != "/from/flag" || cfg.FocalScale != 1.25 || cfg.Hotkey != "Ctrl+F2" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("FOCAL_SCALE", "-3")
	t.Setenv("EXPORT_DEADLINE_SEC", "soon")
	cfg, _ := Load()
	if cfg.FocalScale != 0 || cfg.ExportDeadlineSec != DefaultExportDeadline {
		t.Errorf("invalid values should fall back: %+v", cfg)
	}
}

func TestEnvFileFromVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.env")
	if err := os.WriteFile(path, []byte("LOG_DIR=/var/log/screen-select\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvFileEnvVar, path)
	t.Setenv("LOG_DIR", "")
	os.Unsetenv("LOG_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EnvPath != "" && cfg.EnvPath != path {
		// An .env next to the test binary takes precedence; nothing to check then.
		t.Skipf("executable .env found at %s", cfg.EnvPath)
	}
	if cfg.LogDir != "/var/log/screen-select" {
		t.Errorf("LogDir = %q, want value from %s", cfg.LogDir, path)
	}
	os.Unsetenv("LOG_DIR")
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in       string
		fallback bool
		want     bool
	}{
		{"TRUE", false, true},
		{"on", false, true},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		if got := parseBool(tt.in, tt.fallback); got != tt.want {
			t.Errorf("parseBool(%q, %v) = %v", tt.in, tt.fallback, got)
		}
	}
}
