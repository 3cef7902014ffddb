package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amanuel-c/telepharm/internal/config"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Detector.Backend != "none" {
		t.Errorf("detector backend = %q, want none", cfg.Detector.Backend)
	}
	if cfg.Scheduler.Timezone != "Africa/Addis_Ababa" {
		t.Errorf("timezone = %q, want Africa/Addis_Ababa", cfg.Scheduler.Timezone)
	}
	if cfg.Analytics.ActivityWindowDays != 30 {
		t.Errorf("activity window = %d, want 30", cfg.Analytics.ActivityWindowDays)
	}
	if _, ok := cfg.Scheduler.Tasks["load_raw"]; !ok {
		t.Error("expected default load_raw task")
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log:\n  level: debug\nserver:\n  addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", cfg.Server.Addr)
	}
}

func TestLoad_InvalidBackendRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "detector:\n  backend: yolo\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unknown detector backend")
	}
}
