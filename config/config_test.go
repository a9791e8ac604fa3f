package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("Load(\"\") = %+v, want %+v", cfg, want)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file returned error: %v", err)
	}
	if cfg.Scheduler.Name != Default().Scheduler.Name {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fiberd.yaml")
	yaml := "scheduler:\n  name: custom\n  threads: 8\n  use_caller: false\nlogging:\n  level: debug\n  json: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Name != "custom" || cfg.Scheduler.Threads != 8 || cfg.Scheduler.UseCaller {
		t.Fatalf("yaml overrides not applied: %+v", cfg.Scheduler)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Fatalf("yaml logging overrides not applied: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("FIBERD_SCHEDULER_THREADS", "16")
	t.Setenv("FIBERD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Threads != 16 {
		t.Fatalf("env override for threads not applied: %+v", cfg.Scheduler)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("env override for log level not applied: %+v", cfg.Logging)
	}
}

func TestLoadRejectsZeroThreads(t *testing.T) {
	t.Setenv("FIBERD_SCHEDULER_THREADS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for threads=0, got nil")
	}
}
