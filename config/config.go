// Package config loads fiberd's runtime configuration from a YAML
// file, with every field except scheduler.stack_size overridable by
// an environment variable.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Scheduler configures one fiberd scheduler instance.
type Scheduler struct {
	// Name tags log lines, audit records, and worker thread names.
	Name string `yaml:"name"`
	// Threads is the total worker count, including the caller slot
	// when UseCaller is true.
	Threads int `yaml:"threads"`
	// UseCaller lets the constructing goroutine participate as a
	// worker instead of only submitting work.
	UseCaller bool `yaml:"use_caller"`
	// StackSize is the advisory per-fiber stack size. It is loaded
	// from YAML only and is not passed to the runtime: fibers record
	// runtime.DefaultStackSize, and the value would have no mechanical
	// effect on Go's runtime-managed goroutine stacks in any case.
	StackSize int `yaml:"stack_size"`
	// Notifier selects the idle-wait strategy: "busy" (default, spin)
	// or "channel" (block between tickles).
	Notifier string `yaml:"notifier"`
}

// Logging configures the package-wide zerolog logger.
type Logging struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`  // structured JSON instead of console writer
}

// Config is fiberd's top-level configuration document.
type Config struct {
	Scheduler Scheduler `yaml:"scheduler"`
	Logging   Logging   `yaml:"logging"`
}

// Default returns the configuration fiberd runs with absent any file
// or environment overrides.
func Default() Config {
	return Config{
		Scheduler: Scheduler{
			Name:      "fiberd",
			Threads:   runtime.NumCPU(),
			UseCaller: false,
			StackSize: 128 * 1024,
			Notifier:  "busy",
		},
		Logging: Logging{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads path (if non-empty and present) over Default(), then
// applies FIBERD_* environment overrides. A missing path is not an
// error: fiberd is expected to run with zero configuration files
// present, falling back to Default() and the environment alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, uerr)
			}
		case os.IsNotExist(err):
			// fall through to defaults + env
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Scheduler.Threads < 1 {
		return Config{}, fmt.Errorf("config: scheduler.threads must be >= 1, got %d", cfg.Scheduler.Threads)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FIBERD_SCHEDULER_NAME"); v != "" {
		cfg.Scheduler.Name = v
	}
	if v := os.Getenv("FIBERD_SCHEDULER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.Threads = n
		}
	}
	if v := os.Getenv("FIBERD_SCHEDULER_USE_CALLER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scheduler.UseCaller = b
		}
	}
	if v := os.Getenv("FIBERD_SCHEDULER_NOTIFIER"); v != "" {
		cfg.Scheduler.Notifier = v
	}
	if v := os.Getenv("FIBERD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FIBERD_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.JSON = b
		}
	}
}
