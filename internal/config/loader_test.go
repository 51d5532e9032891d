package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadHelpRequested(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load([]string{"--help"}); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("expected ErrHelpRequested, got %v", err)
	}
	if _, err := loader.Load(nil); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("expected ErrHelpRequested for empty args, got %v", err)
	}
}

func TestLoadFlagsOnly(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load([]string{
		"--target", "http://example.com/api",
		"--method", "post",
		"--users", "25",
		"--duration", "90s",
		"--max-rps", "250",
		"--auth-token", "abc123",
		"--header", "X-Trace=on",
		"--header", "Accept=application/json",
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TargetURL != "http://example.com/api" {
		t.Errorf("target = %q", cfg.TargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("method = %q, want POST", cfg.Method)
	}
	if cfg.ConcurrentUsers != 25 {
		t.Errorf("users = %d", cfg.ConcurrentUsers)
	}
	if cfg.Duration != 90*time.Second {
		t.Errorf("duration = %s", cfg.Duration)
	}
	if cfg.MaxRPS != 250 {
		t.Errorf("max rps = %d", cfg.MaxRPS)
	}
	if cfg.AuthToken != "abc123" {
		t.Errorf("auth token = %q", cfg.AuthToken)
	}
	if cfg.Headers["X-Trace"] != "on" || cfg.Headers["Accept"] != "application/json" {
		t.Errorf("headers = %v", cfg.Headers)
	}
}

func TestLoadDefaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load([]string{"--target", "http://example.com"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ConcurrentUsers != 10 || cfg.Duration != 60*time.Second || cfg.MaxRPS != 100 {
		t.Errorf("unexpected defaults: users=%d duration=%s rps=%d",
			cfg.ConcurrentUsers, cfg.Duration, cfg.MaxRPS)
	}
	if cfg.Engine != EngineAuto {
		t.Errorf("engine = %q, want auto", cfg.Engine)
	}
	if cfg.Profile != ProfileSteadyState {
		t.Errorf("profile = %q, want steady_state", cfg.Profile)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %s", cfg.Timeout)
	}
}

func TestLoadConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := []byte(`
target: http://file.example.com
method: PUT
users: 40
duration: 2m
max_rps: 500
profile: ramp_up
profile_params:
  initial_users: 5
  target_users: 40
  ramp_duration: 30s
  hold_duration: 90s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--users", "80"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TargetURL != "http://file.example.com" {
		t.Errorf("target = %q", cfg.TargetURL)
	}
	if cfg.ConcurrentUsers != 80 {
		t.Errorf("flag override lost: users = %d, want 80", cfg.ConcurrentUsers)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("duration = %s", cfg.Duration)
	}
	if cfg.Profile != ProfileRampUp {
		t.Errorf("profile = %q", cfg.Profile)
	}
	if cfg.ProfileParams.TargetUsers != 40 || cfg.ProfileParams.RampDuration != 30*time.Second {
		t.Errorf("profile params = %+v", cfg.ProfileParams)
	}
}

func TestLoadRejectsMalformedHeader(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load([]string{"--target", "http://x", "--header", "nodelimiter"}); err == nil {
		t.Fatal("expected error for malformed header")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load([]string{"--config", "/nonexistent/cfg.yaml"}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
