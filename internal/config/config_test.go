package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "JWT_SECRET", "REMOTE_DSN", "LOCAL_DSN", "REDIS_URL", "DEBOUNCE",
		"REMOTE_MAX_ATTEMPTS", "REMOTE_MAX_DELAY", "LOCAL_QUOTA_BYTES", "REMINDER_CHECK_INTERVAL",
		"NUDGE_TIME", "BRAINBOUNCE_CONFIG",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Debounce != defaultDebounce {
		t.Fatalf("Debounce = %v, want %v", cfg.Debounce, defaultDebounce)
	}
	if cfg.RemoteMaxAttempts != 3 {
		t.Fatalf("RemoteMaxAttempts = %d, want 3", cfg.RemoteMaxAttempts)
	}
	if cfg.RemoteDSN != defaultRemoteDSN || cfg.LocalDSN != defaultLocalDSN {
		t.Fatalf("DSNs = %q/%q, want defaults", cfg.RemoteDSN, cfg.LocalDSN)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate succeeded without a telegram token")
	}
}

func TestLoad_ParsesFileAndExpandsHome(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
telegram_token = "  file-token  "
jwt_secret = "file-secret"
local_dsn = "~/brainbounce/local.db"
debounce = "500ms"
remote_max_attempts = 5
nudge_time = "21:15"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TelegramToken != "file-token" {
		t.Fatalf("TelegramToken = %q, want file-token", cfg.TelegramToken)
	}
	if cfg.Debounce != 500*time.Millisecond {
		t.Fatalf("Debounce = %v, want 500ms", cfg.Debounce)
	}
	if cfg.RemoteMaxAttempts != 5 {
		t.Fatalf("RemoteMaxAttempts = %d, want 5", cfg.RemoteMaxAttempts)
	}
	if !strings.HasPrefix(cfg.LocalDSN, home) {
		t.Fatalf("LocalDSN = %q, want it under HOME %q", cfg.LocalDSN, home)
	}
	if cfg.NudgeTime != "21:15" {
		t.Fatalf("NudgeTime = %q, want 21:15", cfg.NudgeTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
telegram_token = "file-token"
debounce = "5s"
`)
	t.Setenv("BRAINBOUNCE_CONFIG", path)
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("DEBOUNCE", "3s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TelegramToken != "env-token" {
		t.Fatalf("TelegramToken = %q, want env-token", cfg.TelegramToken)
	}
	if cfg.Debounce != 3*time.Second {
		t.Fatalf("Debounce = %v, want 3s", cfg.Debounce)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad file duration", file: `debounce = "soon"`},
		{name: "bad toml", file: `debounce = `},
		{name: "negative env int", env: map[string]string{"REMOTE_MAX_ATTEMPTS": "-1"}},
		{name: "bad env duration", env: map[string]string{"REMINDER_CHECK_INTERVAL": "often"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOME", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, tt.file)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load succeeded, want error")
			}
		})
	}
}
