package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken         string
	JWTSecret             string
	RemoteDSN             string
	LocalDSN              string
	RedisURL              string
	Debounce              time.Duration
	RemoteMaxAttempts     int
	RemoteMaxDelay        time.Duration
	LocalQuotaBytes       int
	ReminderCheckInterval time.Duration
	NudgeTime             string
}

const (
	defaultConfigPath            = "~/.config/brainbounce/config.toml"
	defaultRemoteDSN             = "brainbounce_remote.db"
	defaultLocalDSN              = "brainbounce_local.db"
	defaultDebounce              = 2 * time.Second
	defaultRemoteMaxAttempts     = 3
	defaultRemoteMaxDelay        = 5 * time.Second
	defaultLocalQuotaBytes       = 5 << 20
	defaultReminderCheckInterval = time.Minute
	defaultNudgeTime             = "20:00"
)

func defaults() Config {
	return Config{
		RemoteDSN:             defaultRemoteDSN,
		LocalDSN:              defaultLocalDSN,
		Debounce:              defaultDebounce,
		RemoteMaxAttempts:     defaultRemoteMaxAttempts,
		RemoteMaxDelay:        defaultRemoteMaxDelay,
		LocalQuotaBytes:       defaultLocalQuotaBytes,
		ReminderCheckInterval: defaultReminderCheckInterval,
		NudgeTime:             defaultNudgeTime,
	}
}

type fileConfig struct {
	TelegramToken         string `toml:"telegram_token"`
	JWTSecret             string `toml:"jwt_secret"`
	RemoteDSN             string `toml:"remote_dsn"`
	LocalDSN              string `toml:"local_dsn"`
	RedisURL              string `toml:"redis_url"`
	Debounce              string `toml:"debounce"`
	RemoteMaxAttempts     int    `toml:"remote_max_attempts"`
	RemoteMaxDelay        string `toml:"remote_max_delay"`
	LocalQuotaBytes       int    `toml:"local_quota_bytes"`
	ReminderCheckInterval string `toml:"reminder_check_interval"`
	NudgeTime             string `toml:"nudge_time"`
}

// Load reads the optional TOML file at path (BRAINBOUNCE_CONFIG or the default
// location when empty) and then applies environment overrides. A missing file
// is not an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("BRAINBOUNCE_CONFIG")
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyFile(resolved); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	cfg.RemoteDSN = mustExpand(cfg.RemoteDSN)
	cfg.LocalDSN = mustExpand(cfg.LocalDSN)
	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.TelegramToken, raw.TelegramToken)
	setString(&c.JWTSecret, raw.JWTSecret)
	setString(&c.RemoteDSN, raw.RemoteDSN)
	setString(&c.LocalDSN, raw.LocalDSN)
	setString(&c.RedisURL, raw.RedisURL)
	setString(&c.NudgeTime, raw.NudgeTime)
	if raw.RemoteMaxAttempts > 0 {
		c.RemoteMaxAttempts = raw.RemoteMaxAttempts
	}
	if raw.LocalQuotaBytes > 0 {
		c.LocalQuotaBytes = raw.LocalQuotaBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"debounce", raw.Debounce, &c.Debounce},
		{"remote_max_delay", raw.RemoteMaxDelay, &c.RemoteMaxDelay},
		{"reminder_check_interval", raw.ReminderCheckInterval, &c.ReminderCheckInterval},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key, d.raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.TelegramToken, os.Getenv("TELEGRAM_TOKEN"))
	setString(&c.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&c.RemoteDSN, os.Getenv("REMOTE_DSN"))
	setString(&c.LocalDSN, os.Getenv("LOCAL_DSN"))
	setString(&c.RedisURL, os.Getenv("REDIS_URL"))
	setString(&c.NudgeTime, os.Getenv("NUDGE_TIME"))

	if err := setInt(&c.RemoteMaxAttempts, "REMOTE_MAX_ATTEMPTS", os.Getenv("REMOTE_MAX_ATTEMPTS")); err != nil {
		return err
	}
	if err := setInt(&c.LocalQuotaBytes, "LOCAL_QUOTA_BYTES", os.Getenv("LOCAL_QUOTA_BYTES")); err != nil {
		return err
	}
	if err := setDuration(&c.Debounce, "DEBOUNCE", os.Getenv("DEBOUNCE")); err != nil {
		return err
	}
	if err := setDuration(&c.RemoteMaxDelay, "REMOTE_MAX_DELAY", os.Getenv("REMOTE_MAX_DELAY")); err != nil {
		return err
	}
	return setDuration(&c.ReminderCheckInterval, "REMINDER_CHECK_INTERVAL", os.Getenv("REMINDER_CHECK_INTERVAL"))
}

func setString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q: expected a positive integer", key, raw)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s %q: expected a positive duration", key, raw)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	if !strings.HasPrefix(strings.TrimSpace(path), "~") {
		return path
	}
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
