package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	StatusAddr string `yaml:"status_addr"`

	TimeControlSec  int           `yaml:"time_control_sec"`
	ClockBroadcast  int           `yaml:"clock_broadcast_sec"`
	GracePeriod     time.Duration `yaml:"grace_period"`
	InvitationTTL   time.Duration `yaml:"invitation_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	MaxSessionAge   time.Duration `yaml:"max_session_age"`

	VideoBaseURL string `yaml:"video_base_url"`
	VideoAPIKey  string `yaml:"video_api_key"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

// Load builds the runtime configuration. An optional YAML file pointed at by
// CHESSMEET_CONFIG is read first; individual environment variables override it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":8080",
		StatusAddr:     ":8081",
		TimeControlSec: 600,
		ClockBroadcast: 5,
		GracePeriod:    30 * time.Second,
		InvitationTTL:  5 * time.Minute,
		SweepInterval:  30 * time.Minute,
		MaxSessionAge:  12 * time.Hour,
	}

	if path := strings.TrimSpace(os.Getenv("CHESSMEET_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STATUS_ADDR")); v != "" {
		cfg.StatusAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeControlSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_BROADCAST_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClockBroadcast = n
		}
	}
	if d, ok := envDuration("GRACE_PERIOD"); ok {
		cfg.GracePeriod = d
	}
	if d, ok := envDuration("INVITATION_TTL"); ok {
		cfg.InvitationTTL = d
	}
	if d, ok := envDuration("SWEEP_INTERVAL"); ok {
		cfg.SweepInterval = d
	}
	if d, ok := envDuration("MAX_SESSION_AGE"); ok {
		cfg.MaxSessionAge = d
	}
	if v := strings.TrimSpace(os.Getenv("VIDEO_BASE_URL")); v != "" {
		cfg.VideoBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDEO_API_KEY")); v != "" {
		cfg.VideoAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if cfg.GracePeriod <= 0 || cfg.InvitationTTL <= 0 || cfg.SweepInterval <= 0 || cfg.MaxSessionAge <= 0 {
		return nil, errors.New("timer durations must be positive")
	}
	return cfg, nil
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	// bare integers are seconds
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
