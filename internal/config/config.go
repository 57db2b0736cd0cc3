package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration, sourced from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	ChannelID    string `env:"DISCORD_CHANNEL_ID"`

	ServerHost string `env:"MC_SERVER_HOST" envDefault:"23.ip.gl.ply.gg"`
	ServerPort uint16 `env:"MC_SERVER_PORT" envDefault:"12696"`
	Protocol   string `env:"MC_PROTOCOL" envDefault:"auto"`

	CheckIntervalSec int    `env:"CHECK_INTERVAL" envDefault:"60"`
	StableThreshold  int    `env:"STABLE_THRESHOLD" envDefault:"2"`
	RateLimitSec     int    `env:"RATE_LIMIT_SECONDS" envDefault:"300"`
	UseEmbed         bool   `env:"USE_EMBED" envDefault:"true"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the process environment. When envFile is
// non-empty that dotenv file is loaded first; otherwise a .env in the
// working directory is picked up when present. Variables already set in the
// environment always win over file values.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Protocol = strings.ToLower(strings.TrimSpace(cfg.Protocol))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return cfg, nil
}

// CheckInterval returns the poll interval.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// RateLimit returns the minimum gap between announcements.
func (c Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSec) * time.Second
}

// Validate checks everything the daemon needs. The returned error lists all
// problems at once so a broken deployment is fixed in one pass.
func (c Config) Validate() error {
	errs := c.targetErrs()

	if c.DiscordToken == "" {
		errs = append(errs, "DISCORD_TOKEN is required")
	}
	if c.ChannelID == "" {
		errs = append(errs, "DISCORD_CHANNEL_ID is required")
	} else if !isSnowflake(c.ChannelID) {
		errs = append(errs, fmt.Sprintf("DISCORD_CHANNEL_ID must be a numeric channel ID (got %q)", c.ChannelID))
	}

	return joinErrs(errs)
}

// ValidateProbe checks only what a one-shot probe needs, so check-only runs
// work without Discord credentials.
func (c Config) ValidateProbe() error {
	return joinErrs(c.targetErrs())
}

func (c Config) targetErrs() []string {
	var errs []string

	if c.ServerHost == "" {
		errs = append(errs, "MC_SERVER_HOST must not be empty")
	}
	if c.ServerPort == 0 {
		errs = append(errs, "MC_SERVER_PORT must not be 0")
	}

	validProtocols := map[string]bool{"auto": true, "java": true, "bedrock": true}
	if !validProtocols[c.Protocol] {
		errs = append(errs, fmt.Sprintf("MC_PROTOCOL must be auto, java, or bedrock (got %q)", c.Protocol))
	}

	if c.CheckIntervalSec < 1 {
		errs = append(errs, "CHECK_INTERVAL must be >= 1 second")
	}
	if c.StableThreshold < 1 {
		errs = append(errs, "STABLE_THRESHOLD must be >= 1")
	}
	if c.RateLimitSec < 0 {
		errs = append(errs, "RATE_LIMIT_SECONDS must be >= 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error (got %q)", c.LogLevel))
	}

	return errs
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
}

// isSnowflake reports whether s looks like a Discord snowflake ID.
func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
