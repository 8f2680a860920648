package config

import (
	"fmt"
	"time"
)

// Respondent policies decide what a disconnect does to an open poll's expected set.
const (
	PolicyFrozen = "frozen"
	PolicyShrink = "shrink"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`

	// DatabasePath enables the SQLite history store; empty keeps history in memory.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	HistoryLimit int    `mapstructure:"history_limit" yaml:"history_limit"`
	ChatBacklog  int    `mapstructure:"chat_backlog" yaml:"chat_backlog"`

	DefaultPollDuration time.Duration `mapstructure:"default_poll_duration" yaml:"default_poll_duration"`
	RespondentPolicy    string        `mapstructure:"respondent_policy" yaml:"respondent_policy"`

	TeacherPasscodeHash string        `mapstructure:"teacher_passcode_hash" yaml:"teacher_passcode_hash"`
	JWTSecret           string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer           string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience         string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL              time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// RedisAddr enables mirroring poll lifecycle events to RedisChannel.
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannel  string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		MaxMessageBytes:     1 << 16,
		RateLimitPerMin:     600,
		LogLevel:            "info",
		ChatBacklog:         50,
		DefaultPollDuration: 60 * time.Second,
		RespondentPolicy:    PolicyFrozen,
		JWTSecret:           "change-me",
		JWTIssuer:           "livepoll",
		JWTAudience:         "livepoll",
		JWTTTL:              12 * time.Hour,
		RedisChannel:        "livepoll:events",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RespondentPolicy != "" {
		c.RespondentPolicy = other.RespondentPolicy
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
}

// Validate reports configuration values the server cannot run with.
func (c *Config) Validate() error {
	switch c.RespondentPolicy {
	case PolicyFrozen, PolicyShrink:
	default:
		return fmt.Errorf("respondent_policy must be %q or %q, got %q", PolicyFrozen, PolicyShrink, c.RespondentPolicy)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	if c.ChatBacklog < 0 {
		return fmt.Errorf("chat_backlog must not be negative")
	}
	if c.DefaultPollDuration < 0 {
		return fmt.Errorf("default_poll_duration must not be negative")
	}
	return nil
}
