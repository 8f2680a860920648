package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "LIVEPOLL_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars (.env included) < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("LIVEPOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("rate_limit_per_min", cfg.RateLimitPerMin)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("chat_backlog", cfg.ChatBacklog)
	v.SetDefault("default_poll_duration", cfg.DefaultPollDuration)
	v.SetDefault("respondent_policy", cfg.RespondentPolicy)
	v.SetDefault("teacher_passcode_hash", cfg.TeacherPasscodeHash)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("jwt_ttl", cfg.JWTTTL)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_password", cfg.RedisPassword)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("redis_channel", cfg.RedisChannel)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
