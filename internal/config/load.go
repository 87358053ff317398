package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SCRY_DATABASE_URL.
const EnvPrefix = "SCRY"

// keys lists every setting so that environment variables are honoured even
// when neither a default nor a config file mentions them.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.log_format",
	"server.shutdown_timeout",
	"database.driver",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"srs.max_quality",
	"srs.success_threshold",
	"srs.initial_ease_factor",
	"srs.min_ease_factor",
	"srs.lapse_ease_penalty",
	"srs.ease_bonus",
	"srs.ease_linear_penalty",
	"srs.ease_quadratic_penalty",
	"srs.first_interval_days",
	"srs.second_interval_days",
	"srs.lapse_interval_days",
	"srs.maximum_interval_days",
	"srs.mastery_threshold_days",
	"srs.learning_max_repetitions",
	"due.mastered_policy",
	"stats.cache_ttl",
	"sweep.page_size",
	"sweep.concurrency",
	"retry.max_retries",
	"retry.base_delay",
	"retry.max_delay",
	"retry.conflict_attempts",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "postgres")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("srs.mastery_threshold_days", 21)
	v.SetDefault("srs.learning_max_repetitions", 2)

	v.SetDefault("due.mastered_policy", "exclude")

	v.SetDefault("stats.cache_ttl", "30s")

	v.SetDefault("sweep.page_size", 200)
	v.SetDefault("sweep.concurrency", 8)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "50ms")
	v.SetDefault("retry.max_delay", "1s")
	v.SetDefault("retry.conflict_attempts", 3)
}

// Load reads configuration from defaults, an optional YAML file, and SCRY_
// environment variables, in increasing order of precedence. An empty path
// looks for config.yaml in the working directory and ignores its absence;
// an explicit path must exist. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the derived algorithm parameters.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.SRSParams().Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
