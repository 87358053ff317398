package config

import (
	"time"

	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs"`
	Due      DueConfig      `mapstructure:"due"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Retry    RetryConfig    `mapstructure:"retry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// For the sqlite driver URL is a file path or a file: URI.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// SRSConfig tunes the scheduling algorithm and the mastery classifier.
// Zero values keep the algorithm defaults. The ease adjustments are
// pointers so that an explicit 0 is distinguishable from an absent key.
type SRSConfig struct {
	MaxQuality             int      `mapstructure:"max_quality" validate:"gte=0"`
	SuccessThreshold       int      `mapstructure:"success_threshold" validate:"gte=0"`
	InitialEaseFactor      float64  `mapstructure:"initial_ease_factor" validate:"omitempty,gte=1"`
	MinEaseFactor          float64  `mapstructure:"min_ease_factor" validate:"omitempty,gte=1"`
	LapseEasePenalty       *float64 `mapstructure:"lapse_ease_penalty" validate:"omitempty,gte=0"`
	EaseBonus              *float64 `mapstructure:"ease_bonus" validate:"omitempty,gte=0"`
	EaseLinearPenalty      *float64 `mapstructure:"ease_linear_penalty" validate:"omitempty,gte=0"`
	EaseQuadraticPenalty   *float64 `mapstructure:"ease_quadratic_penalty" validate:"omitempty,gte=0"`
	FirstIntervalDays      int      `mapstructure:"first_interval_days" validate:"gte=0"`
	SecondIntervalDays     int      `mapstructure:"second_interval_days" validate:"gte=0"`
	LapseIntervalDays      int      `mapstructure:"lapse_interval_days" validate:"gte=0"`
	MaximumIntervalDays    int      `mapstructure:"maximum_interval_days" validate:"gte=0"`
	MasteryThresholdDays   int      `mapstructure:"mastery_threshold_days" validate:"required,gt=0"`
	LearningMaxRepetitions int      `mapstructure:"learning_max_repetitions" validate:"gte=0"`
}

// DueConfig controls due-set resolution.
type DueConfig struct {
	MasteredPolicy string `mapstructure:"mastered_policy" validate:"required,oneof=exclude include"`
}

// StatsConfig controls the statistics cache.
type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SweepConfig controls the reminder sweep.
type SweepConfig struct {
	PageSize    int `mapstructure:"page_size" validate:"gt=0,lte=500"`
	Concurrency int `mapstructure:"concurrency" validate:"gt=0,lte=256"`
}

// RetryConfig bounds retries of unavailable-store errors and write conflicts.
type RetryConfig struct {
	MaxRetries       uint64        `mapstructure:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay         time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	ConflictAttempts int           `mapstructure:"conflict_attempts" validate:"gt=0"`
}

// SRSParams converts the SRS section to algorithm parameters.
func (c *Config) SRSParams() *srs.Params {
	return srs.NewParams(srs.ParamsConfig{
		MaxQuality:           c.SRS.MaxQuality,
		SuccessThreshold:     c.SRS.SuccessThreshold,
		InitialEaseFactor:    c.SRS.InitialEaseFactor,
		MinEaseFactor:        c.SRS.MinEaseFactor,
		LapseEasePenalty:     c.SRS.LapseEasePenalty,
		EaseBonus:            c.SRS.EaseBonus,
		EaseLinearPenalty:    c.SRS.EaseLinearPenalty,
		EaseQuadraticPenalty: c.SRS.EaseQuadraticPenalty,
		FirstIntervalDays:    c.SRS.FirstIntervalDays,
		SecondIntervalDays:   c.SRS.SecondIntervalDays,
		LapseIntervalDays:    c.SRS.LapseIntervalDays,
		MaximumIntervalDays:  c.SRS.MaximumIntervalDays,
	})
}

// Classifier converts the SRS section to a mastery classifier.
func (c *Config) Classifier() srs.Classifier {
	return srs.Classifier{
		MasteryThresholdDays:   c.SRS.MasteryThresholdDays,
		LearningMaxRepetitions: c.SRS.LearningMaxRepetitions,
	}
}

// MasteredPolicy returns the parsed due policy. Load has already validated it.
func (c *Config) MasteredPolicy() due.MasteredPolicy {
	policy, err := due.ParseMasteredPolicy(c.Due.MasteredPolicy)
	if err != nil {
		return due.MasteredExclude
	}
	return policy
}

// RetryPolicy converts the retry section to a store retry policy.
func (c *Config) RetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
}
