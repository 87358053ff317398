package srs

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when a Params value cannot drive the algorithm.
var ErrInvalidParams = errors.New("invalid SRS parameters")

// Params defines all configurable parameters for the SRS algorithm
type Params struct {
	// Quality scale
	MaxQuality       int
	SuccessThreshold int

	// Ease factor limits and adjustments
	InitialEaseFactor    float64
	MinEaseFactor        float64
	LapseEasePenalty     float64
	EaseBonus            float64
	EaseLinearPenalty    float64
	EaseQuadraticPenalty float64

	// Interval schedule
	FirstIntervalDays   int
	SecondIntervalDays  int
	LapseIntervalDays   int
	MaximumIntervalDays int
}

// MaxIntervalLimitDays is the largest cap Validate accepts. Due dates stay
// well inside the range every store can represent.
const MaxIntervalLimitDays = 365 * 1000

// DefaultMaximumIntervalDays caps intervals at roughly a century.
const DefaultMaximumIntervalDays = 36500

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the defaults. The ease adjustments are pointers because
// zero is a meaningful setting for them; nil keeps the default.
type ParamsConfig struct {
	MaxQuality       int
	SuccessThreshold int

	InitialEaseFactor    float64
	MinEaseFactor        float64
	LapseEasePenalty     *float64
	EaseBonus            *float64
	EaseLinearPenalty    *float64
	EaseQuadraticPenalty *float64

	FirstIntervalDays   int
	SecondIntervalDays  int
	LapseIntervalDays   int
	MaximumIntervalDays int
}

// NewDefaultParams creates a new Params instance with the SM-2 defaults
func NewDefaultParams() *Params {
	return &Params{
		MaxQuality:       5,
		SuccessThreshold: 3,

		InitialEaseFactor:    2.5,
		MinEaseFactor:        1.3,
		LapseEasePenalty:     0.2,
		EaseBonus:            0.1,
		EaseLinearPenalty:    0.08,
		EaseQuadraticPenalty: 0.02,

		FirstIntervalDays:   1,
		SecondIntervalDays:  6,
		LapseIntervalDays:   1,
		MaximumIntervalDays: DefaultMaximumIntervalDays,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MaxQuality > 0 {
		params.MaxQuality = config.MaxQuality
	}
	if config.SuccessThreshold > 0 {
		params.SuccessThreshold = config.SuccessThreshold
	}

	if config.InitialEaseFactor > 0 {
		params.InitialEaseFactor = config.InitialEaseFactor
	}
	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.LapseEasePenalty != nil {
		params.LapseEasePenalty = *config.LapseEasePenalty
	}
	if config.EaseBonus != nil {
		params.EaseBonus = *config.EaseBonus
	}
	if config.EaseLinearPenalty != nil {
		params.EaseLinearPenalty = *config.EaseLinearPenalty
	}
	if config.EaseQuadraticPenalty != nil {
		params.EaseQuadraticPenalty = *config.EaseQuadraticPenalty
	}

	if config.FirstIntervalDays > 0 {
		params.FirstIntervalDays = config.FirstIntervalDays
	}
	if config.SecondIntervalDays > 0 {
		params.SecondIntervalDays = config.SecondIntervalDays
	}
	if config.LapseIntervalDays > 0 {
		params.LapseIntervalDays = config.LapseIntervalDays
	}
	if config.MaximumIntervalDays > 0 {
		params.MaximumIntervalDays = config.MaximumIntervalDays
	}

	return params
}

// Validate reports whether the parameters describe a usable schedule.
func (p *Params) Validate() error {
	switch {
	case p.MaxQuality < 1:
		return fmt.Errorf("%w: max quality must be positive", ErrInvalidParams)
	case p.SuccessThreshold < 1 || p.SuccessThreshold > p.MaxQuality:
		return fmt.Errorf("%w: success threshold must lie in [1, %d]", ErrInvalidParams, p.MaxQuality)
	case p.MinEaseFactor < 1.0:
		return fmt.Errorf("%w: ease floor must be at least 1.0", ErrInvalidParams)
	case p.InitialEaseFactor < p.MinEaseFactor:
		return fmt.Errorf("%w: initial ease factor is below the floor", ErrInvalidParams)
	case p.FirstIntervalDays < 1 || p.LapseIntervalDays < 1:
		return fmt.Errorf("%w: first and lapse intervals must be at least 1 day", ErrInvalidParams)
	case p.SecondIntervalDays <= p.FirstIntervalDays:
		return fmt.Errorf("%w: second interval must exceed the first", ErrInvalidParams)
	case p.MaximumIntervalDays < p.SecondIntervalDays || p.MaximumIntervalDays < p.LapseIntervalDays:
		return fmt.Errorf("%w: maximum interval must cover the fixed intervals", ErrInvalidParams)
	case p.MaximumIntervalDays > MaxIntervalLimitDays:
		return fmt.Errorf("%w: maximum interval may not exceed %d days", ErrInvalidParams, MaxIntervalLimitDays)
	case p.LapseEasePenalty < 0 || p.EaseBonus < 0 || p.EaseLinearPenalty < 0 || p.EaseQuadraticPenalty < 0:
		return fmt.Errorf("%w: ease adjustments must not be negative", ErrInvalidParams)
	}
	return nil
}
