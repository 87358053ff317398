package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MasteryTier is a coarse classification of how well a learner knows a card.
// It is always derived from a ReviewState and never persisted.
type MasteryTier string

// Possible mastery tiers
const (
	MasteryNew      MasteryTier = "new"
	MasteryLearning MasteryTier = "learning"
	MasteryReview   MasteryTier = "review"
	MasteryMastered MasteryTier = "mastered"
)

// MasteryTiers lists every tier in progression order.
var MasteryTiers = []MasteryTier{MasteryNew, MasteryLearning, MasteryReview, MasteryMastered}

// Validation errors for ReviewState
var (
	ErrEmptyStateUserID     = errors.New("review state user ID cannot be empty")
	ErrEmptyStateCardID     = errors.New("review state card ID cannot be empty")
	ErrNegativeRepetitions  = errors.New("repetition count cannot be negative")
	ErrNegativeLapses       = errors.New("lapse count cannot be negative")
	ErrInvalidInterval      = errors.New("interval must be at least 1 day once a card has been reviewed")
	ErrEaseFactorBelowFloor = errors.New("ease factor is below the configured floor")
	ErrDueDateMismatch      = errors.New("due date must equal last review plus interval")
)

// ReviewState is the scheduling state of one card for one learner.
//
// A state is created lazily on the first review of a card and is only ever
// replaced through srs.Advance, which guarantees the invariants checked by
// Validate. Version is the optimistic-concurrency token: zero means the row
// has not been persisted yet.
type ReviewState struct {
	UserID          uuid.UUID   `json:"user_id"`
	CardID          uuid.UUID   `json:"card_id"`
	ModuleID        uuid.UUID   `json:"module_id"`
	RepetitionCount int         `json:"repetition_count"`
	EaseFactor      float64     `json:"ease_factor"`
	IntervalDays    int         `json:"interval_days"`
	DueAt           time.Time   `json:"due_at"`
	LastReviewedAt  *time.Time  `json:"last_reviewed_at,omitempty"`
	LapseCount      int         `json:"lapse_count"`
	ReviewCount     int         `json:"review_count"`
	Version         int64       `json:"version"`
	Status          MasteryTier `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Reviewed reports whether the card has been reviewed at least once.
func (s *ReviewState) Reviewed() bool {
	return s.LastReviewedAt != nil && !s.LastReviewedAt.IsZero()
}

// Clone returns a deep copy of the state.
func (s *ReviewState) Clone() *ReviewState {
	c := *s
	if s.LastReviewedAt != nil {
		t := *s.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return &c
}

// Validate checks the persisted invariants of a reviewed state against the
// given ease-factor floor. Stores call it before every write.
func (s *ReviewState) Validate(easeFloor float64) error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStateUserID
	}
	if s.CardID == uuid.Nil {
		return ErrEmptyStateCardID
	}
	if s.RepetitionCount < 0 {
		return ErrNegativeRepetitions
	}
	if s.LapseCount < 0 {
		return ErrNegativeLapses
	}
	if s.EaseFactor < easeFloor {
		return fmt.Errorf("%w: %.4f < %.4f", ErrEaseFactorBelowFloor, s.EaseFactor, easeFloor)
	}
	if !s.Reviewed() {
		if s.RepetitionCount > 0 {
			return ErrInvalidInterval
		}
		return nil
	}
	if s.IntervalDays < 1 {
		return ErrInvalidInterval
	}
	if !s.DueAt.Equal(s.LastReviewedAt.AddDate(0, 0, s.IntervalDays)) {
		return ErrDueDateMismatch
	}
	return nil
}
