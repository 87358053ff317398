package srs

import (
	"errors"
	"math"
	"time"

	"github.com/phrazzld/scry-srs/internal/domain"
)

// ErrInvalidQuality is returned when a quality rating falls outside [0, MaxQuality].
var ErrInvalidQuality = errors.New("quality rating out of range")

// isLapse reports whether a rating counts as a failed recall.
func isLapse(quality int, params *Params) bool {
	return quality < params.SuccessThreshold
}

// calculateNewEaseFactor applies the SM-2 ease delta for a successful review.
//
// Parameters:
//   - currentEF: The ease factor before the review
//   - quality: The recall rating, at least params.SuccessThreshold
//   - params: Configuration parameters for the SRS algorithm
//
// Returns:
//   - The new ease factor, never below params.MinEaseFactor
//
// Algorithm behavior:
//
//	EF' = EF + (bonus - (max-q) * (linear + (max-q) * quadratic))
//
// With the default constants a perfect rating adds 0.1, a 4 leaves the ease
// unchanged and a 3 subtracts 0.14.
func calculateNewEaseFactor(currentEF float64, quality int, params *Params) float64 {
	miss := float64(params.MaxQuality - quality)
	newEF := currentEF + (params.EaseBonus - miss*(params.EaseLinearPenalty+miss*params.EaseQuadraticPenalty))
	return math.Max(params.MinEaseFactor, newEF)
}

// calculateLapseEaseFactor lowers the ease factor after a failed recall,
// never below the floor.
func calculateLapseEaseFactor(currentEF float64, params *Params) float64 {
	return math.Max(params.MinEaseFactor, currentEF-params.LapseEasePenalty)
}

// calculateNewInterval determines the interval after a successful review.
//
// Parameters:
//   - previousInterval: The interval in days before the review (0 for a new card)
//   - repetition: The repetition count after the review, 1 for the first
//     success since the last lapse
//   - easeFactor: The ease factor before the review
//   - params: Configuration parameters for the SRS algorithm
//
// Returns:
//   - The new interval in days, between 1 and params.MaximumIntervalDays
//
// Algorithm behavior:
//   - First success: params.FirstIntervalDays (default 1)
//   - Second success: params.SecondIntervalDays (default 6)
//   - Later successes: round(previousInterval * easeFactor), and at least
//     previousInterval+1 so a mature card always moves further out
//   - Every result is capped at params.MaximumIntervalDays. Growth is strict
//     only below the cap; a card at the cap stays there
//
// The product is computed in floating point and compared with the cap before
// it is converted, so no interval can overflow int.
func calculateNewInterval(previousInterval, repetition int, easeFactor float64, params *Params) int {
	maxDays := params.MaximumIntervalDays

	var next int
	switch repetition {
	case 1:
		next = params.FirstIntervalDays
	case 2:
		next = params.SecondIntervalDays
	default:
		grown := math.Round(float64(previousInterval) * easeFactor)
		if grown >= float64(maxDays) {
			return maxDays
		}
		next = int(grown)
		if next <= previousInterval {
			next = previousInterval + 1
		}
	}

	if next > maxDays {
		return maxDays
	}
	return next
}

// baseline returns the pre-first-review state for a card.
func baseline(params *Params) *domain.ReviewState {
	return &domain.ReviewState{
		RepetitionCount: 0,
		EaseFactor:      params.InitialEaseFactor,
		IntervalDays:    0,
	}
}

// Advance computes the state that follows prior after a review rated quality at now.
//
// Parameters:
//   - prior: The current state, or nil for a card that has never been reviewed
//   - quality: The recall rating in [0, params.MaxQuality]
//   - now: The review time; it becomes LastReviewedAt
//   - params: Configuration parameters for the SRS algorithm
//
// Returns:
//   - A new state; prior is never modified
//   - ErrInvalidQuality if quality is out of range, with no state
//
// Algorithm behavior:
//   - A rating below params.SuccessThreshold is a lapse: repetitions reset to
//     0, the interval to params.LapseIntervalDays, the ease factor drops by
//     params.LapseEasePenalty (floored) and LapseCount grows
//   - Any other rating increments the repetition count and grows the interval
//     via calculateNewInterval, then adjusts the ease factor
//   - DueAt is always now plus the interval in days; ReviewCount grows by one
//
// Advance reads no clock and has no randomness, so identical arguments always
// yield identical results.
func Advance(prior *domain.ReviewState, quality int, now time.Time, params *Params) (*domain.ReviewState, error) {
	if quality < 0 || quality > params.MaxQuality {
		return nil, ErrInvalidQuality
	}

	var next *domain.ReviewState
	if prior == nil {
		next = baseline(params)
		next.CreatedAt = now
	} else {
		next = prior.Clone()
	}

	if isLapse(quality, params) {
		next.RepetitionCount = 0
		next.IntervalDays = params.LapseIntervalDays
		next.EaseFactor = calculateLapseEaseFactor(next.EaseFactor, params)
		next.LapseCount++
	} else {
		next.RepetitionCount++
		next.IntervalDays = calculateNewInterval(next.IntervalDays, next.RepetitionCount, next.EaseFactor, params)
		next.EaseFactor = calculateNewEaseFactor(next.EaseFactor, quality, params)
	}

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.DueAt = now.AddDate(0, 0, next.IntervalDays)
	next.ReviewCount++
	next.UpdatedAt = now
	next.Status = ""

	return next, nil
}
