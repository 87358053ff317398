package srs

import "github.com/phrazzld/scry-srs/internal/domain"

// Classifier maps a review state to a mastery tier. Thresholds are injected
// so product tuning never touches the scheduling code.
type Classifier struct {
	// MasteryThresholdDays is the interval at which a card counts as mastered.
	MasteryThresholdDays int
	// LearningMaxRepetitions is the highest repetition count still considered learning.
	LearningMaxRepetitions int
}

// NewDefaultClassifier returns a classifier with a 21-day mastery threshold.
func NewDefaultClassifier() Classifier {
	return Classifier{
		MasteryThresholdDays:   21,
		LearningMaxRepetitions: 2,
	}
}

// Classify derives the mastery tier of a state. A card that lapsed back to
// zero repetitions is relearning and reported as Learning, not New.
func (c Classifier) Classify(state *domain.ReviewState) domain.MasteryTier {
	if state == nil || (!state.Reviewed() && state.RepetitionCount == 0) {
		return domain.MasteryNew
	}
	if state.IntervalDays >= c.MasteryThresholdDays {
		return domain.MasteryMastered
	}
	if state.RepetitionCount > c.LearningMaxRepetitions {
		return domain.MasteryReview
	}
	return domain.MasteryLearning
}

// Tag sets state.Status from Classify and returns the state for chaining.
func (c Classifier) Tag(state *domain.ReviewState) *domain.ReviewState {
	if state != nil {
		state.Status = c.Classify(state)
	}
	return state
}
