package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/service/stats"
	"github.com/samber/lo"
)

// SubmitReviewRequest is the body of POST /api/cards/{id}/reviews. Quality
// is a pointer so that a missing field is told apart from a rating of 0.
type SubmitReviewRequest struct {
	Quality *int `json:"quality" validate:"required"`
}

// ReviewStateResponse is the API view of a review state.
type ReviewStateResponse struct {
	CardID          uuid.UUID          `json:"card_id"`
	ModuleID        uuid.UUID          `json:"module_id"`
	RepetitionCount int                `json:"repetition_count"`
	EaseFactor      float64            `json:"ease_factor"`
	IntervalDays    int                `json:"interval_days"`
	DueAt           time.Time          `json:"due_at"`
	LastReviewedAt  *time.Time         `json:"last_reviewed_at,omitempty"`
	LapseCount      int                `json:"lapse_count"`
	ReviewCount     int                `json:"review_count"`
	Status          domain.MasteryTier `json:"status"`
}

// DueCountResponse is the body of GET /api/reviews/due/count.
type DueCountResponse struct {
	DueCount int       `json:"due_count"`
	AsOf     time.Time `json:"as_of"`
}

// CursorResponse identifies where the next due page starts.
type CursorResponse struct {
	AfterDue  time.Time `json:"after_due"`
	AfterCard uuid.UUID `json:"after_card"`
}

// DuePageResponse is the body of GET /api/reviews/due.
type DuePageResponse struct {
	Cards []ReviewStateResponse `json:"cards"`
	Next  *CursorResponse       `json:"next,omitempty"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	ModuleID      *uuid.UUID     `json:"module_id,omitempty"`
	TotalCards    int            `json:"total_cards"`
	MasteredCount int            `json:"mastered_count"`
	ReviewedCount int            `json:"reviewed_count"`
	DueTodayCount int            `json:"due_today_count"`
	ByTier        map[string]int `json:"by_tier"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

func reviewStateToResponse(state *domain.ReviewState) ReviewStateResponse {
	return ReviewStateResponse{
		CardID:          state.CardID,
		ModuleID:        state.ModuleID,
		RepetitionCount: state.RepetitionCount,
		EaseFactor:      state.EaseFactor,
		IntervalDays:    state.IntervalDays,
		DueAt:           state.DueAt,
		LastReviewedAt:  state.LastReviewedAt,
		LapseCount:      state.LapseCount,
		ReviewCount:     state.ReviewCount,
		Status:          state.Status,
	}
}

func duePageToResponse(page *due.DuePage) DuePageResponse {
	resp := DuePageResponse{
		Cards: lo.Map(page.Cards, func(state *domain.ReviewState, _ int) ReviewStateResponse {
			return reviewStateToResponse(state)
		}),
	}
	if page.Next != nil {
		resp.Next = &CursorResponse{AfterDue: page.Next.DueAt, AfterCard: page.Next.CardID}
	}
	return resp
}

func statisticsToResponse(s *stats.Statistics) StatsResponse {
	return StatsResponse{
		ModuleID:      s.ModuleID,
		TotalCards:    s.TotalCards,
		MasteredCount: s.MasteredCount,
		ReviewedCount: s.ReviewedCount,
		DueTodayCount: s.DueTodayCount,
		ByTier: lo.MapKeys(s.ByTier, func(_ int, tier domain.MasteryTier) string {
			return string(tier)
		}),
		GeneratedAt: s.GeneratedAt,
	}
}
