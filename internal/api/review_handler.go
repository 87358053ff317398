package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-srs/internal/api/shared"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/service/review"
)

// ReviewHandler handles review submissions.
type ReviewHandler struct {
	reviews          review.Service
	conflictAttempts int
	now              func() time.Time
	logger           *slog.Logger
}

// NewReviewHandler creates a ReviewHandler. conflictAttempts below one
// selects review.DefaultConflictAttempts.
func NewReviewHandler(reviews review.Service, conflictAttempts int, logger *slog.Logger) *ReviewHandler {
	if reviews == nil {
		panic("reviews cannot be nil")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	if conflictAttempts < 1 {
		conflictAttempts = review.DefaultConflictAttempts
	}
	return &ReviewHandler{
		reviews:          reviews,
		conflictAttempts: conflictAttempts,
		now:              time.Now,
		logger:           logger.With(slog.String("component", "review_handler")),
	}
}

// SubmitReview handles POST /api/cards/{id}/reviews. A review that loses a
// concurrent write is recomputed from the fresh state a bounded number of
// times before 409 is returned.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	cardID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req SubmitReviewRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, NewValidationError("request", "malformed body", nil))
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, SanitizeValidationError(err))
		return
	}

	var state *domain.ReviewState
	err = review.RetryOnConflict(r.Context(), h.conflictAttempts, func(ctx context.Context) error {
		var err error
		state, err = h.reviews.ReviewCard(ctx, userID, cardID, *req.Quality, h.now())
		return err
	})
	if err != nil {
		if errors.Is(err, review.ErrConflict) {
			log.Warn("review conflict persisted after retries",
				slog.String("card_id", cardID.String()),
				slog.Int("attempts", h.conflictAttempts))
		}
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, reviewStateToResponse(state))
}
