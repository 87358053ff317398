package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/api/shared"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
)

// DueResolver answers due-set queries. *due.Resolver implements it.
type DueResolver interface {
	DueCount(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error)
	DueCards(ctx context.Context, userID uuid.UUID, asOf time.Time, page store.Page) (*due.DuePage, error)
}

// DueHandler serves the due-count and due-list endpoints.
type DueHandler struct {
	resolver DueResolver
	now      func() time.Time
	logger   *slog.Logger
}

// NewDueHandler creates a DueHandler.
func NewDueHandler(resolver DueResolver, logger *slog.Logger) *DueHandler {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DueHandler")
	}
	return &DueHandler{
		resolver: resolver,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "due_handler")),
	}
}

// GetDueCount handles GET /api/reviews/due/count?as_of=.
func (h *DueHandler) GetDueCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	asOf, err := parseQueryTime(r, "as_of", h.now().UTC())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	count, err := h.resolver.DueCount(r.Context(), userID, asOf)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DueCountResponse{DueCount: count, AsOf: asOf})
}

// ListDue handles GET /api/reviews/due?as_of=&limit=&after_due=&after_card=.
func (h *DueHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	asOf, err := parseQueryTime(r, "as_of", h.now().UTC())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	result, err := h.resolver.DueCards(r.Context(), userID, asOf, page)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, duePageToResponse(result))
}
