package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/api/shared"
	"github.com/phrazzld/scry-srs/internal/service/stats"
)

// StatsSummarizer produces learner statistics. *stats.Aggregator implements it.
type StatsSummarizer interface {
	Summarize(ctx context.Context, userID uuid.UUID, moduleID *uuid.UUID) (*stats.Statistics, error)
}

// StatsHandler serves GET /api/stats.
type StatsHandler struct {
	stats  StatsSummarizer
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(summarizer StatsSummarizer, logger *slog.Logger) *StatsHandler {
	if summarizer == nil {
		panic("summarizer cannot be nil")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StatsHandler")
	}
	return &StatsHandler{
		stats:  summarizer,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// GetStats handles GET /api/stats?module_id=.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	moduleID, hasModule, err := parseQueryUUID(r, "module_id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	var scope *uuid.UUID
	if hasModule {
		scope = &moduleID
	}

	summary, err := h.stats.Summarize(r.Context(), userID, scope)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, statisticsToResponse(summary))
}
