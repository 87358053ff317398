package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/api/shared"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/store"
)

// HandleAPIError writes the status and safe message for err and logs the
// redacted detail.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// requireUserID extracts the authenticated user's ID, writing a 401 if it
// is missing.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		logger.FromContext(r.Context()).Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, NewValidationError(paramName, "is required", nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.FromContext(r.Context()).Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", raw))
		return uuid.Nil, NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// parseQueryTime parses an optional RFC 3339 query parameter, returning
// fallback when it is absent.
func parseQueryTime(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, NewValidationError(name, "must be an RFC 3339 timestamp", nil)
	}
	return t.UTC(), nil
}

// parseQueryUUID parses an optional UUID query parameter. ok is false when
// the parameter is absent.
func parseQueryUUID(r *http.Request, name string) (id uuid.UUID, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, NewValidationError(name, "has invalid format", domain.ErrInvalidID)
	}
	return id, true, nil
}

// parsePage reads limit, after_due and after_card. The two cursor fields
// must be given together.
func parsePage(r *http.Request) (store.Page, error) {
	var page store.Page

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return page, NewValidationError("limit", "must be a positive integer", nil)
		}
		page.Limit = limit
	}

	afterCard, hasCard, err := parseQueryUUID(r, "after_card")
	if err != nil {
		return page, err
	}
	hasDue := r.URL.Query().Get("after_due") != ""
	if hasCard != hasDue {
		return page, NewValidationError("cursor", "after_due and after_card must be given together", nil)
	}
	if hasCard {
		afterDue, err := parseQueryTime(r, "after_due", time.Time{})
		if err != nil {
			return page, err
		}
		page.After = &store.Cursor{DueAt: afterDue, CardID: afterCard}
	}
	return page, nil
}
