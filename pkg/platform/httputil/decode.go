package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mark-rom/egrul-bot/pkg/validation"
)

// Normalizable is implemented by request types that clean up their fields before validation.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes the body into T. On failure it writes a 400 and returns false.
//
//	req, ok := httputil.DecodeJSON[QueryRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "invalid request body"})
		return nil, false
	}
	return &req, true
}

// DecodeAndValidate decodes the body, normalizes it and runs its validate tags.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	if n, ok := any(req).(Normalizable); ok {
		n.Normalize()
	}
	if err := validation.Validate(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
