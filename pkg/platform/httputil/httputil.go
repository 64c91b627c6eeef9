package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
	"github.com/mark-rom/egrul-bot/pkg/validation"
)

// RetryAfter is advertised on responses the client may retry.
const RetryAfter = 5 * time.Second

// ErrorResponse is the body of every failed response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent; an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates err into a status code and an ErrorResponse.
// Registry errors keep their category; the message is always the user-safe one.
func WriteError(w http.ResponseWriter, err error) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: vErr.Message})
		return
	}

	category := registryerr.CategoryOf(err)
	if registryerr.IsRetryable(err) {
		w.Header().Set("Retry-After", strconv.Itoa(int(RetryAfter.Seconds())))
	}
	WriteJSON(w, StatusFor(category), ErrorResponse{
		Error:   string(category),
		Message: registryerr.UserMessage(err),
	})
}

// StatusFor maps a failure category onto an HTTP status.
func StatusFor(category registryerr.Category) int {
	switch category {
	case registryerr.CategoryInvalidIdentifier:
		return http.StatusBadRequest
	case registryerr.CategoryNoMatch:
		return http.StatusNotFound
	case registryerr.CategoryExtractionNotReady:
		return http.StatusServiceUnavailable
	case registryerr.CategoryUnreachable, registryerr.CategoryRejected, registryerr.CategoryTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
