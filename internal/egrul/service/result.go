package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
)

// Result is what the boundary methods hand to a presentation layer.
// Message is always safe to show to the end user.
type Result struct {
	Message  string
	Summary  *models.CompanySummary  // set by a successful lookup
	Document models.DownloadReference // set by a successful extraction
	Err      error                    // classified cause, nil on success
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Kind returns the failure class, or "" on success.
func (r Result) Kind() registryerr.Kind {
	if r.Err == nil {
		return ""
	}
	return registryerr.KindOf(r.Err)
}

// Category returns the failure category, or "" on success.
func (r Result) Category() registryerr.Category {
	if r.Err == nil {
		return ""
	}
	return registryerr.CategoryOf(r.Err)
}

// fail converts err into a failed Result, logging it according to its kind.
// User errors are expected and logged at info; the rest are logged at error with the
// full cause, which never reaches the message.
func (s *settings) fail(ctx context.Context, operation, raw string, err error) Result {
	kind := registryerr.KindOf(err)
	category := registryerr.CategoryOf(err)
	s.metrics.RecordFailure(operation, string(kind), string(category))

	attrs := []any{
		"operation", operation,
		"identifier_hash", tracer.HashIdentifier(strings.TrimSpace(raw)),
		"kind", kind,
		"category", category,
		"error", err,
	}
	var regErr *registryerr.Error
	if errors.As(err, &regErr) {
		attrs = append(attrs, "op", regErr.Op)
	}

	switch kind {
	case registryerr.KindUser:
		s.logger.InfoContext(ctx, "egrul request declined", attrs...)
	case registryerr.KindTransport:
		s.logger.ErrorContext(ctx, "registry unreachable", attrs...)
	default:
		s.logger.ErrorContext(ctx, "registry contract violation", attrs...)
	}

	return Result{
		Message: registryerr.UserMessage(err),
		Err:     err,
	}
}

// logAttrs is shared by the success paths.
func logAttrs(operation, raw string) []slog.Attr {
	id := models.Identifier(strings.TrimSpace(raw))
	return []slog.Attr{
		slog.String("operation", operation),
		slog.String("identifier_hash", tracer.HashIdentifier(id.String())),
		slog.String("identifier_kind", id.Kind()),
	}
}
