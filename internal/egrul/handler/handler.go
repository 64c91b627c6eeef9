// Package handler exposes the lookup and extraction flows over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mark-rom/egrul-bot/internal/egrul/events"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/service"
	"github.com/mark-rom/egrul-bot/internal/egrul/store"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
	"github.com/mark-rom/egrul-bot/pkg/platform/httputil"
	"github.com/mark-rom/egrul-bot/pkg/requestcontext"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// LookupService resolves a query into a company summary.
type LookupService interface {
	Lookup(ctx context.Context, raw string) service.Result
}

// ExtractionService resolves a query into an extraction download reference.
type ExtractionService interface {
	RequestDocument(ctx context.Context, raw string) service.Result
}

// Handler serves the EGRUL endpoints.
type Handler struct {
	lookup     LookupService
	extraction ExtractionService
	requests   store.RequestLog
	events     events.Publisher
	logger     *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithRequestLog records successful calls made by identified users.
func WithRequestLog(log store.RequestLog) Option {
	return func(h *Handler) {
		h.requests = log
	}
}

// WithEvents publishes one event per handled request.
func WithEvents(p events.Publisher) Option {
	return func(h *Handler) {
		if p != nil {
			h.events = p
		}
	}
}

// New creates a handler.
func New(lookup LookupService, extraction ExtractionService, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		lookup:     lookup,
		extraction: extraction,
		events:     events.Noop{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/egrul/info", h.HandleInfo)
	r.Post("/egrul/extraction", h.HandleExtraction)
	r.Get("/egrul/history", h.HandleHistory)
}

// QueryRequest is the body of both POST endpoints. The query is validated as an
// identifier by the services so the end user sees the registry message.
type QueryRequest struct {
	Query string `json:"query" validate:"required,notblank,max=64"`
}

// Normalize strips the whitespace chat clients and forms tend to add.
func (r *QueryRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
}

// InfoResponse is returned by a successful lookup.
type InfoResponse struct {
	Message string                 `json:"message"`
	Summary *models.CompanySummary `json:"summary"`
}

// ExtractionResponse is returned once the extraction is ready.
type ExtractionResponse struct {
	Message     string `json:"message"`
	DownloadURL string `json:"download_url"`
}

// HistoryEntry is one row of GET /egrul/history.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	Query       string    `json:"query"`
	INN         string    `json:"inn,omitempty"`
	OGRN        string    `json:"ogrn,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// HistoryResponse lists the caller's recent requests, newest first.
type HistoryResponse struct {
	Requests []HistoryEntry `json:"requests"`
}

// HandleInfo handles POST /egrul/info.
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[QueryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result := h.lookup.Lookup(ctx, req.Query)
	h.publish(ctx, store.OperationLookup, req.Query, result)
	if !result.OK() {
		httputil.WriteError(w, result.Err)
		return
	}

	h.record(ctx, store.OperationLookup, req.Query, store.CompanyFromSummary(result.Summary))
	httputil.WriteJSON(w, http.StatusOK, InfoResponse{
		Message: result.Message,
		Summary: result.Summary,
	})
}

// HandleExtraction handles POST /egrul/extraction. The call blocks for the whole poll.
func (h *Handler) HandleExtraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[QueryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result := h.extraction.RequestDocument(ctx, req.Query)
	h.publish(ctx, store.OperationExtraction, req.Query, result)
	if !result.OK() {
		httputil.WriteError(w, result.Err)
		return
	}

	h.record(ctx, store.OperationExtraction, req.Query, nil)
	httputil.WriteJSON(w, http.StatusOK, ExtractionResponse{
		Message:     result.Message,
		DownloadURL: string(result.Document),
	})
}

// HandleHistory handles GET /egrul/history?limit=N for the caller named by X-User-ID.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error:   "invalid_request",
			Message: "X-User-ID header is required",
		})
		return
	}
	if h.requests == nil {
		httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Requests: []HistoryEntry{}})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.requests.ListByUser(ctx, userID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "request log read failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := HistoryResponse{Requests: make([]HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		item := HistoryEntry{
			ID:          e.ID.String(),
			Operation:   e.Operation,
			Query:       e.Query,
			RequestedAt: e.RequestedAt,
		}
		if e.Company != nil {
			item.INN = e.Company.INN
			item.OGRN = e.Company.OGRN
		}
		resp.Requests = append(resp.Requests, item)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// record writes the request log entry for identified callers. Failures are logged only;
// the user already has an answer.
func (h *Handler) record(ctx context.Context, operation, query string, company *store.Company) {
	userID := requestcontext.UserID(ctx)
	if h.requests == nil || userID == "" {
		return
	}
	entry := &store.RequestEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Operation:   operation,
		Query:       query,
		Company:     company,
		RequestedAt: requestcontext.Now(ctx),
	}
	if err := h.requests.Save(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "request log write failed",
			"error", err,
			"operation", operation,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (h *Handler) publish(ctx context.Context, operation, query string, result service.Result) {
	outcome := events.OutcomeOK
	if !result.OK() {
		outcome = string(result.Category())
	}
	id := models.Identifier(query)
	event := events.RequestEvent{
		Operation:      operation,
		IdentifierHash: tracer.HashIdentifier(id.String()),
		IdentifierKind: id.Kind(),
		Outcome:        outcome,
		RequestID:      requestcontext.RequestID(ctx),
		Timestamp:      requestcontext.Now(ctx).UTC(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "request event not published", "error", err, "operation", operation)
	}
}
