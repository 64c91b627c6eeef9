// Package service implements the company lookup and extraction flows on top of the
// registry client.
//
// Each flow has a typed core (Lookup.Summary, Extraction.Document) that returns
// classified errors, and a boundary method (Lookup.Lookup, Extraction.RequestDocument)
// that never fails: it logs internal and transport errors and hands back a
// display-ready Result.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/client"
	"github.com/mark-rom/egrul-bot/internal/egrul/metrics"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
)

const (
	DefaultPollAttempts = 3
	DefaultPollInterval = 200 * time.Millisecond

	opLookup     = "lookup"
	opExtraction = "extraction"
)

// Registry is the subset of the registry client the services depend on.
// *client.Client satisfies it.
type Registry interface {
	AcquireToken(ctx context.Context, id models.Identifier) (models.SearchToken, error)
	FetchRecord(ctx context.Context, token models.SearchToken) (*models.RegistryRecord, error)
	RequestExtraction(ctx context.Context, token models.ExtractionToken, phase client.Phase) (*models.ExtractionPayload, error)
	PollExtractionStatus(ctx context.Context, token models.ExtractionToken) (*models.ExtractionPayload, error)
	DownloadReference(token models.ExtractionToken) models.DownloadReference
}

// RecordCache stores raw registry records by identifier.
// FindRecord returns store.ErrNotFound on a miss.
type RecordCache interface {
	FindRecord(ctx context.Context, id models.Identifier) (*models.RegistryRecord, error)
	SaveRecord(ctx context.Context, id models.Identifier, record *models.RegistryRecord) error
}

var _ Registry = (*client.Client)(nil)

// settings holds the dependencies shared by both services.
type settings struct {
	logger       *slog.Logger
	tracer       tracer.Tracer
	metrics      *metrics.Metrics
	cache        RecordCache
	now          func() time.Time
	pollAttempts int
	pollInterval time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:       slog.Default(),
		tracer:       tracer.NewNoop(),
		now:          time.Now,
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a service.
type Option func(*settings)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics enables service-level metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithClock overrides the clock used for "active as of" dates.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCache enables the record cache. Only Lookup uses it: extraction tokens are single-use.
func WithCache(cache RecordCache) Option {
	return func(s *settings) {
		s.cache = cache
	}
}

// WithPollAttempts sets how many status checks Extraction makes, the first included.
// Values below 1 are ignored.
func WithPollAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.pollAttempts = n
		}
	}
}

// WithPollInterval sets the wait between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.pollInterval = d
		}
	}
}

// searchRecord runs the token + search-result handshake shared by both flows.
func searchRecord(ctx context.Context, registry Registry, id models.Identifier) (*models.RegistryRecord, error) {
	token, err := registry.AcquireToken(ctx, id)
	if err != nil {
		return nil, err
	}
	return registry.FetchRecord(ctx, token)
}
