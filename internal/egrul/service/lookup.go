package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/store"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
)

// Lookup resolves an identifier into a company summary.
type Lookup struct {
	registry Registry
	settings
}

// NewLookup creates a lookup service.
func NewLookup(registry Registry, opts ...Option) *Lookup {
	return &Lookup{
		registry: registry,
		settings: newSettings(opts),
	}
}

// Summary validates raw, fetches the matching record and converts it.
func (l *Lookup) Summary(ctx context.Context, raw string) (_ *models.CompanySummary, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanLookup)
	defer func() { span.End(err) }()

	id, err := models.ParseIdentifier(raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrIdentifier, tracer.HashIdentifier(id.String())),
		tracer.String(tracer.AttrIdentifierKind, id.Kind()),
	)
	l.metrics.RecordRequest(opLookup, id.Kind())

	record, cached, err := l.record(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, cached))

	summary, err := ToSummary(record, l.now())
	if err != nil {
		return nil, err
	}
	if !cached {
		l.saveRecord(ctx, id, record)
	}
	return summary, nil
}

// Lookup is the boundary form of Summary. It never fails; see Result.
func (l *Lookup) Lookup(ctx context.Context, raw string) Result {
	summary, err := l.Summary(ctx, raw)
	if err != nil {
		return l.fail(ctx, opLookup, raw, err)
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "egrul lookup completed",
		append(logAttrs(opLookup, raw), slog.Bool("active", summary.Active))...)
	return Result{
		Message: summary.Text(),
		Summary: summary,
	}
}

// record returns the cached row for id or fetches it from the registry.
// Cache failures are logged and bypassed.
func (l *Lookup) record(ctx context.Context, id models.Identifier) (*models.RegistryRecord, bool, error) {
	if l.cache != nil {
		cached, err := l.cache.FindRecord(ctx, id)
		if err == nil {
			return cached, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			l.logger.WarnContext(ctx, "record cache read failed", "error", err)
		}
	}

	record, err := searchRecord(ctx, l.registry, id)
	if err != nil {
		return nil, false, err
	}
	return record, false, nil
}

// saveRecord caches a record that converted cleanly.
func (l *Lookup) saveRecord(ctx context.Context, id models.Identifier, record *models.RegistryRecord) {
	if l.cache == nil {
		return
	}
	if err := l.cache.SaveRecord(ctx, id, record); err != nil {
		l.logger.WarnContext(ctx, "record cache write failed", "error", err)
	}
}
