package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/client"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
)

// Extraction drives the vyp-request / vyp-status handshake to a download reference.
type Extraction struct {
	registry Registry
	settings
}

// NewExtraction creates an extraction service.
func NewExtraction(registry Registry, opts ...Option) *Extraction {
	return &Extraction{
		registry: registry,
		settings: newSettings(opts),
	}
}

// Document requests an extraction for raw and polls until the registry reports it ready.
//
// The registry may reissue the token in any response; the latest one is always used.
// Status is checked at most pollAttempts times, the initial check included. A job that is
// still pending after that fails with extraction_not_ready so the caller can retry later.
func (e *Extraction) Document(ctx context.Context, raw string) (_ models.DownloadReference, err error) {
	ctx, span := e.tracer.Start(ctx, tracer.SpanExtraction)
	defer func() { span.End(err) }()

	id, err := models.ParseIdentifier(raw)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrIdentifier, tracer.HashIdentifier(id.String())),
		tracer.String(tracer.AttrIdentifierKind, id.Kind()),
	)
	e.metrics.RecordRequest(opExtraction, id.Kind())

	record, err := searchRecord(ctx, e.registry, id)
	if err != nil {
		return "", err
	}
	if record.Token == nil || *record.Token == "" {
		return "", registryerr.New(registryerr.CategoryMalformedResponse, opExtraction, `record is missing key "t"`, nil)
	}
	token := models.ExtractionToken(*record.Token)

	payload, err := e.registry.RequestExtraction(ctx, token, client.PhaseRequest)
	if err != nil {
		return "", err
	}
	token = e.adoptToken(span, token, payload)

	payload, err = e.registry.PollExtractionStatus(ctx, token)
	if err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		if payload.Status == nil {
			return "", registryerr.New(registryerr.CategoryMalformedResponse, opExtraction, `status response is missing key "status"`, nil)
		}
		token = e.adoptToken(span, token, payload)

		status := statusOf(payload)
		e.metrics.RecordPoll(string(status))
		span.SetAttributes(tracer.Int(tracer.AttrAttempt, attempt), tracer.String(tracer.AttrStatus, string(status)))

		if status == models.ExtractionReady {
			return e.registry.DownloadReference(token), nil
		}
		if attempt >= e.pollAttempts {
			return "", registryerr.User(registryerr.CategoryExtractionNotReady, opExtraction, registryerr.MsgExtractionNotReady)
		}

		span.AddEvent(tracer.EventPollWait, tracer.Duration("interval", e.pollInterval))
		if err := wait(ctx, e.pollInterval); err != nil {
			return "", registryerr.New(registryerr.CategoryTimeout, opExtraction, "interrupted while waiting for the extraction", err)
		}

		payload, err = e.registry.PollExtractionStatus(ctx, token)
		if err != nil {
			return "", err
		}
	}
}

// RequestDocument is the boundary form of Document. On success the message is the
// download reference.
func (e *Extraction) RequestDocument(ctx context.Context, raw string) Result {
	ref, err := e.Document(ctx, raw)
	if err != nil {
		return e.fail(ctx, opExtraction, raw, err)
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "egrul extraction ready", logAttrs(opExtraction, raw)...)
	return Result{
		Message:  string(ref),
		Document: ref,
	}
}

// adoptToken returns the token carried by payload when it differs from current.
func (e *Extraction) adoptToken(span tracer.Span, current models.ExtractionToken, payload *models.ExtractionPayload) models.ExtractionToken {
	if payload == nil || payload.Token == nil || *payload.Token == "" {
		return current
	}
	next := models.ExtractionToken(*payload.Token)
	if next == current {
		return current
	}
	e.metrics.RecordTokenRotation()
	span.AddEvent(tracer.EventTokenRotated)
	return next
}

func statusOf(payload *models.ExtractionPayload) models.ExtractionStatus {
	if payload.Status != nil && *payload.Status == string(models.ExtractionReady) {
		return models.ExtractionReady
	}
	return models.ExtractionPending
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
