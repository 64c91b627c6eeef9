package tracer

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
)

// InstrumentationName is the tracer name registered with the global provider.
const InstrumentationName = "egrul-bot/egrul"

// Exported attribute keys. Registry calls use the OpenTelemetry HTTP convention;
// everything else is namespaced under "egrul.".
const (
	otelIdentifierHash = "egrul.identifier.hash"
	otelIdentifierKind = "egrul.identifier.kind"
	otelErrorKind      = "egrul.error.kind"
	otelErrorCategory  = "error.type"
	otelHTTPStatus     = "http.response.status_code"
)

// otelKeys maps the package's attribute keys to their exported names.
var otelKeys = map[string]string{
	AttrIdentifier:     otelIdentifierHash,
	AttrIdentifierKind: otelIdentifierKind,
	AttrHTTPStatus:     otelHTTPStatus,
	AttrErrorKind:      otelErrorKind,
}

// OTelTracer exports EGRUL spans through OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

// OTelOption configures the OTelTracer.
type OTelOption func(*OTelTracer)

// WithOTelTracer injects a pre-configured OpenTelemetry tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel creates a tracer backed by the global OpenTelemetry provider unless
// another tracer is injected.
func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(InstrumentationName)
	}
	return t
}

// Start opens a span. Registry calls ("egrul.call.*") are client spans; lookups and
// extractions are internal.
func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	kind := trace.SpanKindInternal
	if strings.HasPrefix(name, "egrul.call.") {
		kind = trace.SpanKindClient
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(toOTelAttributes(attrs)...),
	)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

// End tags the span with the failure's kind and category. Only internal and
// transport failures mark the span as an error; a rejected identifier or an
// extraction that is not ready yet is an answer, not a fault.
func (s *otelSpan) End(err error) {
	if err != nil {
		kind := registryerr.KindOf(err)
		s.span.SetAttributes(
			attribute.String(otelErrorKind, string(kind)),
			attribute.String(otelErrorCategory, string(registryerr.CategoryOf(err))),
		)
		if kind != registryerr.KindUser {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, string(registryerr.CategoryOf(err)))
		}
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(toOTelAttributes(attrs)...)
}

func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toOTelAttributes(attrs)...))
}

func otelKey(key string) string {
	if mapped, ok := otelKeys[key]; ok {
		return mapped
	}
	if strings.HasPrefix(key, "egrul.") {
		return key
	}
	return "egrul." + key
}

func toOTelAttributes(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	result := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		key := otelKey(a.Key)
		switch v := a.Value.(type) {
		case string:
			result = append(result, attribute.String(key, v))
		case bool:
			result = append(result, attribute.Bool(key, v))
		case int64:
			result = append(result, attribute.Int64(key, v))
		case int:
			result = append(result, attribute.Int(key, v))
		case float64:
			result = append(result, attribute.Float64(key, v))
		}
	}
	return result
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
