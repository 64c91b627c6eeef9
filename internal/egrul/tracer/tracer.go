// Package tracer provides a small tracing abstraction for the EGRUL module.
//
// The registry client and services open spans through the Tracer interface and never
// import OpenTelemetry directly. NoopTracer is used in tests and when tracing is off;
// OTelTracer forwards to the global OpenTelemetry provider.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashIdentifier returns a short SHA-256 prefix of an INN/OGRN so traces and logs
// can be correlated without storing the number itself.
func HashIdentifier(identifier string) string {
	if identifier == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the EGRUL module.
const (
	SpanLookup         = "egrul.lookup"
	SpanExtraction     = "egrul.extraction"
	SpanAcquireToken   = "egrul.call.acquire_token"
	SpanFetchRecord    = "egrul.call.fetch_record"
	SpanExtractionCall = "egrul.call.extraction"
	SpanHealth         = "egrul.call.health"
)

// Attribute keys used by the EGRUL module.
const (
	AttrIdentifier     = "identifier_hash"
	AttrIdentifierKind = "identifier_kind"
	AttrPhase          = "extraction.phase"
	AttrAttempt        = "extraction.attempt"
	AttrStatus         = "extraction.status"
	AttrCacheHit       = "cache.hit"
	AttrHTTPStatus     = "http.status_code"
	AttrErrorKind      = "error.kind"
)

// Event names used by the EGRUL module.
const (
	EventTokenRotated = "extraction.token_rotated"
	EventPollWait     = "extraction.poll_wait"
)
