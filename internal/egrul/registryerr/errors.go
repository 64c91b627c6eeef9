// Package registryerr classifies EGRUL failures into user, internal and transport kinds.
//
// Both services use this taxonomy to decide whether a failure is shown to the end user
// verbatim, logged and replaced by a generic message, or logged as a registry outage.
// Errors carry their classification as data, so callers check results explicitly
// instead of relying on distinct error types per failure.
package registryerr

import (
	"errors"
	"fmt"
)

// Kind is the coarse failure class that drives user messaging.
type Kind string

const (
	// KindUser failures carry a display-ready message (bad input, nothing found, not ready yet).
	KindUser Kind = "user"

	// KindInternal failures mean the registry contract was violated or the code is wrong.
	KindInternal Kind = "internal"

	// KindTransport failures mean the registry could not be reached or refused the call.
	KindTransport Kind = "transport"
)

// Category is the specific cause of a failure.
type Category string

const (
	CategoryInvalidIdentifier  Category = "invalid_identifier"
	CategoryNoMatch            Category = "no_match"
	CategoryExtractionNotReady Category = "extraction_not_ready"

	CategoryMalformedResponse Category = "malformed_response"
	CategoryInternal          Category = "internal"

	CategoryUnreachable Category = "upstream_unreachable"
	CategoryRejected    Category = "upstream_rejected"
	CategoryTimeout     Category = "timeout"
)

// Kind maps a category onto its failure class.
func (c Category) Kind() Kind {
	switch c {
	case CategoryInvalidIdentifier, CategoryNoMatch, CategoryExtractionNotReady:
		return KindUser
	case CategoryUnreachable, CategoryRejected, CategoryTimeout:
		return KindTransport
	default:
		return KindInternal
	}
}

// User-facing messages. Everything that is not KindUser is shown as MsgInternal.
const (
	MsgInvalidIdentifier  = "Я умею работать только с ИНН или ОГРН"
	MsgNoMatch            = "По этому ИНН/ОГРН ничего не нашлось. Проверьте написание."
	MsgExtractionNotReady = "ЕГРЮЛ не сформировал выписку, попробуйте снова"
	MsgInternal           = "В работе сервиса произошла ошибка. Свяжитесь с автором"
)

// Error is a classified registry failure.
type Error struct {
	Category   Category
	Kind       Kind
	Op         string // registry operation that failed, e.g. "acquire_token"
	Message    string // display text for KindUser, diagnostic text otherwise
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("egrul %s [%s]: %s: %v", e.Op, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("egrul %s [%s]: %s", e.Op, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a classified error. Kind is derived from the category.
func New(category Category, op, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Kind:       category.Kind(),
		Op:         op,
		Message:    message,
		Underlying: underlying,
	}
}

// User creates a user-class error whose message is shown to the end user as is.
func User(category Category, op, message string) *Error {
	return New(category, op, message, nil)
}

// KindOf extracts the failure class. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CategoryOf extracts the failure category. Unclassified errors are internal.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// IsRetryable reports whether asking again later may succeed.
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case CategoryUnreachable, CategoryRejected, CategoryTimeout, CategoryExtractionNotReady:
		return true
	default:
		return false
	}
}

// UserMessage returns the text an end user may see for err.
// Only user-class messages pass through; everything else is replaced by MsgInternal.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindUser && e.Message != "" {
		return e.Message
	}
	return MsgInternal
}
