// Package store holds the record cache and the request log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mark-rom/egrul-bot/internal/egrul/models"
)

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// Operation names recorded in the request log.
const (
	OperationLookup     = "lookup"
	OperationExtraction = "extraction"
)

// Company is the registry entity a request resolved to.
type Company struct {
	INN            string
	OGRN           string
	SoleProprietor bool
}

// RequestEntry is one handled request. Company is nil when the flow did not produce a
// summary (extractions only carry the identifier that was asked for).
type RequestEntry struct {
	ID          uuid.UUID
	UserID      string
	Operation   string
	Query       string
	Company     *Company
	RequestedAt time.Time
}

// CompanyFromSummary extracts the loggable company identity from a summary.
func CompanyFromSummary(s *models.CompanySummary) *Company {
	if s == nil {
		return nil
	}
	return &Company{
		INN:            s.INN,
		OGRN:           s.OGRN,
		SoleProprietor: s.Kind == models.KindIndividual,
	}
}

// RequestLog records which user asked about which company and when.
type RequestLog interface {
	Save(ctx context.Context, entry *RequestEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]RequestEntry, error)
}
