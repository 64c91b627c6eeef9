package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRequestLog keeps the request log in process memory.
// Used in development and tests when no DATABASE_URL is configured.
type InMemoryRequestLog struct {
	mu      sync.RWMutex
	entries []RequestEntry
}

// NewInMemoryRequestLog creates an empty request log.
func NewInMemoryRequestLog() *InMemoryRequestLog {
	return &InMemoryRequestLog{}
}

// Save appends entry, assigning an ID when it has none.
func (l *InMemoryRequestLog) Save(_ context.Context, entry *RequestEntry) error {
	if entry == nil {
		return fmt.Errorf("request entry is required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	if entry.Company != nil {
		company := *entry.Company
		stored.Company = &company
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, stored)
	return nil
}

// ListByUser returns the user's most recent entries, newest first.
// A limit of zero or less returns every entry.
func (l *InMemoryRequestLog) ListByUser(_ context.Context, userID string, limit int) ([]RequestEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []RequestEntry
	for _, e := range l.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored entries.
func (l *InMemoryRequestLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
