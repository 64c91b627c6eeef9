package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRequestLog(t *testing.T) {
	ctx := context.Background()
	log := NewInMemoryRequestLog()
	base := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)

	for i, op := range []string{OperationLookup, OperationExtraction, OperationLookup} {
		entry := &RequestEntry{
			UserID:      "alice",
			Operation:   op,
			Query:       "7707083893",
			RequestedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if op == OperationLookup {
			entry.Company = &Company{INN: "7707083893", OGRN: "1027700132195"}
		}
		require.NoError(t, log.Save(ctx, entry))
		assert.NotEqual(t, uuid.Nil, entry.ID)
	}
	require.NoError(t, log.Save(ctx, &RequestEntry{UserID: "bob", Operation: OperationLookup, RequestedAt: base}))

	entries, err := log.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].RequestedAt.After(entries[1].RequestedAt), "newest first")
	assert.Nil(t, entries[1].Company)

	limited, err := log.ListByUser(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := log.ListByUser(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, log.Save(ctx, nil))
}
