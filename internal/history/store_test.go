package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-search/internal/models"
)

func record(i int) *Record {
	return &Record{
		ID:           fmt.Sprintf("rec-%d", i),
		SessionID:    "s1",
		OriginCity:   "Paris",
		DestinyCity:  "Lyon",
		Date:         models.Date{Year: 2026, Month: 10, Day: 12},
		Status:       models.StatusExactMatch,
		TotalResults: i,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestMemoryStoreNewestFirst(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.SaveSearch(ctx, record(i)))
	}

	recs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec-3", recs[0].ID)
	assert.Equal(t, "rec-2", recs[1].ID)
}

func TestMemoryStoreCapacity(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveSearch(ctx, record(i)))
	}
	recs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "rec-5", recs[0].ID)
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "Paris->Lyon", record(1).Route())
}
