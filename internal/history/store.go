// Package history records executed searches so popular routes and recent
// activity can be reported without touching the search backend.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-search/internal/models"
)

// Record is one executed page-reset search.
type Record struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"sessionId"`
	OriginCity   string             `json:"originCity"`
	DestinyCity  string             `json:"destinyCity"`
	Date         models.Date        `json:"date"`
	Status       models.MatchStatus `json:"status"`
	TotalResults int                `json:"totalResults"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Route names an origin→destiny pair for popularity ranking.
func (r Record) Route() string { return r.OriginCity + "->" + r.DestinyCity }

// Store defines persistence for search records.
type Store interface {
	SaveSearch(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// MemoryStore keeps records in process, newest first. Used when no
// Postgres DSN is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []Record
	cap  int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{cap: capacity}
}

func (m *MemoryStore) SaveSearch(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append([]Record{*rec}, m.recs...)
	if len(m.recs) > m.cap {
		m.recs = m.recs[:m.cap]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.recs) {
		limit = len(m.recs)
	}
	out := make([]Record, limit)
	copy(out, m.recs[:limit])
	return out, nil
}
