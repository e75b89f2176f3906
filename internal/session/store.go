package session

import (
	"sync"
	"sync/atomic"

	"github.com/example/ride-search/internal/models"
)

// Cause tells subscribers which mutation produced a snapshot. Criteria,
// filter and order changes invalidate accumulated results; a page advance
// does not.
type Cause int

const (
	// CauseNone marks a snapshot pulled outside any notification.
	CauseNone Cause = iota
	CauseCriteria
	CauseFilters
	CauseOrder
	CausePage
	CauseReset
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseCriteria:
		return "criteria"
	case CauseFilters:
		return "filters"
	case CauseOrder:
		return "order"
	case CausePage:
		return "page"
	case CauseReset:
		return "reset"
	}
	return "unknown"
}

// InvalidatesResults reports whether this mutation makes previously
// accumulated pages meaningless.
func (c Cause) InvalidatesResults() bool {
	switch c {
	case CauseCriteria, CauseFilters, CauseOrder, CauseReset:
		return true
	}
	return false
}

// Snapshot is a deep, independent copy of the session state at one
// version. Mutating a snapshot never affects the store.
type Snapshot struct {
	Criteria models.SearchCriteria
	Filters  models.FilterSet
	OrderBy  models.OrderBy
	Page     int
	Version  uint64
	Cause    Cause
}

// Store is the single source of truth for what the user currently wants
// to see. It owns criteria, filters, ordering and page, bumps a monotonic
// version on every mutation, and pushes a snapshot to every subscriber in
// mutation order. No timers, no I/O.
//
// Subscriber callbacks run synchronously on the mutating goroutine and
// must not call back into the store's mutators.
type Store struct {
	mu       sync.Mutex
	criteria models.SearchCriteria
	filters  models.FilterSet
	orderBy  models.OrderBy
	page     int
	version  atomic.Uint64

	nextSubID int
	subs      []subscriber
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

func NewStore() *Store {
	return &Store{page: 1}
}

// SetBaseCriteria starts a semantically new search: filters and ordering
// tuned for the old result set are meaningless for the new one, so both
// are cleared and the page resets to 1.
func (s *Store) SetBaseCriteria(c models.SearchCriteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	s.filters = models.FilterSet{}
	s.orderBy = models.OrderUnset
	s.page = 1
	s.bumpAndNotify(CauseCriteria)
}

// SetFilters replaces the active filter set. Accumulated pages were
// fetched under the old filters, so the page resets to 1.
func (s *Store) SetFilters(f models.FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f.Clone()
	s.page = 1
	s.bumpAndNotify(CauseFilters)
}

// SetOrder replaces the ordering with the same page-reset rule as filters.
func (s *Store) SetOrder(o models.OrderBy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderBy = o
	s.page = 1
	s.bumpAndNotify(CauseOrder)
}

// NextPage advances the page and nothing else. This is the one mutation
// that must not invalidate already-accumulated results.
func (s *Store) NextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page++
	s.bumpAndNotify(CausePage)
}

// AdvancePage is NextPage guarded by a version: the page advances only if
// no other mutation happened since the caller observed expected. Used by
// reactors that advance after a response applies, so a racing filter or
// criteria change is never overwritten.
func (s *Store) AdvancePage(expected uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version.Load() != expected {
		return false
	}
	s.page++
	s.bumpAndNotify(CausePage)
	return true
}

// Reset returns the store to its initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = models.SearchCriteria{}
	s.filters = models.FilterSet{}
	s.orderBy = models.OrderUnset
	s.page = 1
	s.bumpAndNotify(CauseReset)
}

// Snapshot returns a deep, independent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(CauseNone)
}

// Version returns the current session version without taking the store
// lock, so staleness checks may run while a mutation is being delivered.
// Responses issued under an older version are stale and must be discarded.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Subscribe registers fn for every snapshot after a mutation, delivered
// in mutation order with no coalescing. It does not replay the current
// state. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) bumpAndNotify(cause Cause) {
	s.version.Add(1)
	snap := s.snapshotLocked(cause)
	for _, sub := range s.subs {
		sub.fn(snap)
	}
}

func (s *Store) snapshotLocked(cause Cause) Snapshot {
	return Snapshot{
		Criteria: s.criteria,
		Filters:  s.filters.Clone(),
		OrderBy:  s.orderBy,
		Page:     s.page,
		Version:  s.version.Load(),
		Cause:    cause,
	}
}
