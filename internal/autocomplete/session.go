// Package autocomplete turns a stream of raw text input for one city
// field into a sequence of suggestion lists without flooding the backend
// or racing stale results into the UI.
package autocomplete

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/example/ride-search/internal/observability"
)

const (
	// DefaultQuiet is the debounce window: the timer re-arms on every
	// keystroke and fires once the input has been quiet this long.
	DefaultQuiet = 300 * time.Millisecond
	// DefaultMinChars suppresses queries too short to be useful.
	DefaultMinChars = 3
	// DefaultLimit caps the suggestion list size requested upstream.
	DefaultLimit = 10
)

// Result is one settled suggestion query.
type Result struct {
	Query  string
	Cities []City
	Err    error
}

// Session debounces one city field. Each field (origin, destiny) gets its
// own instance; instances share no cancellation state.
//
// At most one query is outstanding: a newer input cancels the pending
// fetch, and a monotonic request id discards any result of a superseded
// request that completes anyway.
type Session struct {
	fetcher Fetcher
	quiet   time.Duration
	minLen  int
	limit   int
	logger  *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	last   string
	reqID  uint64
	cancel context.CancelFunc
	closed bool

	out chan Result
}

type Option func(*Session)

func WithQuiet(d time.Duration) Option { return func(s *Session) { s.quiet = d } }
func WithMinChars(n int) Option        { return func(s *Session) { s.minLen = n } }
func WithLimit(n int) Option           { return func(s *Session) { s.limit = n } }
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

func NewSession(fetcher Fetcher, opts ...Option) *Session {
	s := &Session{
		fetcher: fetcher,
		quiet:   DefaultQuiet,
		minLen:  DefaultMinChars,
		limit:   DefaultLimit,
		logger:  slog.Default(),
		out:     make(chan Result, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input feeds one raw text event. Consecutive duplicates and inputs
// shorter than the minimum length never reach the backend.
func (s *Session) Input(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || text == s.last {
		return
	}
	s.last = text

	if utf8.RuneCountInString(text) < s.minLen {
		// Too short: silence any armed timer so a previously typed
		// longer query does not fire after the user deleted it.
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	query := text
	s.timer = time.AfterFunc(s.quiet, func() { s.issue(query) })
}

// Results delivers one Result per settled query. Slow receivers drop the
// oldest pending result, never block the typing path.
func (s *Session) Results() <-chan Result { return s.out }

// Close cancels any pending work. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	close(s.out)
}

func (s *Session) issue(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.reqID++
	id := s.reqID
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	observability.AutocompleteQueries.Inc()
	go func() {
		cities, err := s.fetcher.FetchCities(ctx, query, s.limit)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || id != s.reqID {
			// A newer query superseded this one; drop its result.
			return
		}
		s.cancel = nil
		if err != nil && ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("autocomplete query failed", "query", query, "error", err)
		}
		s.deliverLocked(Result{Query: query, Cities: cities, Err: err})
	}()
}

// deliverLocked never blocks the query path: a slow receiver loses the
// oldest pending result instead.
func (s *Session) deliverLocked(r Result) {
	for {
		select {
		case s.out <- r:
			return
		default:
			select {
			case <-s.out:
			default:
			}
		}
	}
}
