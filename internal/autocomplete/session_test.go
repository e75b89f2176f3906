package autocomplete

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher records queries and lets tests gate each response.
type scriptedFetcher struct {
	mu      sync.Mutex
	queries []string
	gates   map[string]chan struct{} // optional per-query gate
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{gates: make(map[string]chan struct{})}
}

func (f *scriptedFetcher) gate(query string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[query] = g
	return g
}

func (f *scriptedFetcher) FetchCities(ctx context.Context, query string, limit int) ([]City, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	g := f.gates[query]
	f.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []City{{Name: query + "-ville", Code: "75000"}}, nil
}

func (f *scriptedFetcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

func waitResult(t *testing.T, s *Session) Result {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a suggestion result")
		return Result{}
	}
}

func TestDebounceFiresOnceAfterQuietPeriod(t *testing.T) {
	f := newScriptedFetcher()
	s := NewSession(f, WithQuiet(40*time.Millisecond))
	defer s.Close()

	// Rapid typing: only the final input reaches the backend.
	s.Input("Par")
	s.Input("Pari")
	s.Input("Paris")

	r := waitResult(t, s)
	assert.Equal(t, "Paris", r.Query)
	require.Len(t, r.Cities, 1)
	assert.Equal(t, "Paris-ville", r.Cities[0].Name)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"Paris"}, f.seen())
}

func TestShortInputSuppressed(t *testing.T) {
	f := newScriptedFetcher()
	s := NewSession(f, WithQuiet(20*time.Millisecond))
	defer s.Close()

	s.Input("P")
	s.Input("Pa")
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, f.seen())
}

func TestDeletingBelowMinimumDisarmsPendingQuery(t *testing.T) {
	f := newScriptedFetcher()
	s := NewSession(f, WithQuiet(40*time.Millisecond))
	defer s.Close()

	s.Input("Lyon")
	s.Input("Ly") // deleted back under the minimum before the timer fired
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, f.seen())
}

func TestDuplicateConsecutiveInputIgnored(t *testing.T) {
	f := newScriptedFetcher()
	s := NewSession(f, WithQuiet(20*time.Millisecond))
	defer s.Close()

	s.Input("Lyon")
	waitResult(t, s)

	// Same text again: no new query, no new result.
	s.Input("Lyon")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"Lyon"}, f.seen())
	select {
	case r := <-s.Results():
		t.Fatalf("unexpected result for duplicate input: %+v", r)
	default:
	}
}

func TestSupersededQueryResultDropped(t *testing.T) {
	f := newScriptedFetcher()
	slow := f.gate("Marseille")
	s := NewSession(f, WithQuiet(20*time.Millisecond))
	defer s.Close()

	s.Input("Marseille")
	time.Sleep(50 * time.Millisecond) // let the first query get in flight

	s.Input("Montpellier")
	r := waitResult(t, s)
	assert.Equal(t, "Montpellier", r.Query)

	// The older query finally "completes"; its result must never surface.
	close(slow)
	time.Sleep(50 * time.Millisecond)
	select {
	case r := <-s.Results():
		t.Fatalf("stale suggestion surfaced: %+v", r)
	default:
	}
}

func TestTwoFieldsShareNoCancellationState(t *testing.T) {
	fo := newScriptedFetcher()
	fd := newScriptedFetcher()
	origin := NewSession(fo, WithQuiet(20*time.Millisecond))
	destiny := NewSession(fd, WithQuiet(20*time.Millisecond))
	defer origin.Close()
	defer destiny.Close()

	origin.Input("Paris")
	destiny.Input("Lyon")

	ro := waitResult(t, origin)
	rd := waitResult(t, destiny)
	assert.Equal(t, "Paris", ro.Query)
	assert.Equal(t, "Lyon", rd.Query)
}

func TestInputAfterCloseIsNoop(t *testing.T) {
	f := newScriptedFetcher()
	s := NewSession(f, WithQuiet(10*time.Millisecond))
	s.Close()
	s.Input("Paris")
	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, f.seen())
}
