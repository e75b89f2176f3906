// Package controller orchestrates the session store and the search
// executor: it cancels superseded requests, accumulates paginated
// results, and derives the user-facing status of the current search.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/ride-search/internal/messages"
	"github.com/example/ride-search/internal/models"
	"github.com/example/ride-search/internal/observability"
	"github.com/example/ride-search/internal/search"
	"github.com/example/ride-search/internal/session"
)

// ErrInvalidCriteria mirrors the executor's pre-flight error for callers
// that paginate before any base criteria exist.
var ErrInvalidCriteria = search.ErrInvalidCriteria

// View is a read-only copy of the aggregated state. Rides is an
// independent slice; mutating it never affects the controller.
type View struct {
	Rides            []models.Ride
	TotalResults     int
	IsLoading        bool
	NoMoreResults    bool
	Status           models.MatchStatus
	NoResultsMessage string
	FiltersMeta      models.FiltersMeta
	HasFiltersMeta   bool
	Err              error
}

// Options tunes a controller. The zero value is usable.
type Options struct {
	// PageLimit is the page size requested from the backend.
	PageLimit int
	// OnResetApplied, when set, is invoked after each applied page-reset
	// response, outside the controller's lock. Used to record executed
	// searches (history, event stream).
	OnResetApplied func(snap session.Snapshot, resp *models.SearchResponse)
}

const defaultPageLimit = 18

// Controller is the only writer of the accumulated ride list and the
// isLoading/noMoreResults flags. One instance serves one session store.
type Controller struct {
	store  *session.Store
	exec   search.Executor
	logger *slog.Logger
	opts   Options

	mu            sync.Mutex
	rides         []models.Ride
	totalResults  int
	isLoading     bool
	noMoreResults bool
	status        models.MatchStatus
	noResultsMsg  string
	filtersMeta   models.FiltersMeta
	metaKnown     bool
	lastErr       error
	cancel        context.CancelFunc

	baseCtx     context.Context
	unsubscribe func()
	updates     chan struct{}
}

func New(store *session.Store, exec search.Executor, logger *slog.Logger, opts Options) *Controller {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:   store,
		exec:    exec,
		logger:  logger,
		opts:    opts,
		baseCtx: context.Background(),
		updates: make(chan struct{}, 1),
	}
}

// Start subscribes to the session store and, when criteria are already
// present, issues the initial search. Pair with Close.
func (c *Controller) Start() {
	c.unsubscribe = c.store.Subscribe(c.onStateChange)
	snap := c.store.Snapshot()
	if snap.Criteria.Valid() {
		c.beginResetSearch(snap)
	}
}

// Close cancels any in-flight request and detaches from the store.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

// Updates signals after every applied change; receivers pull the current
// state with Results. The channel coalesces bursts.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

// Results returns a read-only copy of the aggregated state.
func (c *Controller) Results() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	rides := make([]models.Ride, len(c.rides))
	copy(rides, c.rides)
	return View{
		Rides:            rides,
		TotalResults:     c.totalResults,
		IsLoading:        c.isLoading,
		NoMoreResults:    c.noMoreResults,
		Status:           c.status,
		NoResultsMessage: c.noResultsMsg,
		FiltersMeta:      c.filtersMeta,
		HasFiltersMeta:   c.metaKnown,
		Err:              c.lastErr,
	}
}

// ApplyFilters replaces the active filter set; the store notification
// triggers the page-reset search.
func (c *Controller) ApplyFilters(f models.FilterSet) { c.store.SetFilters(f) }

// ApplyOrder replaces the ordering with the same reset rule as filters.
func (c *Controller) ApplyOrder(o models.OrderBy) { c.store.SetOrder(o) }

// ClearFilters removes every constraint. Filter bounds in the UI fall
// back to the FiltersMeta of the new result set, and since filters are
// sparse-diff encoded an empty set carries no keys at all.
func (c *Controller) ClearFilters() { c.store.SetFilters(models.FilterSet{}) }

// LoadNextPage issues a pagination fetch appending to the accumulated
// list. It is a no-op while a request is in flight or when the backend
// has no further results. A transport failure leaves noMoreResults
// unchanged, so the caller may retry.
func (c *Controller) LoadNextPage() error {
	// Snapshot before taking c.mu: store mutations notify subscribers
	// while holding the store mutex, and those callbacks take c.mu.
	snap := c.store.Snapshot()
	c.mu.Lock()
	if c.isLoading || c.noMoreResults {
		c.mu.Unlock()
		return nil
	}
	if !snap.Criteria.Valid() {
		c.mu.Unlock()
		return ErrInvalidCriteria
	}
	if snap.Version != c.store.Version() {
		// A mutation raced the snapshot; its reset search supersedes
		// this page.
		c.mu.Unlock()
		return nil
	}
	c.isLoading = true
	c.lastErr = nil
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.mu.Unlock()
	c.signal()

	observability.SearchesTotal.WithLabelValues("page").Inc()
	go c.fetch(ctx, snap, false)
	return nil
}

// ToggleDetails flips the transient expanded flag of one ride.
func (c *Controller) ToggleDetails(rideID int64) {
	c.mu.Lock()
	for i := range c.rides {
		if c.rides[i].ID == rideID {
			c.rides[i].DetailsExpanded = !c.rides[i].DetailsExpanded
			break
		}
	}
	c.mu.Unlock()
	c.signal()
}

// SetParticipating records the transient participation flag of one ride.
func (c *Controller) SetParticipating(rideID int64, participating bool) {
	c.mu.Lock()
	for i := range c.rides {
		if c.rides[i].ID == rideID {
			c.rides[i].UserParticipating = participating
			break
		}
	}
	c.mu.Unlock()
	c.signal()
}

// onStateChange runs synchronously on the mutating goroutine, in FIFO
// mutation order. Pagination advances never restart the search; every
// other mutation does.
func (c *Controller) onStateChange(snap session.Snapshot) {
	if !snap.Cause.InvalidatesResults() {
		return
	}
	c.beginResetSearch(snap)
}

func (c *Controller) beginResetSearch(snap session.Snapshot) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.rides = nil
	c.totalResults = 0
	c.noMoreResults = false
	c.noResultsMsg = ""
	c.lastErr = nil
	if !snap.Criteria.Valid() {
		// Nothing searchable yet; settle back to idle.
		c.isLoading = false
		c.status = ""
		c.mu.Unlock()
		c.signal()
		return
	}
	c.isLoading = true
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.mu.Unlock()
	c.signal()

	observability.SearchesTotal.WithLabelValues("reset").Inc()
	go c.fetch(ctx, snap, true)
}

// fetch performs one request stamped with the session version at issue
// time. The response is applied only if that version is still current at
// completion; superseded arrivals are dropped no matter when they land.
func (c *Controller) fetch(ctx context.Context, snap session.Snapshot, reset bool) {
	q := search.Query{
		Criteria: snap.Criteria,
		Filters:  snap.Filters,
		OrderBy:  snap.OrderBy,
		Page:     snap.Page,
		Limit:    c.opts.PageLimit,
	}
	if meta, ok := c.knownMeta(); ok {
		q.Meta = &meta
	}

	resp, err := c.exec.Search(ctx, q)

	c.mu.Lock()
	if snap.Version != c.store.Version() {
		c.mu.Unlock()
		observability.StaleResponsesDropped.Inc()
		c.logger.Debug("stale response dropped", "issued_version", snap.Version)
		return
	}
	if err != nil {
		c.cancel = nil
		c.isLoading = false
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return
		}
		// Prior results stay visible; no automatic retry.
		c.lastErr = err
		c.mu.Unlock()
		observability.TransportFailures.Inc()
		c.logger.Warn("search failed", "page", snap.Page, "error", err)
		c.signal()
		return
	}

	fresh := make([]models.Ride, len(resp.Rides))
	copy(fresh, resp.Rides)
	for i := range fresh {
		fresh[i].DetailsExpanded = false
		fresh[i].UserParticipating = false
	}
	if reset {
		c.rides = fresh
		c.filtersMeta = resp.FiltersMeta
		c.metaKnown = true
	} else {
		c.rides = append(c.rides, fresh...)
	}
	c.totalResults = resp.TotalResults
	c.status = resp.Status
	c.noMoreResults = len(c.rides) >= resp.TotalResults
	if resp.Status == models.StatusNoMatch {
		c.noResultsMsg = messages.BuildNoResults(snap.Filters, c.filtersMeta)
	} else {
		c.noResultsMsg = ""
	}
	c.isLoading = false
	c.cancel = nil
	c.mu.Unlock()

	// Advance only if no newer mutation raced the apply.
	c.store.AdvancePage(snap.Version)
	c.signal()

	if reset && c.opts.OnResetApplied != nil {
		c.opts.OnResetApplied(snap, resp)
	}
}

func (c *Controller) knownMeta() (models.FiltersMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filtersMeta, c.metaKnown
}

func (c *Controller) signal() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
