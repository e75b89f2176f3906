package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ride-search/internal/models"
)

// ErrInvalidCriteria is returned before any request is issued when the
// base criteria are incomplete.
var ErrInvalidCriteria = errors.New("search: criteria missing origin, destiny or date")

// TransportError wraps a network failure or an unrecognizable backend
// answer. It is never conflated with a NO_MATCH response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "search: transport failure: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Query is one fully-resolved request tuple. Meta, when known, is the
// bounds of the unfiltered result set; filter keys equal to their bound
// are not transmitted.
type Query struct {
	Criteria models.SearchCriteria
	Filters  models.FilterSet
	OrderBy  models.OrderBy
	Page     int
	Limit    int
	Meta     *models.FiltersMeta
}

// Executor issues exactly one backend request per call. Implementations
// must be safe for concurrent use and honor context cancellation: a
// cancelled call returns the context error and mutates nothing.
type Executor interface {
	Search(ctx context.Context, q Query) (*models.SearchResponse, error)
}

// Client is the HTTP executor against the carpooling backend's search API.
// It is stateless; every call stands alone.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) Search(ctx context.Context, q Query) (*models.SearchResponse, error) {
	if !q.Criteria.Valid() {
		return nil, ErrInvalidCriteria
	}

	u := c.baseURL + "?" + EncodeQuery(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var out models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decoding response (http %d): %w", resp.StatusCode, err)}
	}
	switch out.Status {
	case models.StatusExactMatch, models.StatusFutureMatch, models.StatusNoMatch, models.StatusInvalidRequest:
	default:
		return nil, &TransportError{Err: fmt.Errorf("unrecognized status %q (http %d)", out.Status, resp.StatusCode)}
	}
	// Status is authoritative over the ride list.
	if out.Status == models.StatusNoMatch {
		out.Rides = nil
	}
	if c.logger != nil {
		c.logger.Debug("search completed",
			"origin", q.Criteria.OriginCity,
			"destiny", q.Criteria.DestinyCity,
			"page", q.Page,
			"status", string(out.Status),
			"rides", len(out.Rides),
		)
	}
	return &out, nil
}

// EncodeQuery serializes a query tuple as URL parameters. Filter keys are
// sparse-diff encoded: a key is included only when it differs from the
// corresponding FiltersMeta bound, so the backend's own defaulting is
// never over-constrained. Booleans are "true" or omitted, numbers are
// decimal strings.
func EncodeQuery(q Query) string {
	v := url.Values{}
	v.Set("originCity", q.Criteria.OriginCity)
	v.Set("destinyCity", q.Criteria.DestinyCity)
	v.Set("date.year", strconv.Itoa(q.Criteria.Date.Year))
	v.Set("date.month", strconv.Itoa(q.Criteria.Date.Month))
	v.Set("date.day", strconv.Itoa(q.Criteria.Date.Day))
	v.Set("page", strconv.Itoa(q.Page))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.OrderBy != models.OrderUnset {
		v.Set("orderBy", string(q.OrderBy))
	}

	f := q.Filters
	if f.ElectricOnly != nil && *f.ElectricOnly {
		v.Set("filters.electricOnly", "true")
	}
	setBounded(v, "filters.priceMin", f.PriceMin, metaMin(q.Meta, func(m *models.FiltersMeta) models.Range { return m.Price }))
	setBounded(v, "filters.priceMax", f.PriceMax, metaMax(q.Meta, func(m *models.FiltersMeta) models.Range { return m.Price }))
	setBounded(v, "filters.durationMin", f.DurationMin, metaMin(q.Meta, func(m *models.FiltersMeta) models.Range { return m.Duration }))
	setBounded(v, "filters.durationMax", f.DurationMax, metaMax(q.Meta, func(m *models.FiltersMeta) models.Range { return m.Duration }))
	if f.RatingMin != nil && *f.RatingMin > ratingFloor(q.Meta) {
		v.Set("filters.ratingMin", formatNumber(*f.RatingMin))
	}
	return v.Encode()
}

func setBounded(v url.Values, key string, val *float64, bound *float64) {
	if val == nil {
		return
	}
	if bound != nil && *val == *bound {
		return
	}
	v.Set(key, formatNumber(*val))
}

func metaMin(m *models.FiltersMeta, pick func(*models.FiltersMeta) models.Range) *float64 {
	if m == nil {
		return nil
	}
	r := pick(m)
	return &r.Min
}

func metaMax(m *models.FiltersMeta, pick func(*models.FiltersMeta) models.Range) *float64 {
	if m == nil {
		return nil
	}
	r := pick(m)
	return &r.Max
}

func ratingFloor(m *models.FiltersMeta) float64 {
	if m != nil && m.Rating != nil {
		return m.Rating.Min
	}
	return 0
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
