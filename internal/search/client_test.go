package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-search/internal/models"
)

func parisLyon() models.SearchCriteria {
	return models.SearchCriteria{
		OriginCity:  "Paris",
		DestinyCity: "Lyon",
		Date:        models.Date{Year: 2026, Month: 10, Day: 12},
	}
}

func TestEncodeQueryBaseParameters(t *testing.T) {
	q := Query{Criteria: parisLyon(), Page: 2, Limit: 18, OrderBy: models.OrderPriceAsc}
	v, err := url.ParseQuery(EncodeQuery(q))
	require.NoError(t, err)

	assert.Equal(t, "Paris", v.Get("originCity"))
	assert.Equal(t, "Lyon", v.Get("destinyCity"))
	assert.Equal(t, "2026", v.Get("date.year"))
	assert.Equal(t, "10", v.Get("date.month"))
	assert.Equal(t, "12", v.Get("date.day"))
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "18", v.Get("limit"))
	assert.Equal(t, "PRICE_ASC", v.Get("orderBy"))
}

func TestEncodeQuerySparseFilters(t *testing.T) {
	meta := &models.FiltersMeta{
		Price:    models.Range{Min: 0, Max: 60},
		Duration: models.Range{Min: 30, Max: 480},
	}
	q := Query{
		Criteria: parisLyon(),
		Page:     1,
		Meta:     meta,
		Filters: models.FilterSet{
			ElectricOnly: models.Bool(true),
			PriceMin:     models.Float(0),   // equals global min: omitted
			PriceMax:     models.Float(30),  // tighter: sent
			DurationMax:  models.Float(480), // equals global max: omitted
			RatingMin:    models.Float(4),
		},
	}
	v, err := url.ParseQuery(EncodeQuery(q))
	require.NoError(t, err)

	assert.Equal(t, "true", v.Get("filters.electricOnly"))
	assert.Equal(t, "30", v.Get("filters.priceMax"))
	assert.Equal(t, "4", v.Get("filters.ratingMin"))
	assert.False(t, v.Has("filters.priceMin"), "a key equal to its bound must not be transmitted")
	assert.False(t, v.Has("filters.durationMax"))
	assert.False(t, v.Has("filters.durationMin"))
}

func TestEncodeQueryElectricFalseOmitted(t *testing.T) {
	q := Query{
		Criteria: parisLyon(),
		Page:     1,
		Filters:  models.FilterSet{ElectricOnly: models.Bool(false)},
	}
	v, err := url.ParseQuery(EncodeQuery(q))
	require.NoError(t, err)
	assert.False(t, v.Has("filters.electricOnly"))
}

func TestSearchDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Paris", r.URL.Query().Get("originCity"))
		json.NewEncoder(w).Encode(models.SearchResponse{
			Status:       models.StatusExactMatch,
			Rides:        []models.Ride{{ID: 7}},
			TotalResults: 1,
			FiltersMeta:  models.FiltersMeta{Price: models.Range{Max: 60}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	resp, err := c.Search(context.Background(), Query{Criteria: parisLyon(), Page: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExactMatch, resp.Status)
	require.Len(t, resp.Rides, 1)
	assert.Equal(t, int64(7), resp.Rides[0].ID)
}

func TestSearchInvalidCriteriaPreflight(t *testing.T) {
	c := NewClient("http://backend.invalid", time.Second, nil)
	_, err := c.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestSearchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Search(context.Background(), Query{Criteria: parisLyon(), Page: 1})
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestSearchUnrecognizableAnswerIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream error</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Search(context.Background(), Query{Criteria: parisLyon(), Page: 1})
	var te *TransportError
	assert.ErrorAs(t, err, &te, "a non-JSON error page must never read as NO_MATCH")
}

func TestSearchInvalidRequestIsAResponseNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.SearchResponse{Status: models.StatusInvalidRequest})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	resp, err := c.Search(context.Background(), Query{Criteria: parisLyon(), Page: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalidRequest, resp.Status)
}

func TestSearchNoMatchForcesEmptyRideList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Status is authoritative even over a contradictory payload.
		json.NewEncoder(w).Encode(models.SearchResponse{
			Status: models.StatusNoMatch,
			Rides:  []models.Ride{{ID: 1}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	resp, err := c.Search(context.Background(), Query{Criteria: parisLyon(), Page: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Rides)
}

func TestSearchCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 10*time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Search(ctx, Query{Criteria: parisLyon(), Page: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
