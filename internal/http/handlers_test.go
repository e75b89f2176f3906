package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-search/internal/config"
	"github.com/example/ride-search/internal/history"
	"github.com/example/ride-search/internal/logging"
	"github.com/example/ride-search/internal/models"
	"github.com/example/ride-search/internal/search"
)

// autoExec resolves every search immediately with a fixed response.
type autoExec struct {
	resp models.SearchResponse
}

func (a *autoExec) Search(ctx context.Context, q search.Query) (*models.SearchResponse, error) {
	resp := a.resp
	return &resp, nil
}

func newTestServer(t *testing.T) (*Server, *history.MemoryStore) {
	t.Helper()
	cfg, err := config.LoadGatewayConfig()
	require.NoError(t, err)
	store := history.NewMemoryStore(10)
	exec := &autoExec{resp: models.SearchResponse{
		Status:       models.StatusExactMatch,
		Rides:        []models.Ride{{ID: 1, PricePerPerson: 12}},
		TotalResults: 1,
		FiltersMeta:  models.FiltersMeta{Price: models.Range{Max: 60}},
	}}
	return NewServer(cfg, logging.New("error"), Deps{Exec: exec, History: store}), store
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out["sessionId"])
	return out["sessionId"]
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/criteria", models.SearchCriteria{
		OriginCity:  "Paris",
		DestinyCity: "Lyon",
		Date:        models.Date{Year: 2026, Month: 10, Day: 12},
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	// The search settles asynchronously; poll the results endpoint.
	deadline := time.Now().Add(2 * time.Second)
	var payload resultsPayload
	for time.Now().Before(deadline) {
		w = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/results", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		if !payload.IsLoading && len(payload.Rides) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, payload.Rides, 1)
	assert.Equal(t, models.StatusExactMatch, payload.Status)
	assert.True(t, payload.NoMoreResults)
	require.NotNil(t, payload.FiltersMeta)
	assert.Equal(t, 60.0, payload.FiltersMeta.Price.Max)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/results", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIncompleteCriteriaRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/criteria", models.SearchCriteria{
		OriginCity: "Paris",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownOrderRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/order", map[string]string{"orderBy": "CHEAPEST"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/sessions/nope/criteria"},
		{http.MethodPost, "/api/v1/sessions/nope/next-page"},
		{http.MethodGet, "/api/v1/sessions/nope/results"},
		{http.MethodDelete, "/api/v1/sessions/nope"},
	} {
		w := doJSON(t, srv, tc.method, tc.path, map[string]string{})
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAutocompleteFieldValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/autocomplete",
		map[string]string{"field": "via", "text": "Paris"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRecentSearchesRecorded(t *testing.T) {
	srv, store := newTestServer(t)
	id := createSession(t, srv)
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/criteria", models.SearchCriteria{
		OriginCity:  "Paris",
		DestinyCity: "Lyon",
		Date:        models.Date{Year: 2026, Month: 10, Day: 12},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := store.Recent(context.Background(), 10)
		require.NoError(t, err)
		if len(recs) == 1 {
			assert.Equal(t, "Paris", recs[0].OriginCity)
			assert.Equal(t, id, recs[0].SessionID)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("search was never recorded in history")
}
