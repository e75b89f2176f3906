package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/ride-search/internal/autocomplete"
	"github.com/example/ride-search/internal/controller"
	"github.com/example/ride-search/internal/models"
	"github.com/example/ride-search/internal/observability"
	"github.com/example/ride-search/internal/participation"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	e := s.newEngine()
	s.mu.Lock()
	s.engines[e.ID] = e
	s.mu.Unlock()
	observability.SessionsActive.Inc()
	s.logger.Info("session created", "session_id", e.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": e.ID})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	s.mu.Lock()
	e, ok := s.engines[id]
	if ok {
		delete(s.engines, id)
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	e.close()
	observability.SessionsActive.Dec()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var c models.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !c.Valid() {
		http.Error(w, "originCity, destinyCity and date are required", http.StatusUnprocessableEntity)
		return
	}
	e.Store.SetBaseCriteria(c)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var f models.FilterSet
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.Controller.ApplyFilters(f)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	e.Controller.ClearFilters()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetOrder(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body struct {
		OrderBy models.OrderBy `json:"orderBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !body.OrderBy.Valid() {
		http.Error(w, "unknown orderBy value", http.StatusUnprocessableEntity)
		return
	}
	e.Controller.ApplyOrder(body.OrderBy)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if err := e.Controller.LoadNextPage(); err != nil {
		if errors.Is(err, controller.ErrInvalidCriteria) {
			http.Error(w, "no search criteria set", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// resultsPayload is the wire shape of a controller view.
type resultsPayload struct {
	Rides            []ridePayload       `json:"rides"`
	TotalResults     int                 `json:"totalResults"`
	IsLoading        bool                `json:"isLoading"`
	NoMoreResults    bool                `json:"noMoreResults"`
	Status           models.MatchStatus  `json:"status"`
	NoResultsMessage string              `json:"noResultsMessage"`
	FiltersMeta      *models.FiltersMeta `json:"filtersMeta,omitempty"`
	Failed           bool                `json:"failed"`
}

type ridePayload struct {
	models.Ride
	DetailsExpanded   bool `json:"detailsExpanded"`
	UserParticipating bool `json:"userParticipating"`
}

func viewPayload(v controller.View) resultsPayload {
	rides := make([]ridePayload, len(v.Rides))
	for i, r := range v.Rides {
		rides[i] = ridePayload{Ride: r, DetailsExpanded: r.DetailsExpanded, UserParticipating: r.UserParticipating}
	}
	p := resultsPayload{
		Rides:            rides,
		TotalResults:     v.TotalResults,
		IsLoading:        v.IsLoading,
		NoMoreResults:    v.NoMoreResults,
		Status:           v.Status,
		NoResultsMessage: v.NoResultsMessage,
		Failed:           v.Err != nil,
	}
	if v.HasFiltersMeta {
		meta := v.FiltersMeta
		p.FiltersMeta = &meta
	}
	return p
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewPayload(e.Controller.Results()))
}

func (s *Server) handleAutocompleteInput(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body struct {
		Field string `json:"field"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var ac *autocomplete.Session
	switch body.Field {
	case "origin":
		ac = e.Origin
	case "destiny":
		ac = e.Destiny
	default:
		http.Error(w, "field must be origin or destiny", http.StatusUnprocessableEntity)
		return
	}
	ac.Input(body.Text)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleJoinRide(w http.ResponseWriter, r *http.Request) {
	s.handleParticipation(w, r, true)
}

func (s *Server) handleLeaveRide(w http.ResponseWriter, r *http.Request) {
	s.handleParticipation(w, r, false)
}

func (s *Server) handleParticipation(w http.ResponseWriter, r *http.Request, join bool) {
	if s.participation == nil {
		http.Error(w, "participation not configured", http.StatusNotImplemented)
		return
	}
	vars := mux.Vars(r)
	e, ok := s.engine(vars["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	rideID, err := strconv.ParseInt(vars["ride_id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid ride id", http.StatusBadRequest)
		return
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusUnprocessableEntity)
		return
	}
	req := participation.Request{RideID: rideID, UserID: body.UserID}
	if join {
		err = s.participation.Join(r.Context(), req, seatPriceCents(e.Controller.Results(), rideID))
	} else {
		err = s.participation.Leave(r.Context(), req)
	}
	if err != nil {
		s.logger.Warn("participation call failed", "ride_id", rideID, "join", join, "error", err)
		http.Error(w, "participation backend unavailable", http.StatusBadGateway)
		return
	}
	e.Controller.SetParticipating(rideID, join)
	w.WriteHeader(http.StatusNoContent)
}

// handleSettleRide captures the passenger's seat hold after the ride
// has taken place.
func (s *Server) handleSettleRide(w http.ResponseWriter, r *http.Request) {
	if s.participation == nil {
		http.Error(w, "participation not configured", http.StatusNotImplemented)
		return
	}
	vars := mux.Vars(r)
	if _, ok := s.engine(vars["session_id"]); !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	rideID, err := strconv.ParseInt(vars["ride_id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid ride id", http.StatusBadRequest)
		return
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusUnprocessableEntity)
		return
	}
	if err := s.participation.Settle(r.Context(), participation.Request{RideID: rideID, UserID: body.UserID}); err != nil {
		s.logger.Warn("capturing seat hold failed", "ride_id", rideID, "error", err)
		http.Error(w, "payment capture failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func seatPriceCents(v controller.View, rideID int64) int64 {
	for _, ride := range v.Rides {
		if ride.ID == rideID {
			return int64(ride.PricePerPerson * 100)
		}
	}
	return 0
}

func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusNotImplemented)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading search history", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handlePopularRoutes(w http.ResponseWriter, r *http.Request) {
	if s.redis == nil {
		http.Error(w, "popularity ranking not configured", http.StatusNotImplemented)
		return
	}
	entries, err := s.redis.ZRevRangeWithScores(r.Context(), "routes:popular", 0, 9).Result()
	if err != nil {
		s.logger.Error("reading popular routes", "error", err)
		http.Error(w, "ranking unavailable", http.StatusInternalServerError)
		return
	}
	type route struct {
		Route    string  `json:"route"`
		Searches float64 `json:"searches"`
	}
	out := make([]route, 0, len(entries))
	for _, z := range entries {
		name, _ := z.Member.(string)
		out = append(out, route{Route: name, Searches: z.Score})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
