// Package httpapi exposes the search-session engine to UI clients: a
// small HTTP surface for mutating a session plus a WebSocket stream
// pushing result and suggestion updates.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-search/internal/autocomplete"
	"github.com/example/ride-search/internal/config"
	"github.com/example/ride-search/internal/controller"
	"github.com/example/ride-search/internal/history"
	"github.com/example/ride-search/internal/ingest"
	"github.com/example/ride-search/internal/models"
	"github.com/example/ride-search/internal/participation"
	"github.com/example/ride-search/internal/search"
	"github.com/example/ride-search/internal/session"
)

// Engine bundles everything one user session owns: the state store, the
// result controller and the two independent autocomplete sessions.
type Engine struct {
	ID         string
	Store      *session.Store
	Controller *controller.Controller
	Origin     *autocomplete.Session
	Destiny    *autocomplete.Session
	CreatedAt  time.Time
}

func (e *Engine) close() {
	e.Controller.Close()
	e.Origin.Close()
	e.Destiny.Close()
}

// Server is the session gateway.
type Server struct {
	cfg    config.GatewayConfig
	logger *slog.Logger

	exec          search.Executor
	cities        autocomplete.Fetcher
	history       history.Store
	producer      *ingest.KafkaProducer
	participation *participation.Client
	redis         *redis.Client

	mu      sync.RWMutex
	engines map[string]*Engine

	mux *mux.Router
}

// Deps carries the collaborators wired in main. Nil fields degrade
// gracefully: no producer means history is written directly, no redis
// means no popularity endpoint.
type Deps struct {
	Exec          search.Executor
	Cities        autocomplete.Fetcher
	History       history.Store
	Producer      *ingest.KafkaProducer
	Participation *participation.Client
	Redis         *redis.Client
}

func NewServer(cfg config.GatewayConfig, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		exec:          deps.Exec,
		cities:        deps.Cities,
		history:       deps.History,
		producer:      deps.Producer,
		participation: deps.Participation,
		redis:         deps.Redis,
		engines:       make(map[string]*Engine),
		mux:           mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{session_id}", s.handleCloseSession).Methods("DELETE")
	api.HandleFunc("/sessions/{session_id}/criteria", s.handleSetCriteria).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/filters", s.handleSetFilters).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/filters", s.handleClearFilters).Methods("DELETE")
	api.HandleFunc("/sessions/{session_id}/order", s.handleSetOrder).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/next-page", s.handleNextPage).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/results", s.handleResults).Methods("GET")
	api.HandleFunc("/sessions/{session_id}/autocomplete", s.handleAutocompleteInput).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/rides/{ride_id}/participation", s.handleJoinRide).Methods("POST")
	api.HandleFunc("/sessions/{session_id}/rides/{ride_id}/participation", s.handleLeaveRide).Methods("DELETE")
	api.HandleFunc("/sessions/{session_id}/rides/{ride_id}/participation/settle", s.handleSettleRide).Methods("POST")
	api.HandleFunc("/searches/recent", s.handleRecentSearches).Methods("GET")
	api.HandleFunc("/routes/popular", s.handlePopularRoutes).Methods("GET")

	s.mux.HandleFunc("/ws/{session_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

// newEngine builds one session's engine. Applied reset searches are
// recorded: through Kafka when configured, straight to the history store
// otherwise.
func (s *Server) newEngine() *Engine {
	id := uuid.NewString()
	store := session.NewStore()
	ctrl := controller.New(store, s.exec, s.logger.With("session_id", id), controller.Options{
		PageLimit:      s.cfg.PageLimit,
		OnResetApplied: s.recordSearch(id),
	})
	acOpts := []autocomplete.Option{
		autocomplete.WithQuiet(s.cfg.AutocompleteQuiet),
		autocomplete.WithLimit(s.cfg.AutocompleteLimit),
		autocomplete.WithLogger(s.logger),
	}
	e := &Engine{
		ID:         id,
		Store:      store,
		Controller: ctrl,
		Origin:     autocomplete.NewSession(s.cities, acOpts...),
		Destiny:    autocomplete.NewSession(s.cities, acOpts...),
		CreatedAt:  time.Now(),
	}
	ctrl.Start()
	return e
}

func (s *Server) engine(id string) (*Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[id]
	return e, ok
}

func (s *Server) recordSearch(sessionID string) func(session.Snapshot, *models.SearchResponse) {
	return func(snap session.Snapshot, resp *models.SearchResponse) {
		rec := &history.Record{
			ID:           uuid.NewString(),
			SessionID:    sessionID,
			OriginCity:   snap.Criteria.OriginCity,
			DestinyCity:  snap.Criteria.DestinyCity,
			Date:         snap.Criteria.Date,
			Status:       resp.Status,
			TotalResults: resp.TotalResults,
			CreatedAt:    time.Now().UTC(),
		}
		if s.producer != nil {
			if err := s.producer.PublishSearch(rec); err != nil {
				s.logger.Warn("publishing search event", "error", err)
			}
			return
		}
		if s.history != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.history.SaveSearch(ctx, rec); err != nil {
				s.logger.Warn("recording search", "error", err)
			}
		}
	}
}
