package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/ride-search/internal/autocomplete"
	"github.com/example/ride-search/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsEvent is one frame pushed to the UI: either a results update or a
// settled autocomplete query for one field.
type wsEvent struct {
	Type        string              `json:"type"` // "results" | "suggestions"
	Results     *resultsPayload     `json:"results,omitempty"`
	Field       string              `json:"field,omitempty"`
	Query       string              `json:"query,omitempty"`
	Suggestions []autocomplete.City `json:"suggestions,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// handleWS streams controller updates and autocomplete results to one
// client. The socket is write-only from the server's perspective; session
// mutations arrive over the HTTP endpoints.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	observability.WSConnections.Inc()
	defer observability.WSConnections.Dec()
	defer conn.Close()

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial state so the client does not wait for the first change.
	if err := s.writeEvent(conn, resultsEvent(e)); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-e.Controller.Updates():
			if !ok {
				return
			}
			if err := s.writeEvent(conn, resultsEvent(e)); err != nil {
				return
			}
		case res, ok := <-e.Origin.Results():
			if !ok {
				return
			}
			if err := s.writeEvent(conn, suggestionsEvent("origin", res)); err != nil {
				return
			}
		case res, ok := <-e.Destiny.Results():
			if !ok {
				return
			}
			if err := s.writeEvent(conn, suggestionsEvent("destiny", res)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev wsEvent) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}

func resultsEvent(e *Engine) wsEvent {
	p := viewPayload(e.Controller.Results())
	return wsEvent{Type: "results", Results: &p}
}

func suggestionsEvent(field string, res autocomplete.Result) wsEvent {
	ev := wsEvent{Type: "suggestions", Field: field, Query: res.Query, Suggestions: res.Cities}
	if res.Err != nil {
		ev.Error = "suggestions unavailable"
	}
	return ev
}
