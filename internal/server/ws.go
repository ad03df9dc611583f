package server

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fanvise/fanvise/go-assistant/internal/assistant"
)

// #region wire-types

type wsIncoming struct {
	Message  string `json:"message"`
	Language string `json:"language"`
	LeagueID string `json:"leagueId"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
}

type wsFrame struct {
	Type      string `json:"type"` // "connected" | "delta" | "final" | "error"
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	Output    string `json:"output,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// #endregion wire-types

// #region ws-handler

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // allow non-browser clients
	}
	return s.origins[origin]
}

// handleWS streams one conversation per connection. The client sends
// messages as JSON; the server answers each with delta frames while the
// model generates, then one final frame carrying the enforced output.
// Deltas are raw model text, so a client rendering them must replace its
// buffer with the final frame's output.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if err := conn.WriteJSON(wsFrame{Type: "connected", SessionID: sessionID}); err != nil {
		log.Printf("[WS] send connected: %v", err)
		return
	}

	for {
		var incoming wsIncoming
		if err := conn.ReadJSON(&incoming); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] closed unexpectedly: %v", err)
			}
			return
		}
		if incoming.Message == "" {
			continue
		}
		s.serveTurn(r.Context(), conn, sessionID, incoming)
	}
}

// serveTurn answers one message on an open connection. The read loop is
// single-threaded, so writes here never race.
func (s *Server) serveTurn(ctx context.Context, conn *websocket.Conn, sessionID string, in wsIncoming) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	q := assistantQuery(sessionID, in)
	if s.sessions != nil {
		stored, err := s.sessions.History(ctx, sessionID)
		if err != nil {
			log.Printf("[WS] session %s: %v", sessionID, err)
		} else {
			q.History = stored
		}
	}

	res, err := s.svc.Respond(ctx, q, func(delta string) {
		if err := conn.WriteJSON(wsFrame{Type: "delta", Text: delta}); err != nil {
			log.Printf("[WS] write delta: %v", err)
		}
	})
	if err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
		return
	}

	if s.sessions != nil {
		if err := s.sessions.Append(ctx, sessionID, in.Message, res.Output); err != nil {
			log.Printf("[WS] append session %s: %v", sessionID, err)
		}
	}
	conn.WriteJSON(wsFrame{Type: "final", Output: res.Output, RequestID: res.RequestID})
}

func assistantQuery(sessionID string, in wsIncoming) assistant.Query {
	return assistant.Query{
		SessionID: sessionID,
		Message:   in.Message,
		Language:  in.Language,
		LeagueID:  in.LeagueID,
		TeamID:    parseTeamID(in.TeamID),
		TeamName:  in.TeamName,
	}
}

// #endregion ws-handler
