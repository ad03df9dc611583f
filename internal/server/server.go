package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/assistant"
	"github.com/fanvise/fanvise/go-assistant/internal/generation"
	"github.com/fanvise/fanvise/go-assistant/internal/session"
)

// #region config

// Config holds HTTP server parameters.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DefaultConfig returns default server configuration.
// Reads from env vars: FANVISE_HTTP_ADDR, FANVISE_REQUEST_TIMEOUT,
// FANVISE_WS_ORIGINS (comma-separated).
func DefaultConfig() Config {
	cfg := Config{
		Addr:           ":8090",
		RequestTimeout: 120 * time.Second,
	}
	if v := os.Getenv("FANVISE_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("FANVISE_REQUEST_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.RequestTimeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("FANVISE_WS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

// #endregion config

// #region server

// Server exposes the assistant over HTTP: a JSON chat endpoint, a
// streaming WebSocket, and a health probe.
type Server struct {
	cfg      Config
	svc      *assistant.Service
	sessions *session.Store // optional; nil means stateless requests only
	origins  map[string]bool
}

// New wires a server. sessions may be nil.
func New(cfg Config, svc *assistant.Service, sessions *session.Store) *Server {
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}
	return &Server{cfg: cfg, svc: svc, sessions: sessions, origins: origins}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Run serves until the listener fails or ctx is canceled, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("[HTTP] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// #endregion server

// #region wire-types

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []wireMessage `json:"messages"`
	Language       string        `json:"language"`
	SessionID      string        `json:"sessionId"`
	ActiveLeagueID string        `json:"activeLeagueId"`
	ActiveTeamID   string        `json:"activeTeamId"`
	TeamName       string        `json:"teamName"`
	EvalMode       bool          `json:"evalMode"`
}

type chatResponse struct {
	Output       string   `json:"output"`
	RequestID    string   `json:"request_id"`
	Applied      []string `json:"applied,omitempty"`
	DebugContext []string `json:"debug_context,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// #endregion wire-types

// #region chat-handler

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST only"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	message, history := splitMessages(req.Messages)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "messages must end with a non-empty user message"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	// Server-side history wins over whatever the client replayed.
	if req.SessionID != "" && s.sessions != nil {
		stored, err := s.sessions.History(ctx, req.SessionID)
		if err != nil {
			log.Printf("[HTTP] session %s: %v", req.SessionID, err)
		} else if len(stored) > 0 {
			history = stored
		}
	}

	q := assistant.Query{
		SessionID: req.SessionID,
		Message:   message,
		History:   history,
		Language:  req.Language,
		LeagueID:  req.ActiveLeagueID,
		TeamID:    parseTeamID(req.ActiveTeamID),
		TeamName:  req.TeamName,
	}
	res, err := s.svc.Respond(ctx, q, nil)
	if err != nil {
		writeJSON(w, chatErrorStatus(err), errorResponse{Error: err.Error()})
		return
	}

	if req.SessionID != "" && s.sessions != nil {
		if err := s.sessions.Append(ctx, req.SessionID, message, res.Output); err != nil {
			log.Printf("[HTTP] append session %s: %v", req.SessionID, err)
		}
	}

	resp := chatResponse{
		Output:    res.Output,
		RequestID: res.RequestID,
		Applied:   res.Trace.Applied(),
	}
	if req.EvalMode {
		resp.DebugContext = res.DebugContext
	}
	writeJSON(w, http.StatusOK, resp)
}

// splitMessages takes the transcript's final entry as the new message and
// maps the rest to history. The wire says "assistant"; we say "model".
func splitMessages(msgs []wireMessage) (string, []generation.Turn) {
	if len(msgs) == 0 {
		return "", nil
	}
	last := msgs[len(msgs)-1]
	var history []generation.Turn
	for _, m := range msgs[:len(msgs)-1] {
		switch m.Role {
		case "user":
			history = append(history, generation.Turn{Role: generation.RoleUser, Text: m.Content})
		case "assistant", "model":
			history = append(history, generation.Turn{Role: generation.RoleModel, Text: m.Content})
		}
	}
	return strings.TrimSpace(last.Content), history
}

func parseTeamID(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func chatErrorStatus(err error) int {
	if errors.Is(err, generation.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	var apiErr *generation.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusTooManyRequests {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

// #endregion chat-handler

// #region healthz

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.sessions != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.sessions.Ping(ctx); err != nil {
			status["sessions"] = "unavailable"
		} else {
			status["sessions"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// #endregion healthz

// #region helpers

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] write response: %v", err)
	}
}

// #endregion helpers
