package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/assistant"
	"github.com/fanvise/fanvise/go-assistant/internal/generation"
	"github.com/fanvise/fanvise/go-assistant/internal/retry"
	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region fakes

// fakeGen is locked because the handler calls Stream from server
// goroutines while tests inspect captured requests.
type fakeGen struct {
	mu   sync.Mutex
	fn   func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error)
	reqs []generation.Request
}

func (f *fakeGen) Name() string { return "fake" }

func (f *fakeGen) Stream(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeGen) requests() []generation.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generation.Request(nil), f.reqs...)
}

func (f *fakeGen) setFn(fn func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func chunksOf(texts ...string) <-chan generation.Chunk {
	ch := make(chan generation.Chunk, len(texts)+1)
	for _, t := range texts {
		ch <- generation.Chunk{Text: t}
	}
	ch <- generation.Chunk{Done: true}
	close(ch)
	return ch
}

func testServer(t *testing.T, gen *fakeGen, st *store.Store) *httptest.Server {
	t.Helper()
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	svc := assistant.New(gen, "test-model", policy, st)
	srv := New(Config{Addr: ":0", RequestTimeout: 5 * time.Second}, svc, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/chat: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

// #endregion fakes

// #region chat-tests

func TestHandleChat_OK(t *testing.T) {
	gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
		return chunksOf("Hold him for now."), nil
	}}
	ts := testServer(t, gen, nil)

	resp, body := postChat(t, ts, `{
		"messages": [{"role":"user","content":"Should I drop him? There's a rumor about an ACL tear"}],
		"language": "en"
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	output, _ := body["output"].(string)
	if !strings.Contains(strings.ToLower(output), "do not drop") {
		t.Errorf("output missing enforcement: %q", output)
	}
	if rid, _ := body["request_id"].(string); rid == "" {
		t.Error("request_id missing")
	}
	applied, _ := body["applied"].([]any)
	if len(applied) == 0 {
		t.Errorf("applied tags missing: %v", body)
	}
	// evalMode off: no debug context in the payload
	if _, ok := body["debug_context"]; ok {
		t.Error("debug_context should be omitted outside eval mode")
	}
}

func TestHandleChat_HistoryMapping(t *testing.T) {
	gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
		return chunksOf("ok"), nil
	}}
	ts := testServer(t, gen, nil)

	resp, _ := postChat(t, ts, `{
		"messages": [
			{"role":"user","content":"Is Ja playing?"},
			{"role":"assistant","content":"He is questionable."},
			{"role":"user","content":"And Bane?"}
		]
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	req := gen.requests()[0]
	if req.Message != "And Bane?" {
		t.Errorf("message: got %q", req.Message)
	}
	if len(req.History) != 2 {
		t.Fatalf("history: got %d turns", len(req.History))
	}
	if req.History[1].Role != generation.RoleModel {
		t.Errorf("assistant role should map to model, got %q", req.History[1].Role)
	}
}

func TestHandleChat_EvalModeDebugContext(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "srv.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	st.UpsertLeague(store.League{ID: "lg", Name: "L", Season: "2026", Sport: "nba", TotalRosters: 10})
	st.UpsertTeams([]store.Team{{LeagueID: "lg", RosterID: 7, TeamName: "Alley Oops"}})
	st.UpsertPlayers([]store.Player{{ID: "p1", FullName: "Ja Morant", Position: "PG", Team: "MEM"}})
	st.ReplaceRoster("lg", 7, []string{"p1"}, nil)

	gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
		return chunksOf("ok"), nil
	}}
	ts := testServer(t, gen, st)

	resp, body := postChat(t, ts, `{
		"messages": [{"role":"user","content":"Who should I start?"}],
		"activeLeagueId": "lg",
		"activeTeamId": "7",
		"evalMode": true
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	debug, _ := body["debug_context"].([]any)
	if len(debug) == 0 {
		t.Fatalf("debug_context missing: %v", body)
	}
	first, _ := debug[0].(string)
	if !strings.Contains(first, "[TEAM CONTEXT]") || !strings.Contains(first, "Ja Morant") {
		t.Errorf("team block: %q", first)
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
		return chunksOf("ok"), nil
	}}
	ts := testServer(t, gen, nil)

	resp, _ := postChat(t, ts, `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d", resp.StatusCode)
	}

	resp, _ = postChat(t, ts, `{"messages":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty messages: got %d", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d", getResp.StatusCode)
	}
}

func TestHandleChat_BackendFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not-configured", fmt.Errorf("select backend: %w", generation.ErrNotConfigured), http.StatusServiceUnavailable},
		{"rate-limited", &generation.APIError{Backend: "gemini", HTTPStatus: 429, Message: "quota"}, http.StatusTooManyRequests},
		{"upstream-broken", &generation.APIError{Backend: "gemini", HTTPStatus: 500, Message: "boom"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
				return nil, tt.err
			}}
			ts := testServer(t, gen, nil)

			resp, body := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`)
			if resp.StatusCode != tt.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.want)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	gen := &fakeGen{fn: func(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error) {
		return chunksOf("ok"), nil
	}}
	ts := testServer(t, gen, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

// #endregion chat-tests

// #region unit-tests

func TestSplitMessages(t *testing.T) {
	msg, history := splitMessages([]wireMessage{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "  c  "},
	})
	if msg != "c" {
		t.Errorf("message: got %q", msg)
	}
	if len(history) != 2 {
		t.Fatalf("history: got %d", len(history))
	}
	if history[0].Role != generation.RoleUser || history[1].Role != generation.RoleModel {
		t.Errorf("roles: %+v", history)
	}

	if msg, history := splitMessages(nil); msg != "" || history != nil {
		t.Errorf("empty transcript: %q %v", msg, history)
	}
}

func TestParseTeamID(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"7", 7},
		{"abc", 0},
		{"-2", 0},
	}
	for _, tt := range tests {
		if got := parseTeamID(tt.in); got != tt.want {
			t.Errorf("parseTeamID(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FANVISE_HTTP_ADDR", ":9999")
	t.Setenv("FANVISE_WS_ORIGINS", "https://app.example, https://beta.example")

	cfg := DefaultConfig()
	if cfg.Addr != ":9999" {
		t.Errorf("addr: got %q", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://beta.example" {
		t.Errorf("origins: %v", cfg.AllowedOrigins)
	}
}

// #endregion unit-tests
