package combine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// #region config

// Defaults fill in per-case request fields the dataset leaves blank.
type Defaults struct {
	ActiveTeamID   string
	ActiveLeagueID string
	TeamName       string
	Language       string
}

// Config holds runner settings for a combine run.
type Config struct {
	APIURL   string
	Timeout  time.Duration
	Retries  int // extra attempts after the first
	Defaults Defaults
}

// DefaultConfig returns default runner configuration.
// Reads from env vars: FANVISE_API_URL, FANVISE_API_TIMEOUT_SECONDS,
// FANVISE_API_RETRIES, FANVISE_EVAL_ACTIVE_TEAM_ID,
// FANVISE_EVAL_ACTIVE_LEAGUE_ID, FANVISE_EVAL_TEAM_NAME,
// FANVISE_EVAL_LANGUAGE.
func DefaultConfig() Config {
	cfg := Config{
		APIURL:  "http://localhost:8090/api/chat",
		Timeout: 60 * time.Second,
		Retries: 1,
	}
	if v := os.Getenv("FANVISE_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("FANVISE_API_TIMEOUT_SECONDS"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("FANVISE_API_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retries = n
		}
	}
	cfg.Defaults.ActiveTeamID = os.Getenv("FANVISE_EVAL_ACTIVE_TEAM_ID")
	cfg.Defaults.ActiveLeagueID = os.Getenv("FANVISE_EVAL_ACTIVE_LEAGUE_ID")
	cfg.Defaults.TeamName = os.Getenv("FANVISE_EVAL_TEAM_NAME")
	cfg.Defaults.Language = os.Getenv("FANVISE_EVAL_LANGUAGE")
	return cfg
}

// #endregion config

// #region wire-types

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiPayload struct {
	Messages       []apiMessage `json:"messages"`
	EvalMode       bool         `json:"evalMode"`
	ActiveTeamID   string       `json:"activeTeamId,omitempty"`
	ActiveLeagueID string       `json:"activeLeagueId,omitempty"`
	TeamName       string       `json:"teamName,omitempty"`
	Language       string       `json:"language,omitempty"`
}

type apiReply struct {
	Output       string   `json:"output"`
	DebugContext []string `json:"debug_context"`
}

// #endregion wire-types

// #region runner

// Runner drives a golden dataset against a running chat endpoint and
// applies the per-category rule checks to each answer.
type Runner struct {
	cfg    Config
	client *http.Client
}

// NewRunner creates a runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Run evaluates every case in order. An API failure marks that case
// failed and the run continues.
func (r *Runner) Run(ctx context.Context, cases []Case) []CaseResult {
	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		results = append(results, r.runCase(ctx, c))
	}
	return results
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	res := CaseResult{
		ID:        c.ID,
		Category:  c.Category,
		RiskLevel: c.RiskLevel,
		Criteria:  c.Criteria,
	}

	reply, err := r.query(ctx, c)
	if err != nil {
		res.Err = err.Error()
		res.Reason = fmt.Sprintf("api call failed: %v", err)
		return res
	}
	res.Output = reply.Output
	res.ContextItems = len(reply.DebugContext)
	res.Passed, res.Reason = CheckCase(c, reply.Output)
	return res
}

func (r *Runner) query(ctx context.Context, c Case) (*apiReply, error) {
	payload := apiPayload{
		Messages:       []apiMessage{{Role: "user", Content: c.Input}},
		EvalMode:       true,
		ActiveTeamID:   orDefault(c.ActiveTeamID, r.cfg.Defaults.ActiveTeamID),
		ActiveLeagueID: orDefault(c.ActiveLeagueID, r.cfg.Defaults.ActiveLeagueID),
		TeamName:       orDefault(c.TeamName, r.cfg.Defaults.TeamName),
		Language:       orDefault(c.Language, r.cfg.Defaults.Language),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	attempts := r.cfg.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		reply, err := r.post(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if attempt < attempts {
			log.Printf("[COMBINE] case %s attempt %d/%d failed: %v", c.ID, attempt, attempts, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (r *Runner) post(ctx context.Context, body []byte) (*apiReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", r.cfg.APIURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}
	var reply apiReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &reply, nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// #endregion runner
