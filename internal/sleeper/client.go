package sleeper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// #region config

// Config holds Sleeper API parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns default Sleeper client configuration.
// Reads from env vars: SLEEPER_BASE_URL, SLEEPER_TIMEOUT.
func DefaultConfig() Config {
	cfg := Config{
		BaseURL: "https://api.sleeper.app",
		Timeout: 30 * time.Second,
	}
	if v := os.Getenv("SLEEPER_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("SLEEPER_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// #endregion config

// #region wire-types

// LeagueInfo mirrors the platform's league object.
type LeagueInfo struct {
	LeagueID        string             `json:"league_id"`
	Name            string             `json:"name"`
	Season          string             `json:"season"`
	Sport           string             `json:"sport"`
	TotalRosters    int                `json:"total_rosters"`
	ScoringSettings map[string]float64 `json:"scoring_settings"`
}

// Roster is one team's roster as the platform reports it. Players holds
// every rostered player ID; Starters is the subset in the active lineup.
type Roster struct {
	RosterID int            `json:"roster_id"`
	OwnerID  string         `json:"owner_id"`
	LeagueID string         `json:"league_id"`
	Players  []string       `json:"players"`
	Starters []string       `json:"starters"`
	Settings RosterSettings `json:"settings"`
}

// RosterSettings carries a roster's season record.
type RosterSettings struct {
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Ties   int     `json:"ties"`
	Fpts   float64 `json:"fpts"`
}

// User is a league member.
type User struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Metadata    struct {
		TeamName string `json:"team_name"`
	} `json:"metadata"`
}

// PlayerInfo is one entry in the platform's player pool.
type PlayerInfo struct {
	PlayerID     string `json:"player_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	FullName     string `json:"full_name"`
	Position     string `json:"position"`
	Team         string `json:"team"`
	Status       string `json:"status"`
	InjuryStatus string `json:"injury_status"`
	InjuryNotes  string `json:"injury_notes"`
}

// Name returns the display name, composing it from the parts when the
// pool omits full_name.
func (p PlayerInfo) Name() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// #endregion wire-types

// #region client

// Client talks to the Sleeper read-only HTTP API. No authentication is
// required; all endpoints are public GETs.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Sleeper client per cfg.
func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// League fetches one league's metadata.
func (c *Client) League(ctx context.Context, leagueID string) (LeagueInfo, error) {
	var out LeagueInfo
	err := c.getJSON(ctx, "/v1/league/"+leagueID, &out)
	if err != nil {
		return LeagueInfo{}, fmt.Errorf("fetch league %s: %w", leagueID, err)
	}
	return out, nil
}

// Rosters fetches a league's rosters.
func (c *Client) Rosters(ctx context.Context, leagueID string) ([]Roster, error) {
	var out []Roster
	err := c.getJSON(ctx, "/v1/league/"+leagueID+"/rosters", &out)
	if err != nil {
		return nil, fmt.Errorf("fetch rosters for %s: %w", leagueID, err)
	}
	return out, nil
}

// Users fetches a league's members.
func (c *Client) Users(ctx context.Context, leagueID string) ([]User, error) {
	var out []User
	err := c.getJSON(ctx, "/v1/league/"+leagueID+"/users", &out)
	if err != nil {
		return nil, fmt.Errorf("fetch users for %s: %w", leagueID, err)
	}
	return out, nil
}

// Players fetches the full player pool for a sport, keyed by player ID.
// The payload is large (several MB), so callers should fetch it once per
// sync pass, not per request.
func (c *Client) Players(ctx context.Context, sport string) (map[string]PlayerInfo, error) {
	var out map[string]PlayerInfo
	err := c.getJSON(ctx, "/v1/players/"+sport, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch %s player pool: %w", sport, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// #endregion client
