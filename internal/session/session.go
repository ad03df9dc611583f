package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fanvise/fanvise/go-assistant/internal/generation"
)

const keyPrefix = "chat:"

// #region config

// Config holds session storage parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Window   int // max turns kept per session
}

// DefaultConfig returns default session configuration.
// Reads from env vars: FANVISE_REDIS_ADDR, FANVISE_REDIS_PASSWORD,
// FANVISE_REDIS_DB, FANVISE_SESSION_TTL_HOURS, FANVISE_HISTORY_WINDOW.
func DefaultConfig() Config {
	cfg := Config{
		Addr:   "localhost:6379",
		TTL:    24 * time.Hour,
		Window: 12,
	}
	if v := os.Getenv("FANVISE_REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("FANVISE_REDIS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("FANVISE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DB = n
		}
	}
	if v := os.Getenv("FANVISE_SESSION_TTL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.TTL = time.Duration(h) * time.Hour
		}
	}
	if v := os.Getenv("FANVISE_HISTORY_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Window = n
		}
	}
	return cfg
}

// #endregion config

// #region store

// Store keeps per-session conversation history in Redis. Each session is
// one JSON value under "chat:{id}" with a rolling TTL; the window bounds
// how many turns survive, oldest dropped first.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	window int
}

// New connects a session store per cfg.
func New(cfg Config) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.TTL, cfg.Window)
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(rdb *redis.Client, ttl time.Duration, window int) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if window <= 0 {
		window = 12
	}
	return &Store{rdb: rdb, ttl: ttl, window: window}
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// #endregion store

// #region history

// storedTurn is the JSON shape persisted to Redis.
type storedTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// History loads a session's turns, oldest first. A missing session is an
// empty history, not an error.
func (s *Store) History(ctx context.Context, sessionID string) ([]generation.Turn, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var stored []storedTurn
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	turns := make([]generation.Turn, 0, len(stored))
	for _, st := range stored {
		turns = append(turns, generation.Turn{Role: generation.Role(st.Role), Text: st.Text})
	}
	return turns, nil
}

// Append adds a user/model exchange to a session and refreshes its TTL.
func (s *Store) Append(ctx context.Context, sessionID, userText, modelText string) error {
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}

	turns = append(turns,
		generation.Turn{Role: generation.RoleUser, Text: userText},
		generation.Turn{Role: generation.RoleModel, Text: modelText},
	)
	if len(turns) > s.window {
		turns = turns[len(turns)-s.window:]
	}

	stored := make([]storedTurn, 0, len(turns))
	for _, turn := range turns {
		stored = append(stored, storedTurn{Role: string(turn.Role), Text: turn.Text})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// Clear deletes a session's history.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

// #endregion history
