package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fanvise/fanvise/go-assistant/internal/generation"
)

func TestDefaultConfig_Values(t *testing.T) {
	t.Setenv("FANVISE_REDIS_ADDR", "")
	t.Setenv("FANVISE_SESSION_TTL_HOURS", "")
	t.Setenv("FANVISE_HISTORY_WINDOW", "")

	cfg := DefaultConfig()
	if cfg.Addr != "localhost:6379" {
		t.Errorf("addr: got %q", cfg.Addr)
	}
	if cfg.TTL != 24*time.Hour {
		t.Errorf("ttl: got %v", cfg.TTL)
	}
	if cfg.Window != 12 {
		t.Errorf("window: got %d", cfg.Window)
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FANVISE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FANVISE_SESSION_TTL_HOURS", "6")
	t.Setenv("FANVISE_HISTORY_WINDOW", "4")

	cfg := DefaultConfig()
	if cfg.Addr != "redis.internal:6380" {
		t.Errorf("addr: got %q", cfg.Addr)
	}
	if cfg.TTL != 6*time.Hour {
		t.Errorf("ttl: got %v", cfg.TTL)
	}
	if cfg.Window != 4 {
		t.Errorf("window: got %d", cfg.Window)
	}
}

func TestDefaultConfig_IgnoresMalformed(t *testing.T) {
	t.Setenv("FANVISE_SESSION_TTL_HOURS", "soon")
	t.Setenv("FANVISE_HISTORY_WINDOW", "-3")

	cfg := DefaultConfig()
	if cfg.TTL != 24*time.Hour {
		t.Errorf("ttl should keep its default, got %v", cfg.TTL)
	}
	if cfg.Window != 12 {
		t.Errorf("window should keep its default, got %d", cfg.Window)
	}
}

func TestNewWithClient_Clamps(t *testing.T) {
	s := NewWithClient(nil, 0, 0)
	if s.ttl != 24*time.Hour {
		t.Errorf("ttl: got %v", s.ttl)
	}
	if s.window != 12 {
		t.Errorf("window: got %d", s.window)
	}
}

// liveStore connects to a local Redis and skips the test when none is
// reachable, so the roundtrip coverage runs only where it can.
func liveStore(t *testing.T) *Store {
	t.Helper()
	s := New(DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		s.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryRoundTrip(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()
	id := "test-" + uuid.New().String()
	t.Cleanup(func() { s.Clear(ctx, id) })

	// Missing session is empty, not an error
	turns, err := s.History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}

	if err := s.Append(ctx, id, "Is Ja playing tonight?", "He is questionable."); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err = s.History(ctx, id)
	if err != nil {
		t.Fatalf("History after append: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != generation.RoleUser || turns[1].Role != generation.RoleModel {
		t.Errorf("roles: got %q then %q", turns[0].Role, turns[1].Role)
	}
	if turns[1].Text != "He is questionable." {
		t.Errorf("model text: got %q", turns[1].Text)
	}

	if err := s.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	turns, _ = s.History(ctx, id)
	if len(turns) != 0 {
		t.Errorf("expected cleared history, got %d turns", len(turns))
	}
}

func TestAppendEnforcesWindow(t *testing.T) {
	s := liveStore(t)
	s.window = 4
	ctx := context.Background()
	id := "test-" + uuid.New().String()
	t.Cleanup(func() { s.Clear(ctx, id) })

	for i := 0; i < 4; i++ {
		if err := s.Append(ctx, id, "question", "answer"); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	turns, err := s.History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 4 {
		t.Errorf("expected window of 4 turns, got %d", len(turns))
	}
}
