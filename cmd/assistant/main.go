package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/assistant"
	"github.com/fanvise/fanvise/go-assistant/internal/generation"
	"github.com/fanvise/fanvise/go-assistant/internal/retry"
	"github.com/fanvise/fanvise/go-assistant/internal/server"
	"github.com/fanvise/fanvise/go-assistant/internal/session"
	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region main

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genCfg := generation.DefaultConfig()
	backend, err := generation.NewBackend(genCfg)
	if err != nil {
		log.Fatalf("failed to select backend: %v", err)
	}
	log.Printf("[BOOT] backend=%s model=%s", backend.Name(), genCfg.ActiveModel())

	dbPath := envOr("FANVISE_DB", "fanvise.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	log.Printf("[BOOT] store=%s", dbPath)

	// Sessions are optional: without Redis the server still answers,
	// it just cannot carry history across requests.
	sessions := session.New(session.DefaultConfig())
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := sessions.Ping(pingCtx); err != nil {
		log.Printf("[BOOT] redis unavailable, sessions disabled: %v", err)
		sessions.Close()
		sessions = nil
	} else {
		defer sessions.Close()
		log.Printf("[BOOT] sessions ready")
	}
	cancel()

	svc := assistant.New(backend, genCfg.ActiveModel(), retry.DefaultPolicy(), st)

	srv := server.New(server.DefaultConfig(), svc, sessions)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
