package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/sleeper"
	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region main

func main() {
	leagueID := flag.String("league", "", "platform league id to sync")
	dbPath := flag.String("db", envOr("FANVISE_DB", "fanvise.db"), "path to fanvise.db")
	interval := flag.Duration("interval", 0, "resync every interval (one-shot when zero)")
	flag.Parse()

	if *leagueID == "" {
		fmt.Fprintln(os.Stderr, "usage: league-sync --league <id> [--db path/to/fanvise.db] [--interval 15m]")
		os.Exit(2)
	}

	st, err := store.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	syncer := sleeper.NewSyncer(sleeper.New(sleeper.DefaultConfig()), st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := syncer.SyncLeague(ctx, *leagueID)
	printRun(run, err)
	if *interval == 0 {
		if err != nil {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := syncer.SyncLeague(ctx, *leagueID)
			printRun(run, err)
		}
	}
}

// #endregion main

// #region output

func printRun(run store.SyncRun, err error) {
	if err != nil {
		fmt.Printf("[%s] sync %s FAILED: %v\n", run.FinishedAt.Format(time.RFC3339), run.LeagueID, err)
		return
	}
	fmt.Printf("[%s] sync %s ok: %d teams, %d players, took %s\n",
		run.FinishedAt.Format(time.RFC3339), run.LeagueID,
		run.TeamsSeen, run.PlayersSeen, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

// #endregion output

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
