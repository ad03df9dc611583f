package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/news"
	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", envOr("FANVISE_DB", "fanvise.db"), "path to fanvise.db")
	show := flag.Int("show", 5, "print the N most recent stored headlines after the pull")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg := news.DefaultConfig()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+5*time.Second)
	defer cancel()

	inserted, err := news.New(cfg).Pull(ctx, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pull: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pulled %s: %d new items\n", cfg.Source, inserted)

	if *show <= 0 {
		return
	}
	items, err := st.RecentNews(*show)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list news: %v\n", err)
		os.Exit(1)
	}
	for _, item := range items {
		when := "unknown date"
		if !item.PublishedAt.IsZero() {
			when = item.PublishedAt.Format("Jan 2 15:04")
		}
		fmt.Printf("  - [%s] %s\n", when, item.Headline)
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
