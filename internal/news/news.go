package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region config

// Config holds news feed parameters.
type Config struct {
	URL     string
	Source  string
	Limit   int
	Timeout time.Duration
}

// DefaultConfig returns default news fetch configuration.
// Reads from env vars: FANVISE_NEWS_URL, FANVISE_NEWS_SOURCE,
// FANVISE_NEWS_LIMIT, FANVISE_NEWS_TIMEOUT.
func DefaultConfig() Config {
	cfg := Config{
		URL:     "https://site.api.espn.com/apis/site/v2/sports/basketball/nba/news",
		Source:  "espn",
		Limit:   20,
		Timeout: 15 * time.Second,
	}
	if v := os.Getenv("FANVISE_NEWS_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("FANVISE_NEWS_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("FANVISE_NEWS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limit = n
		}
	}
	if v := os.Getenv("FANVISE_NEWS_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// #endregion config

// #region wire-types

type feedResponse struct {
	Articles []feedArticle `json:"articles"`
}

type feedArticle struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Published   string `json:"published"`
	Links       struct {
		Web struct {
			Href string `json:"href"`
		} `json:"web"`
	} `json:"links"`
}

// #endregion wire-types

// #region fetcher

// Fetcher pulls league news headlines from an ESPN-shaped feed.
type Fetcher struct {
	cfg  Config
	http *http.Client
}

// New builds a fetcher per cfg.
func New(cfg Config) *Fetcher {
	return &Fetcher{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Fetch downloads the feed and maps it to news items, newest slice first
// as the feed reports it. Articles without a headline or link are skipped.
func (f *Fetcher) Fetch(ctx context.Context) ([]store.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("news feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode news feed: %w", err)
	}

	now := time.Now().UTC()
	var items []store.NewsItem
	for _, a := range feed.Articles {
		if len(items) >= f.cfg.Limit {
			break
		}
		if a.Headline == "" || a.Links.Web.Href == "" {
			continue
		}
		items = append(items, store.NewsItem{
			Headline:    a.Headline,
			Summary:     a.Description,
			URL:         a.Links.Web.Href,
			Source:      f.cfg.Source,
			PublishedAt: parsePublished(a.Published),
			FetchedAt:   now,
		})
	}
	return items, nil
}

// Pull fetches the feed and stores the new headlines.
// Returns how many items were actually inserted after URL dedupe.
func (f *Fetcher) Pull(ctx context.Context, st *store.Store) (int, error) {
	items, err := f.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	inserted, err := st.UpsertNews(items)
	if err != nil {
		return 0, err
	}
	log.Printf("[NEWS] fetched %d items, %d new", len(items), inserted)
	return inserted, nil
}

// parsePublished handles the feed's timestamp, which drops seconds.
func parsePublished(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04Z"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// #endregion fetcher
