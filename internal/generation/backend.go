package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// #region backend

// Backend produces a streamed response for a generation request. Both
// implementations honor the same contract; callers cannot tell them apart.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// ErrNotConfigured is returned when the selected backend is missing
// required credentials.
var ErrNotConfigured = errors.New("generation backend not configured")

// NewBackend picks the backend from cfg.UseOllama. Credential checks happen
// here, before any network call; the constructor never dials.
func NewBackend(cfg Config) (Backend, error) {
	if cfg.UseOllama {
		if cfg.OllamaBaseURL == "" {
			return nil, fmt.Errorf("OLLAMA_BASE_URL is empty: %w", ErrNotConfigured)
		}
		return newOllama(cfg, defaultHTTPClient()), nil
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the Gemini backend: %w", ErrNotConfigured)
	}
	return newGemini(cfg, defaultHTTPClient()), nil
}

// defaultHTTPClient carries no overall timeout: streams stay open for the
// duration of generation and are bounded by the request context instead.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// #endregion backend
