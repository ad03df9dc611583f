package generation

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// #region roles

// Role identifies the author of a conversation turn.
// This is the caller-facing vocabulary; backends remap to their own wire
// roles (the self-hosted API says "assistant" where we say "model").
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// #endregion roles

// #region request

// Turn is one prior exchange in a conversation.
type Turn struct {
	Role Role
	Text string
}

// Request describes a single generation call. History is ordered
// oldest-first and owned by the caller. Message is the new user message and
// is NOT part of History. SystemInstruction is optional behavioral context;
// how it reaches the model is backend-specific.
type Request struct {
	History           []Turn
	Message           string
	SystemInstruction string
	Language          string // "en" | "el"
}

// #endregion request

// #region chunk

// Chunk is one fragment of a streamed response. A stream is a finite,
// forward-only sequence of chunks delivered on a channel that is closed
// after the terminal chunk. Err is set on the terminal chunk when the
// stream failed mid-flight; such failures are not recoverable.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// #endregion chunk

// #region api-error

// APIError is a backend wire error. HTTPStatus is the transport status;
// Code is the numeric code from the response body when the API reports one
// (the cloud API duplicates 429 there). Retry classification checks both.
type APIError struct {
	Backend    string
	HTTPStatus int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: %s (%d): %s", e.Backend, e.Status, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Backend, e.HTTPStatus, e.Message)
}

// HTTPStatusCode and ErrorCode expose the two numeric fields for retry
// classification without coupling that package to this one.
func (e *APIError) HTTPStatusCode() int { return e.HTTPStatus }

func (e *APIError) ErrorCode() int { return e.Code }

// #endregion api-error

// #region config

// Config selects and parameterizes the generation backend. The selection is
// a single boolean decided at process start; Config is immutable for the
// process lifetime.
type Config struct {
	UseOllama bool

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	OllamaBaseURL string
	OllamaModel   string

	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ActiveModel returns the model the selected backend will use.
func (c Config) ActiveModel() string {
	if c.UseOllama {
		return c.OllamaModel
	}
	return c.GeminiModel
}

// DefaultConfig returns generation configuration from environment variables.
// Reads: FANVISE_USE_OLLAMA, GEMINI_API_KEY, GEMINI_MODEL, GEMINI_BASE_URL,
// OLLAMA_BASE_URL, OLLAMA_MODEL, FANVISE_MAX_TOKENS, FANVISE_TEMPERATURE,
// FANVISE_TOP_P.
func DefaultConfig() Config {
	cfg := Config{
		GeminiModel:   "gemini-2.0-flash",
		GeminiBaseURL: "https://generativelanguage.googleapis.com",
		OllamaBaseURL: "http://localhost:11434",
		OllamaModel:   "qwen2.5:14b-instruct",
		MaxTokens:     1024,
		Temperature:   0.7,
		TopP:          0.95,
	}
	if v := os.Getenv("FANVISE_USE_OLLAMA"); v != "" {
		cfg.UseOllama = v == "true" || v == "1"
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		cfg.GeminiBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.OllamaBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.OllamaModel = v
	}
	if v := os.Getenv("FANVISE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("FANVISE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("FANVISE_TOP_P"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.TopP = f
		}
	}
	return cfg
}

// #endregion config
