package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// #region gemini-wire

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiStreamEvent struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// #endregion gemini-wire

// #region gemini-backend

// geminiBackend streams from the Gemini REST API over SSE. It has a native
// system-instruction channel and native multi-turn, so history roles pass
// through unchanged.
type geminiBackend struct {
	cfg  Config
	http *http.Client
}

// newGemini creates the cloud backend with an injected HTTP client so tests
// can point it at a fake server.
func newGemini(cfg Config, client *http.Client) *geminiBackend {
	return &geminiBackend{cfg: cfg, http: client}
}

func (b *geminiBackend) Name() string { return "gemini" }

// Stream opens the SSE response. Rate limiting and other API errors surface
// here as *APIError before any chunk is produced; the returned channel only
// fails mid-flight on transport errors, which are not retried.
func (b *geminiBackend) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	body, err := json.Marshal(b.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("gemini marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		b.cfg.GeminiBaseURL, b.cfg.GeminiModel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", b.cfg.GeminiAPIKey)

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, b.apiError(resp)
	}

	ch := make(chan Chunk, 8)
	go b.readSSE(ctx, resp.Body, ch)
	return ch, nil
}

// buildRequest maps the neutral request onto the Gemini wire shape.
func (b *geminiBackend) buildRequest(req Request) geminiRequest {
	out := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: b.cfg.MaxTokens,
			Temperature:     b.cfg.Temperature,
			TopP:            b.cfg.TopP,
		},
	}
	if req.SystemInstruction != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}
	for _, t := range req.History {
		out.Contents = append(out.Contents, geminiContent{
			Role:  string(t.Role),
			Parts: []geminiPart{{Text: t.Text}},
		})
	}
	out.Contents = append(out.Contents, geminiContent{
		Role:  string(RoleUser),
		Parts: []geminiPart{{Text: req.Message}},
	})
	return out
}

// readSSE parses "data: {json}" lines and forwards part texts in order.
// Malformed events are skipped rather than failing the stream.
func (b *geminiBackend) readSSE(ctx context.Context, body io.ReadCloser, ch chan<- Chunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			ch <- Chunk{Done: true, Err: ctx.Err()}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event geminiStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		for _, c := range event.Candidates {
			for _, p := range c.Content.Parts {
				if p.Text != "" {
					ch <- Chunk{Text: p.Text}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		ch <- Chunk{Done: true, Err: fmt.Errorf("gemini stream: %w", err)}
		return
	}
	ch <- Chunk{Done: true}
}

// apiError turns a non-200 response into *APIError, pulling the body code
// and status through so retry classification sees both numeric fields.
func (b *geminiBackend) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	apiErr := &APIError{
		Backend:    "gemini",
		HTTPStatus: resp.StatusCode,
		Code:       resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
	var parsed geminiErrorBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		if parsed.Error.Code != 0 {
			apiErr.Code = parsed.Error.Code
		}
		apiErr.Status = parsed.Error.Status
		apiErr.Message = parsed.Error.Message
	}
	return apiErr
}

// #endregion gemini-backend
