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

// #region ollama-wire

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// ollamaStreamLine is one newline-delimited JSON object from /api/chat.
type ollamaStreamLine struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

type ollamaErrorBody struct {
	Error string `json:"error"`
}

// #endregion ollama-wire

// #region ollama-backend

// ollamaBackend streams from an Ollama-shaped /api/chat endpoint. The API
// has no system channel in this deployment's contract, so the system
// instruction is folded into the first user turn inside a delimited
// CONTEXT & INSTRUCTIONS block, the new message is appended as the final
// user turn, and "model" is remapped to "assistant" on the wire.
type ollamaBackend struct {
	cfg  Config
	http *http.Client
}

func newOllama(cfg Config, client *http.Client) *ollamaBackend {
	return &ollamaBackend{cfg: cfg, http: client}
}

func (b *ollamaBackend) Name() string { return "ollama" }

func (b *ollamaBackend) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:    b.cfg.OllamaModel,
		Messages: b.buildMessages(req),
		Stream:   true,
		Options: ollamaOptions{
			NumPredict:  b.cfg.MaxTokens,
			Temperature: b.cfg.Temperature,
			TopP:        b.cfg.TopP,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama marshal: %w", err)
	}

	url := b.cfg.OllamaBaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, b.apiError(resp)
	}

	ch := make(chan Chunk, 8)
	go b.readLines(ctx, resp.Body, ch)
	return ch, nil
}

// buildMessages applies the adaptation contract: remap roles, append the
// new message last, then fold the system instruction into the first user
// turn. With empty history the appended message IS the first user turn and
// receives the fold.
func (b *ollamaBackend) buildMessages(req Request) []ollamaMessage {
	msgs := make([]ollamaMessage, 0, len(req.History)+1)
	for _, t := range req.History {
		msgs = append(msgs, ollamaMessage{Role: wireRole(t.Role), Content: t.Text})
	}
	msgs = append(msgs, ollamaMessage{Role: string(RoleUser), Content: req.Message})

	if req.SystemInstruction != "" {
		for i := range msgs {
			if msgs[i].Role == string(RoleUser) {
				msgs[i].Content = foldInstruction(req.SystemInstruction, msgs[i].Content)
				break
			}
		}
	}
	return msgs
}

// wireRole maps the neutral role vocabulary to Ollama's.
func wireRole(r Role) string {
	if r == RoleModel {
		return "assistant"
	}
	return string(r)
}

// foldInstruction wraps a user turn with the delimited instruction block.
func foldInstruction(instruction, text string) string {
	return "CONTEXT & INSTRUCTIONS:\n" + instruction + "\n---\n\n" + text
}

// readLines parses the newline-delimited JSON stream. Each line is decoded
// independently; malformed lines are skipped so a single bad delta cannot
// kill the stream.
func (b *ollamaBackend) readLines(ctx context.Context, body io.ReadCloser, ch chan<- Chunk) {
	defer close(ch)
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		select {
		case <-ctx.Done():
			ch <- Chunk{Done: true, Err: ctx.Err()}
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var ev ollamaStreamLine
			if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &ev); jsonErr == nil {
				if ev.Error != "" {
					ch <- Chunk{Done: true, Err: fmt.Errorf("ollama stream: %s", ev.Error)}
					return
				}
				if ev.Message.Content != "" {
					ch <- Chunk{Text: ev.Message.Content}
				}
				if ev.Done {
					ch <- Chunk{Done: true}
					return
				}
			}
		}

		if err == io.EOF {
			ch <- Chunk{Done: true}
			return
		}
		if err != nil {
			ch <- Chunk{Done: true, Err: fmt.Errorf("ollama stream: %w", err)}
			return
		}
	}
}

func (b *ollamaBackend) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	apiErr := &APIError{
		Backend:    "ollama",
		HTTPStatus: resp.StatusCode,
		Code:       resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
	var parsed ollamaErrorBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		apiErr.Message = parsed.Error
	}
	return apiErr
}

// #endregion ollama-backend
