package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fanvise/fanvise/go-assistant/internal/compliance"
	"github.com/fanvise/fanvise/go-assistant/internal/generation"
	"github.com/fanvise/fanvise/go-assistant/internal/logging"
	"github.com/fanvise/fanvise/go-assistant/internal/retry"
	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

const newsInPrompt = 5

// #region service

// Generator is the streaming text backend the service drives. Satisfied
// by generation.Backend; tests substitute fakes.
type Generator interface {
	Name() string
	Stream(ctx context.Context, req generation.Request) (<-chan generation.Chunk, error)
}

// Service answers league questions. Each response runs the same pipeline:
// classify the message, assemble grounded context, generate with retry,
// then enforce the compliance rules on whatever came back.
type Service struct {
	gen    Generator
	model  string
	policy retry.Policy
	store  *store.Store // optional; nil disables context blocks and auditing
}

// New wires a service. st may be nil for a store-less deployment, which
// skips team/news grounding and the audit trail.
func New(gen Generator, model string, policy retry.Policy, st *store.Store) *Service {
	return &Service{gen: gen, model: model, policy: policy, store: st}
}

// #endregion service

// #region query-result

// Query is one user turn plus its addressing context.
type Query struct {
	RequestID string // assigned when empty
	SessionID string
	Message   string
	History   []generation.Turn
	Language  string
	LeagueID  string
	TeamID    int    // roster id within the league
	TeamName  string // optional display override
}

// Result is the finished response.
type Result struct {
	RequestID    string
	Output       string // enforced text
	Raw          string // model text before enforcement
	Obligations  compliance.Obligations
	Trace        compliance.Trace
	Backend      string
	Model        string
	Attempts     int      // stream opens it took to get an answer
	DebugContext []string // grounding blocks that were injected
}

// #endregion query-result

// #region respond

// Respond runs the full pipeline for one message. onDelta, when non-nil,
// receives raw text fragments as they stream in; the returned Output is
// the post-processed final text, which may extend or replace what the
// deltas showed.
func (s *Service) Respond(ctx context.Context, q Query, onDelta func(string)) (Result, error) {
	if q.RequestID == "" {
		q.RequestID = uuid.New().String()
	}
	lang := compliance.NormalizeLanguage(q.Language)
	obligations := compliance.Classify(q.Message)
	log.Printf("[ASSIST] %s classify lang=%s drop=%v calibrate=%v",
		q.RequestID, lang, obligations.MustAssertDoNotDrop, obligations.MustCalibrateUncertainty)

	blocks := s.contextBlocks(ctx, q)
	req := generation.Request{
		History:           q.History,
		Message:           q.Message,
		SystemInstruction: buildInstruction(blocks, compliance.BuildContract(obligations, lang)),
		Language:          lang,
	}

	attempts := 0
	ch, err := retry.Do(ctx, s.policy, func(ctx context.Context) (<-chan generation.Chunk, error) {
		attempts++
		return s.gen.Stream(ctx, req)
	})
	if err != nil {
		return Result{}, fmt.Errorf("open stream: %w", err)
	}

	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return Result{}, fmt.Errorf("stream: %w", chunk.Err)
		}
		if chunk.Text != "" {
			b.WriteString(chunk.Text)
			if onDelta != nil {
				onDelta(chunk.Text)
			}
		}
	}
	raw := b.String()

	out, trace := compliance.PostProcessWithTrace(raw, q.Message, lang)
	s.audit(q, lang, obligations, trace)
	log.Printf("[ASSIST] %s done backend=%s attempts=%d applied=%v",
		q.RequestID, s.gen.Name(), attempts, trace.Applied())

	return Result{
		RequestID:    q.RequestID,
		Output:       out,
		Raw:          raw,
		Obligations:  obligations,
		Trace:        trace,
		Backend:      s.gen.Name(),
		Model:        s.model,
		Attempts:     attempts,
		DebugContext: blocks,
	}, nil
}

// contextBlocks loads whatever grounding the store can offer. A failed
// lookup drops that block and keeps going; answering without context
// beats not answering.
func (s *Service) contextBlocks(ctx context.Context, q Query) []string {
	if s.store == nil {
		return nil
	}
	var blocks []string

	if q.LeagueID != "" && q.TeamID > 0 {
		tc, err := s.store.TeamContext(q.LeagueID, q.TeamID)
		if err != nil {
			log.Printf("[CTX] team %s/%d: %v", q.LeagueID, q.TeamID, err)
		} else if blk := TeamBlock(tc, q.TeamName); blk != "" {
			blocks = append(blocks, blk)
		}
	}

	items, err := s.store.RecentNews(newsInPrompt)
	if err != nil {
		log.Printf("[CTX] news: %v", err)
	} else if blk := NewsBlock(items); blk != "" {
		blocks = append(blocks, blk)
	}
	return blocks
}

// audit records the enforcement outcome. Best effort: a failed write is
// logged and the response still goes out.
func (s *Service) audit(q Query, lang string, o compliance.Obligations, trace compliance.Trace) {
	if s.store == nil {
		return
	}
	err := logging.LogEnforcement(s.store.DB(), logging.EnforcementEntry{
		RequestID:   q.RequestID,
		SessionID:   q.SessionID,
		Language:    lang,
		Message:     q.Message,
		Obligations: strings.Join(o.Tags(), ","),
		Applied:     strings.Join(trace.Applied(), ","),
		Backend:     s.gen.Name(),
		Model:       s.model,
	})
	if err != nil {
		log.Printf("[AUDIT] %v", err)
	}
}

// #endregion respond
