package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/logging"
	"github.com/acproject/local-ai-runtime/internal/providers"
	"github.com/acproject/local-ai-runtime/internal/sampling"
	"github.com/acproject/local-ai-runtime/internal/tools"
)

// Planner implements tools.Repairer for one request. It owns the
// overall and per-tool-call rewrite budgets (spec §4.H); construct a
// fresh instance per request via NewForRequest so budgets never leak
// across requests.
type Planner struct {
	cfg     Config
	backend providers.Backend
	model   string
	logger  logging.Logger

	mu         sync.Mutex
	totalSteps int
	perCall    map[string]int
}

// NewForRequest builds a Planner scoped to one chat-completions request.
// backend is the same resolved backend the orchestrator is using, so
// repair prompts are answered by the same model the conversation is
// running against.
func NewForRequest(cfg Config, backend providers.Backend, model string, logger logging.Logger) *Planner {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Planner{
		cfg:     cfg,
		backend: backend,
		model:   model,
		logger:  logger,
		perCall: make(map[string]int),
	}
}

// Repair attempts one bounded round trip: synthesize a repair prompt
// describing the violation and the tool's schema, ask the backend for
// corrected arguments, and return them unvalidated (the orchestrator
// re-validates). rewrites is the planner's cumulative attempt count
// across the whole request, which is what the trace's plan_rewrites
// field reports regardless of whether this attempt's output validates.
func (p *Planner) Repair(ctx context.Context, spec tools.Spec, violation string, rawArgs json.RawMessage) (repaired json.RawMessage, rewrites int, ok bool) {
	p.mu.Lock()
	if !p.cfg.Enabled || p.totalSteps >= p.cfg.MaxPlanSteps || p.perCall[spec.Name] >= p.cfg.MaxRewrites {
		rewrites = p.totalSteps
		p.mu.Unlock()
		return nil, rewrites, false
	}
	p.totalSteps++
	p.perCall[spec.Name]++
	rewrites = p.totalSteps
	p.mu.Unlock()

	p.logger.Debug(ctx, "planner repair attempt", logging.F("tool", spec.Name), logging.F("attempt", rewrites))

	prompt := buildRepairPrompt(spec, violation, rawArgs)
	req := providers.ChatRequest{
		Model:    p.model,
		Messages: []chatapi.Message{chatapi.Text(chatapi.RoleSystem, prompt)},
		Sampling: sampling.Normalize(p.model, sampling.Request{}),
	}

	result, err := p.backend.Chat(ctx, req)
	if err != nil {
		p.logger.Warn(ctx, "planner repair request failed", logging.F("tool", spec.Name), logging.F("error", err.Error()))
		return nil, rewrites, false
	}

	candidate, found := extractJSONObject(result.Content)
	if !found {
		p.logger.Warn(ctx, "planner repair response had no JSON object", logging.F("tool", spec.Name))
		return nil, rewrites, false
	}
	return candidate, rewrites, true
}

// buildRepairPrompt synthesizes the message asking the backend for
// corrected arguments (spec §4.H's "repair prompt").
func buildRepairPrompt(spec tools.Spec, violation string, rawArgs json.RawMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The arguments you supplied for tool %q were rejected: %s\n", spec.Name, violation)
	fmt.Fprintf(&b, "Rejected arguments: %s\n", string(rawArgs))
	fmt.Fprintf(&b, "Tool parameter schema: %s\n", string(spec.Parameters))
	b.WriteString("Reply with ONLY a corrected JSON object matching the schema, no prose.")
	return b.String()
}

// extractJSONObject finds the first balanced top-level JSON object in
// text and confirms it decodes. Repair responses are asked for bare
// JSON but may still arrive wrapped in prose or a fenced code block.
func extractJSONObject(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, false
				}
				return json.RawMessage(candidate), true
			}
		}
	}
	return nil, false
}
