package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/logging"
	"github.com/acproject/local-ai-runtime/internal/providers"
	"github.com/acproject/local-ai-runtime/internal/sampling"
)

// Repairer synthesizes and evaluates a bounded argument-repair round trip
// (spec §4.H). The tools package depends only on this interface, not on
// internal/planner, so the planner can depend on tools (to re-validate
// repaired arguments) without an import cycle.
type Repairer interface {
	Repair(ctx context.Context, spec Spec, violation string, rawArgs json.RawMessage) (repaired json.RawMessage, rewrites int, ok bool)
}

// Budgets bounds one orchestrator run (spec §4.G).
type Budgets struct {
	MaxSteps     int
	MaxToolCalls int
}

// DeltaEvent is one incremental piece of a streaming run — content text,
// a just-detected tool call, or a just-finished tool result (spec §4.G
// "Streaming semantics").
type DeltaEvent struct {
	Content    string
	ToolCall   *chatapi.ToolCallTrace
	ToolResult *chatapi.ToolResultTrace
}

// Orchestrator runs the tool-call loop (spec §4.G) against one backend.
type Orchestrator struct {
	Backend  providers.Backend
	Registry *Registry
	Logger   logging.Logger
	Repairer Repairer // nil disables planner repair regardless of request opts
}

// RunInput is one orchestrator invocation's parameters.
type RunInput struct {
	Model          string
	Messages       []chatapi.Message
	Tools          []chatapi.ToolDef
	ToolChoice     chatapi.ToolChoice
	Sampling       sampling.Params
	MaxTokens      *int
	Budgets        Budgets
	AuthHeaders    map[string]string
	PlannerEnabled bool
}

// RunResult is the orchestrator's terminal outcome.
type RunResult struct {
	Messages     []chatapi.Message
	FinalText    string
	FinishReason string
	Trace        chatapi.Trace
}

// Run drives the loop to termination: stop (no more tool calls), length
// (step budget), tool_limit (call budget), or error (unrecoverable
// backend failure) — spec §4.G's mutually exclusive finish_reasons.
func (o *Orchestrator) Run(ctx context.Context, in RunInput, onDelta func(DeltaEvent)) (*RunResult, error) {
	logger := o.Logger
	if logger == nil {
		logger = logging.Noop{}
	}

	messages := make([]chatapi.Message, len(in.Messages))
	copy(messages, in.Messages)

	budgets := in.Budgets
	if budgets.MaxSteps <= 0 {
		budgets.MaxSteps = 6
	}
	if budgets.MaxToolCalls <= 0 {
		budgets.MaxToolCalls = 16
	}

	allowedDefs := in.Tools
	if len(allowedDefs) == 0 {
		allowedDefs = o.Registry.ToolDefs()
	}
	allowedNames := make([]string, 0, len(allowedDefs))
	for _, t := range allowedDefs {
		allowedNames = append(allowedNames, t.Function.Name)
	}

	trace := chatapi.Trace{Model: in.Model}
	toolCallsUsed := 0
	steps := 0
	invoked := map[string]bool{}

	for {
		steps++

		req := providers.ChatRequest{
			Model:      in.Model,
			Messages:   messages,
			Tools:      allowedDefs,
			ToolChoice: in.ToolChoice,
			Sampling:   in.Sampling,
			MaxTokens:  in.MaxTokens,
		}

		backendStart := time.Now()
		var result *providers.ChatResult
		var err error
		if onDelta != nil {
			result, err = o.Backend.StreamChat(ctx, req, func(d providers.Delta) {
				if d.Content != "" {
					onDelta(DeltaEvent{Content: d.Content})
				}
			})
		} else {
			result, err = o.Backend.Chat(ctx, req)
		}
		trace.Timings.BackendMS += time.Since(backendStart).Milliseconds()
		if err != nil {
			logger.Error(ctx, "backend chat failed", logging.F("error", err.Error()))
			return &RunResult{Messages: messages, FinishReason: "error", Trace: trace}, fmt.Errorf("orchestrator: backend: %w", err)
		}

		calls, dialect, detected := o.detectCalls(result, allowedNames, invoked)
		if !detected {
			messages = append(messages, chatapi.Text(chatapi.RoleAssistant, result.Content))
			return &RunResult{Messages: messages, FinalText: result.Content, FinishReason: "stop", Trace: trace}, nil
		}

		assistantMsg := chatapi.Message{
			Role:      chatapi.RoleAssistant,
			Content:   chatapi.Content{Text: StripDialectMarkup(result.Content)},
			ToolCalls: toChatAPICalls(calls),
		}
		messages = append(messages, assistantMsg)
		logger.Debug(ctx, "detected tool calls", logging.F("dialect", string(dialect)), logging.F("count", len(calls)))

		limitHit := false
		for _, call := range calls {
			toolCallsUsed++
			trace.ToolCalls = append(trace.ToolCalls, chatapi.ToolCallTrace{
				ID: call.ID, Name: call.Name, ArgsSummary: summarizeArgs(call.Arguments),
			})
			if onDelta != nil {
				onDelta(DeltaEvent{ToolCall: &chatapi.ToolCallTrace{ID: call.ID, Name: call.Name, ArgsSummary: summarizeArgs(call.Arguments)}})
			}

			if toolCallsUsed > budgets.MaxToolCalls {
				limitHit = true
				break
			}

			toolStart := time.Now()
			invoked[call.Name] = true
			resultText, ok, resultErr, plannerUsed, rewrites := o.invokeOne(ctx, call, in)
			trace.Timings.ToolMS += time.Since(toolStart).Milliseconds()
			if plannerUsed {
				trace.UsedPlanner = true
				trace.PlanRewrites = rewrites
			}

			errMsg := ""
			if resultErr != nil {
				errMsg = resultErr.Error()
			}
			trace.ToolResults = append(trace.ToolResults, chatapi.ToolResultTrace{
				ID: call.ID, Name: call.Name, OK: ok, Error: errMsg, MS: time.Since(toolStart).Milliseconds(),
			})
			if onDelta != nil {
				onDelta(DeltaEvent{ToolResult: &chatapi.ToolResultTrace{ID: call.ID, Name: call.Name, OK: ok, Error: errMsg}})
			}

			content := formatToolResultMessage(call.Name, ok, resultText, errMsg)
			messages = append(messages, chatapi.Message{
				Role:       chatapi.RoleTool,
				Content:    chatapi.Content{Text: content},
				ToolCallID: call.ID,
			})
		}

		if limitHit {
			logger.Warn(ctx, "tool call budget exceeded", logging.F("used", toolCallsUsed), logging.F("max", budgets.MaxToolCalls))
			return &RunResult{Messages: messages, FinishReason: "tool_limit", Trace: trace}, nil
		}

		if steps > budgets.MaxSteps {
			logger.Warn(ctx, "step budget exhausted with tool calls pending", logging.F("steps", steps), logging.F("max_steps", budgets.MaxSteps))
			// Report whatever the loop actually last produced (typically
			// the most recent TOOL_RESULT turn) rather than a synthetic
			// placeholder, so a client can see why the budget ran out.
			final := ""
			if len(messages) > 0 {
				final = messages[len(messages)-1].Content.Text
			}
			return &RunResult{Messages: messages, FinalText: final, FinishReason: "length", Trace: trace}, nil
		}
	}
}

// detectCalls implements spec §4.G's precedence: native tool_calls first,
// then the text-dialect matchers. alreadyInvoked withholds from the bare
// heuristic every name already invoked on this run (through any
// dialect), so a backend that folds
// a tool's own result turn back into its next reply can't have that
// echo misread as a fresh bare-dialect call (see Detect).
func (o *Orchestrator) detectCalls(result *providers.ChatResult, allowedNames []string, alreadyInvoked map[string]bool) ([]NormalizedCall, Dialect, bool) {
	if len(result.ToolCalls) > 0 {
		calls := make([]NormalizedCall, 0, len(result.ToolCalls))
		for _, tc := range result.ToolCalls {
			calls = append(calls, NormalizedCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		return calls, DialectNative, true
	}
	return Detect(result.Content, allowedNames, alreadyInvoked)
}

// invokeOne validates and invokes one tool call, attempting planner
// repair (spec §4.H) when arguments fail schema validation or the tool
// itself reports isError. o.Repairer owns its own overall/per-call
// rewrite budget and returns ok=false once exhausted, which is what
// bounds this function's retry loop. The bool/int results report
// whether the planner was invoked and its cumulative rewrite count, for
// the caller to fold into the request trace.
func (o *Orchestrator) invokeOne(ctx context.Context, call NormalizedCall, in RunInput) (text string, ok bool, err error, plannerUsed bool, rewrites int) {
	spec, found := o.Registry.Lookup(call.Name)
	if !found {
		return "", false, fmt.Errorf("unknown tool"), false, 0
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	repair := func(violation string) bool {
		if !in.PlannerEnabled || o.Repairer == nil {
			return false
		}
		repaired, n, repairOK := o.Repairer.Repair(ctx, spec, violation, args)
		// A repair attempt counts whether or not the repaired arguments
		// ultimately validate (SPEC_FULL §8's plan_rewrites semantics).
		plannerUsed, rewrites = true, n
		if repairOK && o.Registry.ValidateArgs(call.Name, repaired) == nil {
			args = repaired
			return true
		}
		return false
	}

	for {
		if verr := o.Registry.ValidateArgs(call.Name, args); verr != nil {
			if repair(verr.Error()) {
				continue
			}
			// Exhaustion or a still-invalid repair both convert to a
			// regular tool-error result rather than retrying further.
			return "", false, fmt.Errorf("bad arguments: %s", verr.Error()), plannerUsed, rewrites
		}

		text, ok, err = o.Registry.Invoke(ctx, call.Name, args, in.AuthHeaders)
		if err != nil {
			return "", false, err, plannerUsed, rewrites
		}
		if !ok {
			if repair("tool reported isError: " + text) {
				continue
			}
		}
		return text, ok, nil, plannerUsed, rewrites
	}
}

func toChatAPICalls(calls []NormalizedCall) []chatapi.ToolCall {
	out := make([]chatapi.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, chatapi.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

func formatToolResultMessage(name string, ok bool, text, errMsg string) string {
	marker := fmt.Sprintf("TOOL_RESULT %s ok=%t", name, ok)
	if !ok {
		return marker + " error=" + errMsg
	}
	return marker + "\n" + text
}

func summarizeArgs(args json.RawMessage) string {
	const maxLen = 200
	s := string(args)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
