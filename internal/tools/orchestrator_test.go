package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/providers"
)

// scriptedBackend replays one Chat response per call, in order — enough
// to drive the orchestrator through a scripted multi-step scenario
// without a live backend.
type scriptedBackend struct {
	responses []providers.ChatResult
	calls     int
}

func (b *scriptedBackend) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResult, error) {
	if b.calls >= len(b.responses) {
		return &providers.ChatResult{Content: "done", FinishReason: "stop"}, nil
	}
	r := b.responses[b.calls]
	b.calls++
	return &r, nil
}

func (b *scriptedBackend) StreamChat(ctx context.Context, req providers.ChatRequest, onDelta func(providers.Delta)) (*providers.ChatResult, error) {
	result, err := b.Chat(ctx, req)
	if err == nil && result.Content != "" && onDelta != nil {
		onDelta(providers.Delta{Content: result.Content})
	}
	return result, err
}

func (b *scriptedBackend) Embeddings(ctx context.Context, model string, input json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (b *scriptedBackend) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func newTestOrchestrator(backend providers.Backend) (*Orchestrator, *Registry) {
	reg := NewRegistry(nil)
	RegisterBuiltins(reg)
	return &Orchestrator{Backend: backend, Registry: reg}, reg
}

func TestRunTerminatesStopWhenNoToolCalls(t *testing.T) {
	backend := &scriptedBackend{responses: []providers.ChatResult{{Content: "hello there", FinishReason: "stop"}}}
	o, _ := newTestOrchestrator(backend)

	result, err := o.Run(context.Background(), RunInput{Model: "mock", Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "hi")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stop", result.FinishReason)
	assert.Equal(t, "hello there", result.FinalText)
}

func TestRunExecutesNativeToolCallThenStops(t *testing.T) {
	backend := &scriptedBackend{responses: []providers.ChatResult{
		{ToolCalls: []chatapi.ToolCall{{ID: "call-1", Name: "runtime.infer_task_status", Arguments: json.RawMessage(`{"text":"done already"}`)}}},
		{Content: "the task is done", FinishReason: "stop"},
	}}
	o, _ := newTestOrchestrator(backend)

	result, err := o.Run(context.Background(), RunInput{Model: "mock", Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "status?")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stop", result.FinishReason)
	assert.Len(t, result.Trace.ToolCalls, 1)
	assert.Equal(t, "runtime.infer_task_status", result.Trace.ToolCalls[0].Name)
	require.Len(t, result.Trace.ToolResults, 1)
	assert.True(t, result.Trace.ToolResults[0].OK)

	var sawToolMessage bool
	for _, m := range result.Messages {
		if m.Role == chatapi.RoleTool && m.ToolCallID == "call-1" {
			sawToolMessage = true
		}
	}
	assert.True(t, sawToolMessage)
}

func TestRunUnknownToolInjectsErrorResult(t *testing.T) {
	backend := &scriptedBackend{responses: []providers.ChatResult{
		{ToolCalls: []chatapi.ToolCall{{ID: "call-1", Name: "nonexistent", Arguments: json.RawMessage(`{}`)}}},
		{Content: "ok", FinishReason: "stop"},
	}}
	o, _ := newTestOrchestrator(backend)

	result, err := o.Run(context.Background(), RunInput{Model: "mock", Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "x")}}, nil)
	require.NoError(t, err)
	require.Len(t, result.Trace.ToolResults, 1)
	assert.False(t, result.Trace.ToolResults[0].OK)
	assert.Contains(t, result.Trace.ToolResults[0].Error, "unknown tool")
}

func TestRunToolCallBudgetExceeded(t *testing.T) {
	var toolCalls []chatapi.ToolCall
	for i := 0; i < 3; i++ {
		toolCalls = append(toolCalls, chatapi.ToolCall{ID: "c", Name: "runtime.infer_task_status", Arguments: json.RawMessage(`{"text":"done"}`)})
	}
	backend := &scriptedBackend{responses: []providers.ChatResult{{ToolCalls: toolCalls}}}
	o, _ := newTestOrchestrator(backend)

	result, err := o.Run(context.Background(), RunInput{
		Model:    "mock",
		Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "x")},
		Budgets:  Budgets{MaxSteps: 6, MaxToolCalls: 2},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tool_limit", result.FinishReason)
}

func TestRunStepBudgetExceeded(t *testing.T) {
	var responses []providers.ChatResult
	for i := 0; i < 5; i++ {
		responses = append(responses, providers.ChatResult{
			ToolCalls: []chatapi.ToolCall{{ID: "c", Name: "runtime.infer_task_status", Arguments: json.RawMessage(`{"text":"in progress"}`)}},
		})
	}
	backend := &scriptedBackend{responses: responses}
	o, _ := newTestOrchestrator(backend)

	result, err := o.Run(context.Background(), RunInput{
		Model:    "mock",
		Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "x")},
		Budgets:  Budgets{MaxSteps: 2, MaxToolCalls: 100},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "length", result.FinishReason)
}

func TestRunStreamsContentDeltas(t *testing.T) {
	backend := &scriptedBackend{responses: []providers.ChatResult{{Content: "streamed text", FinishReason: "stop"}}}
	o, _ := newTestOrchestrator(backend)

	var deltas []string
	_, err := o.Run(context.Background(), RunInput{Model: "mock", Messages: []chatapi.Message{chatapi.Text(chatapi.RoleUser, "x")}}, func(e DeltaEvent) {
		if e.Content != "" {
			deltas = append(deltas, e.Content)
		}
	})
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "streamed text", deltas[0])
}
