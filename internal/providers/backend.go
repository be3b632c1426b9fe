// Package providers implements the backend-adapter and provider-registry
// components (spec §4.B, §4.C): translating normalized chat/embeddings
// requests to each backend's OpenAI-subset wire format and routing a
// `model` string to the right one.
package providers

import (
	"context"
	"encoding/json"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/sampling"
)

// ChatRequest is the normalized request an adapter receives. Adapters
// MUST NOT mutate it; they see the fully normalized message list and
// read-only sampling parameters (spec §4.C).
type ChatRequest struct {
	Model      string
	Messages   []chatapi.Message
	Tools      []chatapi.ToolDef
	ToolChoice chatapi.ToolChoice
	Sampling   sampling.Params
	MaxTokens  *int
}

// ChatResult is an adapter's synchronous or fully-accumulated response.
type ChatResult struct {
	Content      string
	ToolCalls    []chatapi.ToolCall
	FinishReason string
}

// Delta is one incremental piece of a streaming response.
type Delta struct {
	Content  string
	ToolCall *chatapi.ToolCall // set once a tool call finishes accumulating
}

// Backend abstracts one configured model runtime (llama.cpp, lmdeploy,
// MNN, ollama, or any OpenAI-compatible peer). Implementations translate
// to and from the OpenAI-subset wire format; streaming is mandatory where
// the upstream supports it, otherwise the adapter synthesizes a single
// final delta (spec §4.C).
type Backend interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	StreamChat(ctx context.Context, req ChatRequest, onDelta func(Delta)) (*ChatResult, error)
	Embeddings(ctx context.Context, model string, input json.RawMessage) (json.RawMessage, error)
	ListModels(ctx context.Context) ([]string, error)
}
