package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
)

// openaiCompatBackend talks to any backend speaking the OpenAI-subset wire
// format — llama.cpp's server, lmdeploy, MNN's OpenAI shim, and ollama all
// qualify — over a configured base URL, adapted from the teacher's
// OpenAIAdapter and generalized to carry tool calls/tool results through
// both Chat and StreamChat (the teacher's adapter only round-trips plain
// text).
type openaiCompatBackend struct {
	client  openai.Client
	baseURL string
	http    *http.Client
}

// NewOpenAICompatBackend builds a Backend for an OpenAI-subset peer at
// baseURL. apiKey may be empty for backends that don't check it (most
// local runtimes accept any non-empty placeholder).
func NewOpenAICompatBackend(baseURL, apiKey string) Backend {
	if apiKey == "" {
		apiKey = "local"
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &openaiCompatBackend{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 300 * time.Second},
	}
}

func (b *openaiCompatBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	params := b.buildParams(req)
	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("backend chat: %w", err)
	}
	return convertCompletion(completion), nil
}

func (b *openaiCompatBackend) StreamChat(ctx context.Context, req ChatRequest, onDelta func(Delta)) (*ChatResult, error) {
	params := b.buildParams(req)
	stream := b.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if onDelta != nil {
				onDelta(Delta{Content: chunk.Choices[0].Delta.Content})
			}
		}
		if tc, ok := acc.JustFinishedToolCall(); ok {
			if onDelta != nil {
				onDelta(Delta{ToolCall: &chatapi.ToolCall{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: json.RawMessage(tc.Arguments),
				}})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("backend stream: %w", err)
	}

	result := &ChatResult{}
	if len(acc.Choices) > 0 {
		choice := acc.Choices[0]
		result.Content = choice.Message.Content
		result.FinishReason = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, chatapi.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	return result, nil
}

func (b *openaiCompatBackend) Embeddings(ctx context.Context, model string, input json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{"model": model, "input": json.RawMessage(input)})
	if err != nil {
		return nil, fmt.Errorf("embeddings: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embeddings: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embeddings: backend returned %d: %s", resp.StatusCode, string(out))
	}
	return out, nil
}

func (b *openaiCompatBackend) ListModels(ctx context.Context) ([]string, error) {
	page, err := b.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (b *openaiCompatBackend) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    convertMessages(req.Messages),
		Temperature: openai.Float(req.Sampling.Temperature),
		TopP:        openai.Float(req.Sampling.TopP),
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Sampling.MinP != nil {
		// min_p isn't a first-class field on ChatCompletionNewParams; the
		// SDK's extra-fields escape hatch puts it on the wire verbatim so
		// llama.cpp-family backends that support it still see it (spec
		// §4.D min_p passthrough).
		params.SetExtraFields(map[string]any{"min_p": *req.Sampling.MinP})
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	switch req.ToolChoice.Mode {
	case "none":
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	case "named":
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ToolChoice.Name},
			},
		}
	default:
		if len(req.Tools) > 0 {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
		}
	}
	return params
}

func convertMessages(messages []chatapi.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chatapi.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content.String()))
		case chatapi.RoleUser:
			out = append(out, openai.UserMessage(m.Content.String()))
		case chatapi.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content.String()))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallUnion{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}.ToParam())
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: calls,
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case chatapi.RoleTool:
			out = append(out, openai.ToolMessage(m.Content.String(), m.ToolCallID))
		}
	}
	return out
}

func convertTools(tools []chatapi.ToolDef) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var params openai.FunctionParameters
		if len(t.Function.Parameters) > 0 {
			_ = json.Unmarshal(t.Function.Parameters, &params)
		}
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  params,
		}))
	}
	return out
}

func convertCompletion(completion *openai.ChatCompletion) *ChatResult {
	result := &ChatResult{}
	if len(completion.Choices) == 0 {
		return result
	}
	choice := completion.Choices[0]
	result.Content = choice.Message.Content
	result.FinishReason = string(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, chatapi.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result
}
