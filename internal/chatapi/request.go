package chatapi

import "encoding/json"

// ToolChoice mirrors the OpenAI tool_choice union: "auto", "none", or a named
// function selection.
type ToolChoice struct {
	Mode string // "auto", "none", "named"
	Name string // set when Mode == "named"
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	switch t.Mode {
	case "", "auto":
		return json.Marshal("auto")
	case "none":
		return json.Marshal("none")
	case "named":
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": t.Name},
		})
	default:
		return json.Marshal("auto")
	}
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Mode = s
		t.Name = ""
		return nil
	}
	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	t.Mode = "named"
	t.Name = named.Function.Name
	return nil
}

// ToolDef is a client-declared tool available to this completion, OpenAI
// "function tool" shape.
type ToolDef struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// PlannerOptions enables the bounded argument-repair loop (component H).
type PlannerOptions struct {
	Enabled       bool `json:"enabled"`
	MaxPlanSteps  int  `json:"max_plan_steps"`
	MaxRewrites   int  `json:"max_rewrites"`
}

// ChatRequest is the normalized inbound /v1/chat/completions body.
type ChatRequest struct {
	Model           string         `json:"model"`
	Messages        []Message      `json:"messages"`
	Stream          bool           `json:"stream,omitempty"`
	MaxTokens       *int           `json:"max_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	TopP            *float64       `json:"top_p,omitempty"`
	MinP            *float64       `json:"min_p,omitempty"`
	Tools           []ToolDef      `json:"tools,omitempty"`
	ToolChoice      ToolChoice     `json:"tool_choice,omitempty"`
	MaxSteps        *int           `json:"max_steps,omitempty"`
	MaxToolCalls    *int           `json:"max_tool_calls,omitempty"`
	Planner         *PlannerOptions `json:"planner,omitempty"`
	Trace           bool           `json:"trace,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	UseServerHistory bool          `json:"use_server_history,omitempty"`
	TimeoutS        *float64       `json:"timeout_s,omitempty"`
}

// EffectiveMaxSteps returns max_steps honoring the spec default of 6.
func (r *ChatRequest) EffectiveMaxSteps() int {
	if r.MaxSteps != nil && *r.MaxSteps > 0 {
		return *r.MaxSteps
	}
	return 6
}

// EffectiveMaxToolCalls returns max_tool_calls honoring the spec default of 16.
func (r *ChatRequest) EffectiveMaxToolCalls() int {
	if r.MaxToolCalls != nil && *r.MaxToolCalls > 0 {
		return *r.MaxToolCalls
	}
	return 16
}

// EmbeddingsRequest is the inbound /v1/embeddings body. Embeddings are a thin
// passthrough per the spec; only Model/Input are inspected by the gateway.
type EmbeddingsRequest struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}
