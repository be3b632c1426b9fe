package chatapi

import "encoding/json"

// ToolCallTrace summarizes one emitted tool call for the trace.
type ToolCallTrace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ArgsSummary string `json:"args_summary"`
}

// ToolResultTrace summarizes one tool invocation outcome for the trace.
type ToolResultTrace struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	MS    int64  `json:"ms"`
}

// Timings records coarse per-request latency buckets.
type Timings struct {
	BackendMS int64 `json:"backend_ms"`
	ToolMS    int64 `json:"tool_ms"`
	TotalMS   int64 `json:"total_ms"`
}

// Trace is the per-request observability record described in spec §4.J.
type Trace struct {
	Model        string            `json:"model"`
	Provider     string            `json:"provider"`
	UsedPlanner  bool              `json:"used_planner"`
	PlanRewrites int               `json:"plan_rewrites"`
	ToolCalls    []ToolCallTrace   `json:"tool_calls"`
	ToolResults  []ToolResultTrace `json:"tool_results"`
	Timings      Timings           `json:"timings"`
}

// Header renders the trace as the single-line JSON carried in
// x-runtime-trace.
func (t *Trace) Header() string {
	if t == nil {
		return ""
	}
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(b)
}
