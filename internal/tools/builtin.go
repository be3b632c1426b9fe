package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// RegisterBuiltins registers the gateway's built-in tools at startup
// (spec §4.F: "Built-in tools (e.g., runtime.infer_task_status) register
// at startup"), ahead of any MCP discovery so a colliding MCP tool name
// never displaces a built-in one (first-wins).
func RegisterBuiltins(r *Registry) {
	r.Register(inferTaskStatusSpec, inferTaskStatusInvoke, 0)
}

var inferTaskStatusSpec = Spec{
	Name:        "runtime.infer_task_status",
	Description: "Infers whether a piece of free-form task text describes work that is done, in progress, blocked, or not yet started.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "free-form task description or status note"}
		},
		"required": ["text"]
	}`),
}

type inferTaskStatusArgs struct {
	Text string `json:"text"`
}

type inferTaskStatusResult struct {
	Status string `json:"status"`
}

var (
	doneMarkers    = []string{"done", "complete", "completed", "finished", "shipped", "merged"}
	blockedMarkers = []string{"blocked", "stuck", "waiting on", "waiting for"}
	progressMarkers = []string{"in progress", "working on", "started", "wip"}
)

// inferTaskStatusInvoke applies a small keyword heuristic — this tool
// exists to give the orchestrator a deterministic, dependency-free
// built-in to exercise end-to-end (no backend, no MCP round trip), not to
// be a production-grade classifier.
func inferTaskStatusInvoke(ctx context.Context, args json.RawMessage, _ map[string]string) (string, bool, error) {
	var parsed inferTaskStatusArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", false, err
	}
	lower := strings.ToLower(parsed.Text)

	status := "not_started"
	switch {
	case containsAny(lower, doneMarkers):
		status = "done"
	case containsAny(lower, blockedMarkers):
		status = "blocked"
	case containsAny(lower, progressMarkers):
		status = "in_progress"
	}

	out, err := json.Marshal(inferTaskStatusResult{Status: status})
	if err != nil {
		return "", false, err
	}
	return string(out), true, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
