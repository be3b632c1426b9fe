package chatapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHeaderIsSingleLine(t *testing.T) {
	tr := &Trace{
		Model:        "glm-4",
		Provider:     "llama_cpp",
		UsedPlanner:  true,
		PlanRewrites: 2,
		ToolCalls:    []ToolCallTrace{{ID: "c1", Name: "fs.read_file", ArgsSummary: "{\"path\":\"a.go\"}"}},
		ToolResults:  []ToolResultTrace{{ID: "c1", Name: "fs.read_file", OK: true, MS: 12}},
		Timings:      Timings{BackendMS: 100, ToolMS: 12, TotalMS: 115},
	}
	h := tr.Header()
	assert.False(t, strings.Contains(h, "\n"))

	var back Trace
	require.NoError(t, json.Unmarshal([]byte(h), &back))
	assert.Equal(t, tr.Model, back.Model)
	assert.Equal(t, tr.PlanRewrites, back.PlanRewrites)
}

func TestTraceHeaderNilSafe(t *testing.T) {
	var tr *Trace
	assert.Equal(t, "", tr.Header())
}
