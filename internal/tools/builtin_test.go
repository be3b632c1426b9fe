package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTaskStatusDetectsDone(t *testing.T) {
	text, ok, err := inferTaskStatusInvoke(context.Background(), json.RawMessage(`{"text":"the migration is complete"}`), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	var result inferTaskStatusResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "done", result.Status)
}

func TestInferTaskStatusDetectsBlocked(t *testing.T) {
	text, ok, err := inferTaskStatusInvoke(context.Background(), json.RawMessage(`{"text":"blocked on the upstream review"}`), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	var result inferTaskStatusResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "blocked", result.Status)
}

func TestInferTaskStatusDefaultsToNotStarted(t *testing.T) {
	text, ok, err := inferTaskStatusInvoke(context.Background(), json.RawMessage(`{"text":"write the design doc"}`), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	var result inferTaskStatusResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "not_started", result.Status)
}

func TestRegisterBuiltinsRegistersInferTaskStatus(t *testing.T) {
	r := NewRegistry(nil)
	RegisterBuiltins(r)
	_, ok := r.Lookup("runtime.infer_task_status")
	assert.True(t, ok)
}
