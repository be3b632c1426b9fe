package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handle func(method string, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handle(req.Method, w, r)
	}))
}

func writeResult(w http.ResponseWriter, id any, result any) {
	data, _ := json.Marshal(result)
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data}
	body, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func TestInitializeParsesServerInfo(t *testing.T) {
	srv := rpcServer(t, func(method string, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "initialize", method)
		writeResult(w, "1", InitializeResult{ProtocolVersion: "2024-11-05", ServerInfo: ServerInfo{Name: "test-server", Version: "1.0"}})
	})
	defer srv.Close()

	c := NewClient("test", srv.URL)
	result, err := c.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
}

func TestListToolsParsesCatalog(t *testing.T) {
	srv := rpcServer(t, func(method string, w http.ResponseWriter, r *http.Request) {
		writeResult(w, "1", ListToolsResult{Tools: []Tool{{Name: "search", Description: "search the web"}}})
	})
	defer srv.Close()

	c := NewClient("test", srv.URL)
	tools, err := c.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
}

func TestCallToolForwardsAuthHeaders(t *testing.T) {
	var seenAuth, seenAPIKey string
	srv := rpcServer(t, func(method string, w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		seenAPIKey = r.Header.Get("x-api-key")
		writeResult(w, "1", ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: "42"}}})
	})
	defer srv.Close()

	c := NewClient("test", srv.URL)
	result, err := c.CallTool(context.Background(), "calc", json.RawMessage(`{"expr":"6*7"}`), map[string]string{
		"Authorization": "Bearer abc",
		"x-api-key":     "key123",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", result.Text())
	assert.Equal(t, "Bearer abc", seenAuth)
	assert.Equal(t, "key123", seenAPIKey)
}

func TestCallToolSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := JSONRPCResponse{JSONRPC: "2.0", ID: "1", Error: &JSONRPCError{Code: -32002, Message: "unknown tool"}}
		body, _ := json.Marshal(resp)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient("test", srv.URL)
	_, err := c.CallTool(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestToolCallResultTextJoinsMultipleBlocks(t *testing.T) {
	r := ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: "a"}, {Type: "text", Text: "b"}}}
	assert.Equal(t, "a\nb", r.Text())
}
