package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client talks JSON-RPC 2.0 over HTTP to a single MCP server, grounded on
// the teacher's HTTPTransport.Call/Connect (haasonsaas-nexus
// internal/mcp/transport_http.go and client.go), narrowed to the three
// methods spec §4.E names — stdio transport and the SSE push-notification
// loop are out of scope here since MCP_HOSTS is a flat list of HTTP URLs.
type Client struct {
	id      string
	url     string
	http    *http.Client
	headers []string
}

// NewClient builds a Client for one MCP_HOSTS entry.
func NewClient(id, url string) *Client {
	return &Client{
		id:      id,
		url:     url,
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: AuthHeaders,
	}
}

// ID returns the provider/server identifier this client was built with.
func (c *Client) ID() string { return c.id }

// Initialize negotiates capabilities with the server (spec §4.E).
func (c *Client) Initialize(ctx context.Context, authHeaders map[string]string) (*InitializeResult, error) {
	raw, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "local-ai-runtime", "version": "1.0.0"},
	}, authHeaders)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: initialize: %w", c.id, err)
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp %s: parse initialize result: %w", c.id, err)
	}
	return &result, nil
}

// ListTools fetches the server's tool catalog (spec §4.E tools/list).
func (c *Client) ListTools(ctx context.Context, authHeaders map[string]string) ([]Tool, error) {
	raw, err := c.call(ctx, "tools/list", nil, authHeaders)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: tools/list: %w", c.id, err)
	}
	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp %s: parse tools/list result: %w", c.id, err)
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with JSON arguments (spec §4.E tools/call).
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage, authHeaders map[string]string) (*ToolCallResult, error) {
	raw, err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: arguments}, authHeaders)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: tools/call %s: %w", c.id, name, err)
	}
	var result ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp %s: parse tools/call result: %w", c.id, err)
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, method string, params any, authHeaders map[string]string) (json.RawMessage, error) {
	req := JSONRPCRequest{JSONRPC: "2.0", ID: uuid.New().String(), Method: method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = encoded
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Forward inbound auth headers verbatim (spec §4.E) — never generate
	// or substitute credentials of our own.
	for _, name := range c.headers {
		if v, ok := authHeaders[name]; ok && v != "" {
			httpReq.Header.Set(name, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
