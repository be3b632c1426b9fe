package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/acproject/local-ai-runtime/internal/mcp"
)

// RegisterMCPCatalog registers every discovered MCP tool into the
// registry, wrapping each CatalogEntry's Client.CallTool as an Invoker
// that forwards the caller's auth headers (spec §4.E/§4.F). Call after
// RegisterBuiltins so built-ins keep first-wins priority over any
// identically named MCP tool.
func RegisterMCPCatalog(r *Registry, catalog *mcp.Catalog, timeout time.Duration) {
	for _, entry := range catalog.List() {
		entry := entry
		r.Register(Spec{
			Name:        entry.Tool.Name,
			Description: entry.Tool.Description,
			Parameters:  entry.Tool.InputSchema,
		}, mcpInvoker(entry), timeout)
	}
}

func mcpInvoker(entry mcp.CatalogEntry) Invoker {
	return func(ctx context.Context, args json.RawMessage, authHeaders map[string]string) (string, bool, error) {
		result, err := entry.Client.CallTool(ctx, entry.Tool.Name, args, authHeaders)
		if err != nil {
			return "", false, err
		}
		return result.Text(), !result.IsError, nil
	}
}
