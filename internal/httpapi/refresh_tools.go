package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/acproject/local-ai-runtime/internal/tools"
)

type refreshToolsResponse struct {
	ToolCount int `json:"tool_count"`
}

// handleRefreshMCPTools implements POST /internal/refresh_mcp_tools
// (spec §4.E): re-runs discovery against every configured MCP server and
// rebuilds the tool registry, built-ins first so they keep first-wins
// priority over any identically named MCP tool.
func (s *Server) handleRefreshMCPTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, badRequest("method %s not allowed", r.Method))
		return
	}

	authHeaders := map[string]string{}
	if auth := r.Header.Get("Authorization"); auth != "" {
		authHeaders["Authorization"] = auth
	}

	s.deps.Catalog.Refresh(r.Context(), s.deps.MCPClients, authHeaders)

	s.deps.ToolRegistry.Reset()
	tools.RegisterBuiltins(s.deps.ToolRegistry)
	tools.RegisterMCPCatalog(s.deps.ToolRegistry, s.deps.Catalog, 30*time.Second)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(refreshToolsResponse{ToolCount: len(s.deps.Catalog.List())})
}
