package mcp

import (
	"context"
	"sync"

	"github.com/acproject/local-ai-runtime/internal/logging"
)

// CatalogEntry binds a discovered tool to the client that serves it.
type CatalogEntry struct {
	Tool     Tool
	ServerID string
	Client   *Client
}

// Catalog is the merged tool catalog across every configured MCP server
// (spec §4.E: "Discovery runs at startup and on explicit refresh; results
// populate the tool registry"). Collisions use first-wins — the same
// policy spec §4.F gives the tool registry — so on a name collision the
// server listed earlier in MCP_HOSTS keeps the tool.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]CatalogEntry
	logger  logging.Logger
}

// NewCatalog builds an empty catalog. Call Refresh to populate it.
func NewCatalog(logger logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Catalog{entries: make(map[string]CatalogEntry), logger: logger}
}

// Refresh re-runs discovery (initialize + tools/list) against every
// client and replaces the catalog wholesale. A single unreachable server
// degrades that server's tools out of the catalog rather than failing the
// whole refresh (spec §4.E: "transport failures surface as orchestrator
// -level tool errors, not handler failures").
func (c *Catalog) Refresh(ctx context.Context, clients []*Client, authHeaders map[string]string) {
	fresh := make(map[string]CatalogEntry)

	for _, client := range clients {
		if _, err := client.Initialize(ctx, authHeaders); err != nil {
			c.logger.Warn(ctx, "mcp server initialize failed", logging.F("server", client.ID()), logging.F("error", err.Error()))
			continue
		}
		tools, err := client.ListTools(ctx, authHeaders)
		if err != nil {
			c.logger.Warn(ctx, "mcp server tools/list failed", logging.F("server", client.ID()), logging.F("error", err.Error()))
			continue
		}
		for _, t := range tools {
			if kept, exists := fresh[t.Name]; exists {
				c.logger.Warn(ctx, "mcp tool name collision, first-wins", logging.F("tool", t.Name), logging.F("server", client.ID()), logging.F("kept_server", kept.ServerID))
				continue
			}
			fresh[t.Name] = CatalogEntry{Tool: t, ServerID: client.ID(), Client: client}
		}
	}

	c.mu.Lock()
	c.entries = fresh
	c.mu.Unlock()
}

// Lookup returns the catalog entry for a tool name, if discovered.
func (c *Catalog) Lookup(name string) (CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// List returns every discovered entry, in no particular order.
func (c *Catalog) List() []CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}
