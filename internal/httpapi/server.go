// Package httpapi wires the gateway's OpenAI-compatible HTTP surface
// (spec §6): /v1/models, /v1/chat/completions, /v1/embeddings, and the
// internal MCP-catalog refresh endpoint.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/acproject/local-ai-runtime/internal/cache"
	"github.com/acproject/local-ai-runtime/internal/config"
	"github.com/acproject/local-ai-runtime/internal/logging"
	"github.com/acproject/local-ai-runtime/internal/mcp"
	"github.com/acproject/local-ai-runtime/internal/providers"
	"github.com/acproject/local-ai-runtime/internal/session"
	"github.com/acproject/local-ai-runtime/internal/tools"
)

// Deps collects every shared component the handlers need. One Deps is
// built at startup and reused across requests; the only per-request
// state is a fresh planner instance and session lock acquisition.
type Deps struct {
	Config       *config.Config
	Registry     *providers.Registry
	ToolRegistry *tools.Registry
	Catalog      *mcp.Catalog
	MCPClients   []*mcp.Client
	SessionStore session.Store
	Locks        *session.LockTable
	Cache        cache.Cache // nil disables response caching
	Logger       logging.Logger
}

// Server wraps the mux and the underlying http.Server, grounded on the
// teacher pack's gateway HTTP bootstrap (haasonsaas-nexus
// internal/gateway/http_server.go: net.Listen + http.Server with a
// ReadHeaderTimeout, served on a background goroutine, graceful
// Shutdown).
type Server struct {
	deps   Deps
	mux    *http.ServeMux
	srv    *http.Server
	logger logging.Logger
}

// New builds a Server and registers every route.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Noop{}
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/v1/models", s.withLogging(s.handleModels))
	s.mux.HandleFunc("/v1/chat/completions", s.withLogging(s.handleChatCompletions))
	s.mux.HandleFunc("/v1/embeddings", s.withLogging(s.handleEmbeddings))
	s.mux.HandleFunc("/internal/refresh_mcp_tools", s.withLogging(s.handleRefreshMCPTools))
}

// Start binds the configured listen address and serves in the
// background; it returns once the listener is open, not once the
// server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.deps.Config.ListenHost, s.deps.Config.ListenPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "http server error", logging.F("error", err.Error()))
		}
	}()
	s.logger.Info(context.Background(), "http server listening", logging.F("addr", addr))
	return nil
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
