// Command runtimed is the gateway's process entrypoint: it assembles
// every component from internal/config, internal/providers,
// internal/tools, internal/mcp, internal/session and internal/cache,
// then serves the OpenAI-compatible HTTP surface until terminated.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/acproject/local-ai-runtime/internal/cache"
	"github.com/acproject/local-ai-runtime/internal/config"
	"github.com/acproject/local-ai-runtime/internal/httpapi"
	"github.com/acproject/local-ai-runtime/internal/logging"
	"github.com/acproject/local-ai-runtime/internal/mcp"
	"github.com/acproject/local-ai-runtime/internal/providers"
	"github.com/acproject/local-ai-runtime/internal/ratelimit"
	"github.com/acproject/local-ai-runtime/internal/session"
	"github.com/acproject/local-ai-runtime/internal/tools"
)

func main() {
	os.Exit(run())
}

// run builds the process and blocks until a shutdown signal arrives,
// returning a process exit code (spec §6: non-zero on configuration
// failure).
func run() int {
	bootLog := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	watcher, err := config.NewWatcher(os.Getenv, bootLog)
	if err != nil {
		bootLog.Error("load config", "error", err)
		return 1
	}
	cfg := watcher.Current()
	logger := logging.New(cfg.LogLevel)

	stopWatch, err := watcher.Start()
	if err != nil {
		logger.Error(context.Background(), "start config watcher", logging.F("error", err.Error()))
		return 1
	}
	defer stopWatch()

	sessionStore, err := session.New(cfg.SessionStore)
	if err != nil {
		logger.Error(context.Background(), "build session store", logging.F("error", err.Error()))
		return 1
	}
	switch st := sessionStore.(type) {
	case interface{ Close() error }:
		defer st.Close()
	case interface{ Close() }:
		defer st.Close()
	}

	limiters := map[string]*ratelimit.Limiter{}
	for _, id := range []string{"llama_cpp", "lmdeploy", "mnn", "ollama"} {
		lim, err := ratelimit.New(ratelimit.DefaultConfig())
		if err != nil {
			logger.Error(context.Background(), "build rate limiter", logging.F("provider", id), logging.F("error", err.Error()))
			return 1
		}
		limiters[id] = lim
	}
	defer func() {
		for _, lim := range limiters {
			lim.Stop()
		}
	}()

	providerRegistry := providers.NewRegistry(cfg, limiters)

	toolRegistry := tools.NewRegistry(logger)
	tools.RegisterBuiltins(toolRegistry)

	mcpClients := buildMCPClients(cfg)
	catalog := mcp.NewCatalog(logger)
	catalog.Refresh(context.Background(), mcpClients, nil)
	tools.RegisterMCPCatalog(toolRegistry, catalog, 30*time.Second)

	// When the session store is Redis-backed, the response cache shares
	// its connection pool rather than opening a second one.
	var responseCache cache.Cache
	if kv, ok := sessionStore.(*session.KVStore); ok {
		responseCache = cache.NewRedisCache(kv.Client(), "runtime:cache", 5*time.Minute)
	} else {
		responseCache = cache.NewMemoryCache(1024, 5*time.Minute)
	}
	if closer, ok := responseCache.(interface{ Close() }); ok {
		defer closer.Close()
	}

	deps := httpapi.Deps{
		Config:       cfg,
		Registry:     providerRegistry,
		ToolRegistry: toolRegistry,
		Catalog:      catalog,
		MCPClients:   mcpClients,
		SessionStore: sessionStore,
		Locks:        session.NewLockTable(session.DefaultLockWait),
		Cache:        responseCache,
		Logger:       logger,
	}
	server := httpapi.New(deps)
	if err := server.Start(); err != nil {
		logger.Error(context.Background(), "start http server", logging.F("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "graceful shutdown failed", logging.F("error", err.Error()))
		return 1
	}
	return 0
}

func buildMCPClients(cfg *config.Config) []*mcp.Client {
	clients := make([]*mcp.Client, 0, len(cfg.MCPHosts))
	for i, host := range cfg.MCPHosts {
		clients = append(clients, mcp.NewClient(mcpClientID(i), host))
	}
	return clients
}

func mcpClientID(i int) string {
	return "mcp" + strconv.Itoa(i)
}
