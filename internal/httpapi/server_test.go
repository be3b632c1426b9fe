package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acproject/local-ai-runtime/internal/cache"
	"github.com/acproject/local-ai-runtime/internal/config"
	"github.com/acproject/local-ai-runtime/internal/mcp"
	"github.com/acproject/local-ai-runtime/internal/providers"
	"github.com/acproject/local-ai-runtime/internal/session"
	"github.com/acproject/local-ai-runtime/internal/tools"
)

// newMockBackendServer spins up a minimal OpenAI-subset HTTP peer so the
// real openaiCompatBackend (and, through it, the openai-go SDK client)
// drives every httpapi test end to end rather than faking out the
// Backend interface — the gateway's contract with its backends IS that
// wire format (spec §4.C). contentFor, when non-nil, derives the reply
// content from the inbound message count/last-message text so
// session-hydration tests can assert on what the backend actually saw
// (spec §8 scenarios 1-2's "mock:n=<count> last=<text>" fixture).
func newMockBackendServer(t *testing.T, contentFor func(messages []map[string]any) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		content := "mock reply"
		if contentFor != nil {
			content = contentFor(body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "mock-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "mock-model", "object": "model"}},
		})
	})
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"embedding":[0.1,0.2],"index":0}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newScriptedMockBackendServer replies with one canned content string per
// call, in order, reusing the last one once exhausted — enough to drive
// a multi-step tool-call scenario through the real HTTP wire format.
func newScriptedMockBackendServer(t *testing.T, contents []string) *httptest.Server {
	t.Helper()
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		content := contents[len(contents)-1]
		if calls < len(contents) {
			content = contents[calls]
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-test", "object": "chat.completion", "created": 0, "model": "mock-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newSamplingCapturingMockBackendServer records the temperature/top_p it
// was actually called with, so a test can assert on normalized sampling
// without reaching into the orchestrator internals.
func newSamplingCapturingMockBackendServer(t *testing.T, captured *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		*captured = body
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-test", "object": "chat.completion", "created": 0, "model": "glm-mock",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "ok"},
				"finish_reason": "stop",
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, backendHost string) *Server {
	t.Helper()
	reg := tools.NewRegistry(nil)
	tools.RegisterBuiltins(reg)

	cfg := config.Default()
	cfg.SessionStore.Namespace = "test"
	cfg.LlamaCpp.Host = backendHost
	cfg.LlamaCpp.Model = "mock-model"

	providerReg := providers.NewRegistry(cfg, nil)

	store, err := session.New(cfg.SessionStore)
	require.NoError(t, err)

	deps := Deps{
		Config:       cfg,
		Registry:     providerReg,
		ToolRegistry: reg,
		Catalog:      mcp.NewCatalog(nil),
		SessionStore: store,
		Locks:        session.NewLockTable(5 * time.Second),
		Cache:        cache.NewMemoryCache(16, time.Minute),
	}
	return New(deps)
}
