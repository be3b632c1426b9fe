package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/config"
	"github.com/acproject/local-ai-runtime/internal/ratelimit"
)

// Binding is one configured provider: its backend adapter, the rate limiter
// guarding outbound calls to it, and whatever made it unusable at startup
// (spec §4.B.4 — "unreachable or misconfigured"). A Binding with a non-nil
// Unavailable reason is still registered under its provider-id so that a
// request naming it by prefix gets provider_unavailable naming the
// provider, not provider_not_found.
type Binding struct {
	ID           string
	Backend      Backend
	Limiter      *ratelimit.Limiter
	Unavailable  string // empty when usable
	DefaultModel string
}

// Registry maps provider-ids (spec §4.B) to backend bindings and resolves
// `model` strings via the `provider:model` prefix rule. It is read-mostly —
// rebuilt wholesale by Reload, never mutated field-by-field — so
// reads take a plain RWMutex the way the teacher's tool/provider registries
// do (spec §4.P: "reader-preferring lock").
type Registry struct {
	mu              sync.RWMutex
	bindings        map[string]*Binding
	defaultProvider string
}

// NewRegistry builds bindings for every provider the gateway knows how to
// speak to, from the resolved Config. Providers lacking required
// configuration are still registered, marked Unavailable, so that routing
// to them fails with provider_unavailable rather than provider_not_found.
func NewRegistry(cfg *config.Config, limiters map[string]*ratelimit.Limiter) *Registry {
	r := &Registry{
		bindings:        make(map[string]*Binding),
		defaultProvider: cfg.DefaultProvider,
	}
	r.rebuild(cfg, limiters)
	return r
}

// Reload replaces every binding from a freshly loaded Config. The config
// file watcher does not call it: a reloaded config leaves the bindings
// built at startup in place.
func (r *Registry) Reload(cfg *config.Config, limiters map[string]*ratelimit.Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultProvider = cfg.DefaultProvider
	r.bindings = buildBindings(cfg, limiters)
}

func (r *Registry) rebuild(cfg *config.Config, limiters map[string]*ratelimit.Limiter) {
	r.bindings = buildBindings(cfg, limiters)
}

func buildBindings(cfg *config.Config, limiters map[string]*ratelimit.Limiter) map[string]*Binding {
	bindings := make(map[string]*Binding, 4)

	bindings["llama_cpp"] = &Binding{
		ID:           "llama_cpp",
		DefaultModel: cfg.LlamaCpp.Model,
		Limiter:      limiters["llama_cpp"],
	}
	if cfg.LlamaCpp.Model == "" {
		bindings["llama_cpp"].Unavailable = "LLAMA_CPP_MODEL is not set"
	} else {
		bindings["llama_cpp"].Backend = NewOpenAICompatBackend(cfg.LlamaCpp.Host, "")
	}

	registerHostedProvider(bindings, limiters, "lmdeploy", cfg.LMDeployHost)
	registerHostedProvider(bindings, limiters, "mnn", cfg.MNNHost)
	registerHostedProvider(bindings, limiters, "ollama", cfg.OllamaHost)

	return bindings
}

func registerHostedProvider(bindings map[string]*Binding, limiters map[string]*ratelimit.Limiter, id, host string) {
	b := &Binding{ID: id, Limiter: limiters[id]}
	if host == "" {
		b.Unavailable = fmt.Sprintf("no host configured for provider %q", id)
	} else {
		b.Backend = NewOpenAICompatBackend(host, "")
	}
	bindings[id] = b
}

// Resolve splits a `model` string on its first `:` (spec §4.B.1-2): a
// provider prefix routes explicitly, otherwise the default provider owns
// the request. The returned model string has the prefix stripped.
func (r *Registry) Resolve(model string) (*Binding, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerID, underlying := splitModel(model)
	if providerID == "" {
		providerID = r.defaultProvider
		underlying = model
	}

	b, ok := r.bindings[providerID]
	if !ok {
		return nil, "", chatapi.NewAPIError(502, chatapi.ErrProviderNotFound,
			"unknown provider %q", providerID)
	}
	if b.Unavailable != "" {
		return nil, "", chatapi.NewAPIError(502, chatapi.ErrProviderUnavailable,
			"%s: %s", providerID+":", b.Unavailable)
	}
	return b, underlying, nil
}

func splitModel(model string) (provider, underlying string) {
	idx := strings.Index(model, ":")
	if idx < 0 {
		return "", model
	}
	return model[:idx], model[idx+1:]
}

// ListModels enumerates every usable provider's models twice (spec
// §4.B.3): the raw backend id and the `<provider>:<id>` prefixed form.
func (r *Registry) ListModels(ctx context.Context) []ModelEntry {
	r.mu.RLock()
	bindings := make([]*Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bindings = append(bindings, b)
	}
	r.mu.RUnlock()

	var out []ModelEntry
	for _, b := range bindings {
		if b.Unavailable != "" || b.Backend == nil {
			continue
		}
		ids, err := b.Backend.ListModels(ctx)
		if err != nil {
			continue
		}
		for _, id := range ids {
			out = append(out, ModelEntry{ID: id, OwnedBy: b.ID})
			out = append(out, ModelEntry{ID: b.ID + ":" + id, OwnedBy: b.ID})
		}
	}
	return out
}

// ModelEntry is one row of a `/v1/models` listing.
type ModelEntry struct {
	ID      string
	OwnedBy string
}
