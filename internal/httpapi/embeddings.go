package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
)

type embeddingsRequest struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

// handleEmbeddings implements POST /v1/embeddings as a raw passthrough
// to the resolved backend (spec §4.D): the gateway does not interpret
// or normalize embedding input/output, only routes it.
func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, badRequest("method %s not allowed", r.Method))
		return
	}

	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, badRequest("invalid JSON body: %s", err.Error()))
		return
	}
	if req.Model == "" {
		writeAPIError(w, badRequest("model is required"))
		return
	}

	binding, underlying, err := s.deps.Registry.Resolve(req.Model)
	if err != nil {
		writeErr(w, err)
		return
	}
	if binding.Limiter != nil {
		if err := binding.Limiter.Wait(r.Context(), binding.ID); err != nil {
			writeErr(w, chatapi.NewAPIError(http.StatusGatewayTimeout, chatapi.ErrUpstreamTimeout,
				"rate limiter wait for provider %q: %s", binding.ID, err.Error()))
			return
		}
	}

	out, err := binding.Backend.Embeddings(r.Context(), underlying, req.Input)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}
