package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/acproject/local-ai-runtime/internal/cache"
	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/logging"
	"github.com/acproject/local-ai-runtime/internal/planner"
	"github.com/acproject/local-ai-runtime/internal/sampling"
	"github.com/acproject/local-ai-runtime/internal/session"
	"github.com/acproject/local-ai-runtime/internal/tools"
)

const cacheTTL = 5 * time.Minute

type chatMessageOut struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Index        int            `json:"index"`
	Message      chatMessageOut `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatDelta struct {
	Content string `json:"content,omitempty"`
}

type chatChunkChoice struct {
	Index        int        `json:"index"`
	Delta        chatDelta  `json:"delta"`
	FinishReason *string    `json:"finish_reason,omitempty"`
}

type chatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []chatChunkChoice `json:"choices"`
}

// handleChatCompletions implements POST /v1/chat/completions: the full
// pipeline of spec §4.A's data flow — session hydration, routing,
// sampling normalization, the tool-call loop, session persistence, and
// streaming or non-streaming response assembly.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, badRequest("method %s not allowed", r.Method))
		return
	}

	var req chatapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, badRequest("invalid JSON body: %s", err.Error()))
		return
	}
	if req.Model == "" {
		writeAPIError(w, badRequest("model is required"))
		return
	}
	if err := chatapi.ValidateRoleSequence(req.Messages); err != nil {
		writeAPIError(w, badRequest("%s", err.Error()))
		return
	}

	toolDefs := req.Tools
	if len(toolDefs) == 0 {
		toolDefs = s.deps.ToolRegistry.ToolDefs()
	}
	if req.ToolChoice.Mode == "named" {
		if !hasToolNamed(toolDefs, req.ToolChoice.Name) {
			writeAPIError(w, badRequest("tool_choice names unknown tool %q", req.ToolChoice.Name))
			return
		}
	}

	sessionID := req.SessionID
	if h := r.Header.Get("x-session-id"); h != "" {
		sessionID = h
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	release, err := s.deps.Locks.Acquire(r.Context(), sessionID)
	if err != nil {
		writeAPIError(w, chatapi.NewAPIError(http.StatusConflict, chatapi.ErrSessionBusy,
			"session %q busy: %s", sessionID, err.Error()))
		return
	}
	defer release()

	ns := s.deps.Config.SessionStore.Namespace
	prior, err := s.deps.SessionStore.Load(r.Context(), ns, sessionID)
	if err != nil {
		writeErr(w, err)
		return
	}

	messages := req.Messages
	if prior != nil && (req.UseServerHistory || !messagesHavePrefix(req.Messages, prior.History)) {
		messages = append(append([]chatapi.Message(nil), prior.History...), req.Messages...)
	}

	params := sampling.Normalize(req.Model, sampling.Request{
		Temperature: req.Temperature, TopP: req.TopP, MinP: req.MinP,
	})

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

	authHeaders := map[string]string{}
	if auth := r.Header.Get("Authorization"); auth != "" {
		authHeaders["Authorization"] = auth
	}

	eligible := cache.Eligible(params, req.Tools)
	cacheKey := ""
	if eligible && s.deps.Cache != nil {
		cacheKey = cache.Key(underlying, messages, params)
		if cached, hit, _ := s.deps.Cache.Get(r.Context(), cacheKey); hit {
			w.Header().Set("x-session-id", sessionID)
			s.writeCachedResponse(w, req.Stream, req.Model, cached)
			return
		}
	}

	var repairer tools.Repairer
	if req.Planner != nil && req.Planner.Enabled {
		cfg := planner.DefaultConfig()
		cfg.Enabled = true
		if req.Planner.MaxPlanSteps > 0 {
			cfg.MaxPlanSteps = req.Planner.MaxPlanSteps
		}
		if req.Planner.MaxRewrites > 0 {
			cfg.MaxRewrites = req.Planner.MaxRewrites
		}
		repairer = planner.NewForRequest(cfg, binding.Backend, underlying, s.logger)
	}

	orch := &tools.Orchestrator{
		Backend:  binding.Backend,
		Registry: s.deps.ToolRegistry,
		Logger:   s.logger,
		Repairer: repairer,
	}
	in := tools.RunInput{
		Model:          underlying,
		Messages:       messages,
		Tools:          req.Tools,
		ToolChoice:     req.ToolChoice,
		Sampling:       params,
		MaxTokens:      req.MaxTokens,
		Budgets:        tools.Budgets{MaxSteps: req.EffectiveMaxSteps(), MaxToolCalls: req.EffectiveMaxToolCalls()},
		AuthHeaders:    authHeaders,
		PlannerEnabled: req.Planner != nil && req.Planner.Enabled,
	}

	if req.Stream {
		s.runStreaming(w, r, orch, in, req, sessionID, prior)
		return
	}
	s.runNonStreaming(w, r, orch, in, req, sessionID, prior, eligible, cacheKey)
}

func (s *Server) runNonStreaming(w http.ResponseWriter, r *http.Request, orch *tools.Orchestrator, in tools.RunInput, req chatapi.ChatRequest, sessionID string, prior *session.Session, eligible bool, cacheKey string) {
	result, err := orch.Run(r.Context(), in, nil)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.persistSession(r, sessionID, prior, req, result.Messages)

	resp := chatCompletionResponse{
		ID:     "chatcmpl-" + sessionID,
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessageOut{Role: "assistant", Content: result.FinalText},
			FinishReason: result.FinishReason,
		}},
	}

	w.Header().Set("x-session-id", sessionID)
	if req.Trace {
		w.Header().Set("x-runtime-trace", result.Trace.Header())
	}
	w.Header().Set("Content-Type", "application/json")

	if eligible && s.deps.Cache != nil && result.FinishReason == "stop" && len(result.Trace.ToolCalls) == 0 {
		if blob, merr := json.Marshal(resp); merr == nil {
			_ = s.deps.Cache.Set(r.Context(), cacheKey, string(blob), cacheTTL)
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) runStreaming(w http.ResponseWriter, r *http.Request, orch *tools.Orchestrator, in tools.RunInput, req chatapi.ChatRequest, sessionID string, prior *session.Session) {
	w.Header().Set("x-session-id", sessionID)
	sse := newSSEWriter(w)

	result, err := orch.Run(r.Context(), in, func(d tools.DeltaEvent) {
		if d.Content == "" {
			return
		}
		_ = sse.writeJSON(chatCompletionChunk{
			ID:      "chatcmpl-" + sessionID,
			Object:  "chat.completion.chunk",
			Model:   req.Model,
			Choices: []chatChunkChoice{{Index: 0, Delta: chatDelta{Content: d.Content}}},
		})
	})
	if err != nil {
		s.logger.Error(r.Context(), "streaming chat run failed", logging.F("error", err.Error()))
		sse.done()
		return
	}

	s.persistSession(r, sessionID, prior, req, result.Messages)

	finish := result.FinishReason
	_ = sse.writeJSON(chatCompletionChunk{
		ID:      "chatcmpl-" + sessionID,
		Object:  "chat.completion.chunk",
		Model:   req.Model,
		Choices: []chatChunkChoice{{Index: 0, Delta: chatDelta{}, FinishReason: &finish}},
	})
	sse.done()
}

// writeCachedResponse renders a cached response body, adapting it to a
// single-chunk SSE stream when the request asked for streaming (spec
// §4.O: cached entries are still served for a streaming request, just
// without incremental deltas).
func (s *Server) writeCachedResponse(w http.ResponseWriter, stream bool, model, cached string) {
	if !stream {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cached))
		return
	}
	var resp chatCompletionResponse
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cached))
		return
	}
	sse := newSSEWriter(w)
	content := ""
	finish := "stop"
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finish = resp.Choices[0].FinishReason
	}
	_ = sse.writeJSON(chatCompletionChunk{
		ID: resp.ID, Object: "chat.completion.chunk", Model: model,
		Choices: []chatChunkChoice{{Index: 0, Delta: chatDelta{Content: content}}},
	})
	_ = sse.writeJSON(chatCompletionChunk{
		ID: resp.ID, Object: "chat.completion.chunk", Model: model,
		Choices: []chatChunkChoice{{Index: 0, Delta: chatDelta{}, FinishReason: &finish}},
	})
	sse.done()
}

func (s *Server) persistSession(r *http.Request, sessionID string, prior *session.Session, req chatapi.ChatRequest, finalMessages []chatapi.Message) {
	now := time.Now()
	sess := &session.Session{SessionID: sessionID, History: finalMessages, UpdatedAt: now}
	if prior != nil {
		sess.CreatedAt = prior.CreatedAt
		sess.Turns = append([]session.Turn(nil), prior.Turns...)
	} else {
		sess.CreatedAt = now
	}
	if u, ok := lastUserMessage(req.Messages); ok {
		sess.Turns = append(sess.Turns, session.Turn{Role: chatapi.RoleUser, Content: u.Content.String(), Timestamp: now})
	}
	if a, ok := lastAssistantMessage(finalMessages); ok {
		sess.Turns = append(sess.Turns, session.Turn{Role: chatapi.RoleAssistant, Content: a.Content.String(), Timestamp: now})
	}

	ns := s.deps.Config.SessionStore.Namespace
	if err := s.deps.SessionStore.Save(r.Context(), ns, sessionID, sess); err != nil {
		s.logger.Error(r.Context(), "session save failed", logging.F("error", err.Error()))
	}
}

func hasToolNamed(defs []chatapi.ToolDef, name string) bool {
	for _, d := range defs {
		if d.Function.Name == name {
			return true
		}
	}
	return false
}

func messagesHavePrefix(messages, prefix []chatapi.Message) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(messages) < len(prefix) {
		return false
	}
	for i, m := range prefix {
		if messages[i].Role != m.Role || messages[i].Content.String() != m.Content.String() {
			return false
		}
	}
	return true
}

func lastUserMessage(messages []chatapi.Message) (chatapi.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chatapi.RoleUser {
			return messages[i], true
		}
	}
	return chatapi.Message{}, false
}

func lastAssistantMessage(messages []chatapi.Message) (chatapi.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chatapi.RoleAssistant {
			return messages[i], true
		}
	}
	return chatapi.Message{}, false
}
