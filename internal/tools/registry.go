// Package tools implements the tool registry (spec §4.F) and the
// tool-call orchestrator (spec §4.G) — detecting tool calls in model
// output across dialects, validating arguments, invoking tools, and
// driving the step/call-budgeted loop to a terminal finish_reason.
package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/logging"
)

// Spec is one tool's name, description and JSON Schema.
type Spec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Invoker executes one tool call. authHeaders carries the inbound
// request's forwarded auth headers (spec §4.E) for MCP-backed tools;
// built-in tools ignore them.
type Invoker func(ctx context.Context, args json.RawMessage, authHeaders map[string]string) (text string, ok bool, err error)

type registered struct {
	spec    Spec
	invoke  Invoker
	timeout time.Duration
	schema  *jsonschema.Schema
}

// Registry unions built-in and MCP-discovered tools behind one
// name→{schema, invoker} lookup, with "first-wins, later ignored"
// collisions (spec §4.F).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registered
	logger  logging.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &Registry{entries: make(map[string]*registered), logger: logger}
}

// Register adds a tool. If a tool of the same name is already registered,
// the new registration is discarded and a warning logged — spec §4.F's
// first-wins collision policy. A zero timeout defaults to 30s, mirroring
// the teacher's executeOneTool default.
func (r *Registry) Register(spec Spec, invoke Invoker, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[spec.Name]; exists {
		r.logger.Warn(context.Background(), "tool name collision, first-wins", logging.F("tool", spec.Name))
		return
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var schema *jsonschema.Schema
	if len(spec.Parameters) > 0 {
		var doc any
		if err := json.Unmarshal(spec.Parameters, &doc); err == nil {
			c := jsonschema.NewCompiler()
			if err := c.AddResource(spec.Name+".schema.json", doc); err == nil {
				if compiled, err := c.Compile(spec.Name + ".schema.json"); err == nil {
					schema = compiled
				}
			}
		}
	}

	r.entries[spec.Name] = &registered{spec: spec, invoke: invoke, timeout: timeout, schema: schema}
}

// Reset clears every registration — used before a full MCP re-discovery
// so stale tools from a removed server don't linger.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*registered)
}

// Lookup finds a registered tool by name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Spec{}, false
	}
	return e.spec, true
}

// ValidateArgs checks args against the tool's compiled JSON Schema, if it
// has one. A tool with no (or unparseable) schema always validates —
// schema validation is best-effort per spec §4.F.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok || e.schema == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return err
	}
	return e.schema.Validate(doc)
}

// Invoke calls a registered tool's handler under its configured timeout.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage, authHeaders map[string]string) (string, bool, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text string
		ok   bool
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errPanic(r)}
			}
		}()
		text, ok, err := e.invoke(execCtx, args, authHeaders)
		done <- outcome{text: text, ok: ok, err: err}
	}()

	select {
	case o := <-done:
		return o.text, o.ok, o.err
	case <-execCtx.Done():
		return "", false, execCtx.Err()
	}
}

// ToolDefs renders every registered tool as an OpenAI-subset ToolDef, the
// shape sent to backends with native tool-call support.
func (r *Registry) ToolDefs() []chatapi.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chatapi.ToolDef, 0, len(r.entries))
	for _, e := range r.entries {
		var def chatapi.ToolDef
		def.Type = "function"
		def.Function.Name = e.spec.Name
		def.Function.Description = e.spec.Description
		def.Function.Parameters = e.spec.Parameters
		out = append(out, def)
	}
	return out
}

// Names returns every registered tool's name. The orchestrator takes the
// bare-heuristic candidate names from ToolDefs, not from Names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

func errPanic(r any) error {
	return &panicError{recovered: r}
}

type panicError struct{ recovered any }

func (e *panicError) Error() string { return "tool panicked: " + toString(e.recovered) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}
