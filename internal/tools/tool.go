// Package tools provides the tool contract, the gated registry that
// enforces allow/deny and confirmation policy around every call, and the
// filesystem/exec implementations the agent loop invokes.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wtokarzewski/janus-agent/internal/gate"
	"github.com/wtokarzewski/janus-agent/internal/provider"
)

// Tool is the interface every registered tool implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Contextual is an optional interface for tools that need per-call
// context (workspace root, exec limits, the caller's identity) injected
// before execution.
type Contextual interface {
	Tool
	SetContext(ctx CallContext)
}

// CallContext carries everything a tool might need beyond its own
// arguments: the workspace root, exec safety limits, and the identity of
// whoever is making this call.
type CallContext struct {
	WorkspaceDir    string
	ExecDenyPattern []string
	ExecTimeoutMS   int
	MaxFileSize     int64
	ChatID          string
	UserID          string
	ToolAllow       []string
	ToolDeny        []string
	SkillAllow      []string
	SkillDeny       []string
	ContentPolicy   string
}

// Registry holds the name-to-tool map and enforces allow/deny/gate policy
// on every call.
type Registry struct {
	tools map[string]Tool
	gate  *gate.Gate
	ask   Confirmer
}

// Confirmer resolves a gated call to true (proceed) or false (deny),
// e.g. by prompting a terminal user or waiting on a chat reply.
type Confirmer interface {
	Confirm(ctx context.Context, toolName string, args map[string]any) bool
}

// NewRegistry builds an empty registry. g and confirmer may be nil: with a
// nil gate no call is ever gated; with a gate but no confirmer, every call
// the gate matches is denied.
func NewRegistry(g *gate.Gate, confirmer Confirmer) *Registry {
	return &Registry{tools: make(map[string]Tool), gate: g, ask: confirmer}
}

// Register adds a tool, keyed by its own name.
func (r *Registry) Register(t Tool) { r.tools[t.Name()] = t }

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool's name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Summaries returns "name: description" lines for every tool visible to
// the given allow/deny lists, sorted by name.
func (r *Registry) Summaries(allow, deny []string) []string {
	out := make([]string, 0, len(r.tools))
	for _, name := range r.Names() {
		if !allowed(name, allow, deny) {
			continue
		}
		out = append(out, name+": "+r.tools[name].Description())
	}
	return out
}

// Definitions returns every tool's OpenAI-style function definition,
// filtered by the caller's tool allow/deny lists.
func (r *Registry) Definitions(callCtx CallContext) []map[string]any {
	out := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		if !allowed(name, callCtx.ToolAllow, callCtx.ToolDeny) {
			continue
		}
		t := r.tools[name]
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  t.Parameters(),
			},
		})
	}
	return out
}

// ProviderDefinitions returns every visible tool's definition in the
// provider package's request shape, for handing straight to a chat call.
func (r *Registry) ProviderDefinitions(callCtx CallContext) []provider.ToolDefinition {
	out := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		if !allowed(name, callCtx.ToolAllow, callCtx.ToolDeny) {
			continue
		}
		t := r.tools[name]
		out = append(out, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// Execute runs the named tool, enforcing (in order): unknown-tool,
// allow-list, deny-list, gate confirmation, then the call itself with its
// error normalized to a leading "Error:" string rather than a Go error,
// so a failed tool call becomes ordinary content for the model to react
// to instead of aborting the loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, callCtx CallContext) string {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %s", name, strings.Join(r.Names(), ", "))
	}

	if len(callCtx.ToolAllow) > 0 && !contains(callCtx.ToolAllow, name) {
		return fmt.Sprintf("Error: Tool %q is not available for this user.", name)
	}
	if contains(callCtx.ToolDeny, name) {
		return fmt.Sprintf("Error: Tool %q is not available for this user.", name)
	}

	if r.gate != nil && r.gate.Matches(name, args) {
		// A synchronous Confirmer already has the decision in hand, so
		// there's no pending request to register or resolve — Create/
		// Wait/Respond exist for channels that answer asynchronously.
		// Without a Confirmer nothing here could ever Respond to a gate
		// request, so the call is denied rather than waited on.
		approved := r.ask != nil && r.ask.Confirm(ctx, name, args)
		if !approved {
			return fmt.Sprintf("Action denied by user: %q was not approved", name)
		}
	}

	if ctxTool, ok := t.(Contextual); ok {
		ctxTool.SetContext(callCtx)
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result
}

func allowed(name string, allow, deny []string) bool {
	if len(allow) > 0 && !contains(allow, name) {
		return false
	}
	return !contains(deny, name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetString extracts a string parameter with a default value.
func GetString(args map[string]any, key, def string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetInt extracts an int parameter with a default value, accepting both
// Go ints and the float64 shape JSON decoding produces.
func GetInt(args map[string]any, key string, def int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}
