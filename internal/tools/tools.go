// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	// AutoExecutable marks a tool as safe to invoke without human
	// sign-off (read-only or reversible). Anything that sends
	// communication or books an irreversible event stays false. This
	// flag is the single authority consulted by the orchestrator —
	// never re-derived from the tool name.
	AutoExecutable bool `json:"auto_executable"`

	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools  map[string]*Tool
	logger *slog.Logger

	calendar CalendarService
	mail     MailService
	contacts ContactFinder
}

// NewRegistry creates an empty tool registry. Tool sets are registered
// by the integration packages at startup.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry. Registering a duplicate name
// panics — tool sets are wired once at startup and a collision is a
// programming error, not a runtime condition.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", t.Name))
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil if absent.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all tool definitions for the model, in stable order.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, name := range r.Names() {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given arguments. Params are
// validated against the tool's schema before the handler runs. Handler
// failures come back as *ExternalServiceError; the executor itself
// holds no state and has no side effects beyond the handler's own.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &UnknownToolError{ToolName: name}
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateParams(tool, args); err != nil {
		return "", err
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		r.logger.Error("tool execution failed",
			"tool", name,
			"user", UserFromContext(ctx).ID,
			"elapsed", elapsed,
			"error", err,
		)
		return "", &ExternalServiceError{ToolName: name, Err: err}
	}

	r.logger.Debug("tool executed",
		"tool", name,
		"user", UserFromContext(ctx).ID,
		"elapsed", elapsed,
		"result_len", len(result),
	)
	return result, nil
}
