package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/value"
)

// Handler is the function signature for tool implementations.
// Handlers receive the request context and the arguments exactly as the model
// produced them; decoding and validating them is the handler's job.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Result is the tool execution output that feeds back into the next model turn.
// Payload is encoded through value.Marshal. IsError marks a failure the tool
// chose to report as data.
type Result struct {
	Payload any
	IsError bool
}

type entry struct {
	tool    protocol.Tool
	handler Handler
}

// Registry maps tool names to schemas and handlers. The zero value is not
// usable; create one with NewRegistry. Safe for concurrent use.
type Registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a new tool.
// Returns ErrAlreadyExists if a tool with the same name is already registered.
// Use Replace to update an existing tool's handler.
func (r *Registry) Register(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Replace updates an existing tool's definition and handler.
// Returns ErrNotFound if no tool with the given name is registered.
func (r *Registry) Replace(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Get retrieves a handler by tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.handler, true
}

// List returns the definitions of all registered tools sorted by name.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		tools = append(tools, e.tool)
	}
	slices.SortFunc(tools, func(a, b protocol.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tools
}

// Execute dispatches a tool call to the registered handler by name.
// Returns ErrNotFound if the tool is not registered. Handler errors are
// wrapped with the tool name and handler panics are returned as ErrPanic.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (result Result, err error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	defer func() {
		if p := recover(); p != nil {
			result = Result{}
			err = fmt.Errorf("%w: %s: %v", ErrPanic, name, p)
		}
	}()

	result, err = e.handler(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s execution failed: %w", name, err)
	}

	return result, nil
}

// Dispatch runs call and folds every failure into the returned outcome.
// It never returns an error: unknown tools, handler errors, panics and
// unencodable payloads all become OK=false outcomes with an error payload.
func (r *Registry) Dispatch(ctx context.Context, call protocol.ToolCall) protocol.ToolOutcome {
	outcome := protocol.ToolOutcome{CallID: call.ID, Name: call.Name}

	result, err := r.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		outcome.Payload = protocol.ErrorPayload(fmt.Sprintf("Error executing %s: %v", call.Name, err))
		return outcome
	}

	payload, err := value.Marshal(result.Payload)
	if err != nil {
		outcome.Payload = protocol.ErrorPayload(fmt.Sprintf("Error encoding %s result: %v", call.Name, err))
		return outcome
	}

	outcome.OK = !result.IsError
	outcome.Payload = payload
	return outcome
}
