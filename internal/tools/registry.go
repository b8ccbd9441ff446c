package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps tool names to implementations and validates arguments
// before execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// List returns all registered tools in name order, for stable schema export.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Execute validates arguments against the tool's schema, then runs the body.
// A validation failure is a rejected call: the body never runs.
func (r *Registry) Execute(ctx context.Context, name string, inv Invocation) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	if err := ValidateArgs(inv.Args, tool.Schema()); err != nil {
		return "", fmt.Errorf("tool %s validation failed: %w", name, err)
	}
	return tool.Execute(ctx, inv)
}
