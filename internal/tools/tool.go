// Package tools holds the agent's callable capability set: declarative
// input schemas consumed by the reasoning loop, a registry that validates
// arguments before any side effect, and the builtin shopping tools.
package tools

import (
	"context"

	"github.com/pricewise-labs/pricewise/internal/tavily"
)

// Invocation carries the per-call execution context. The session ID is
// supplied by the embedding API layer, never by the reasoning loop.
type Invocation struct {
	SessionID string
	Args      map[string]any
}

// Tool is one callable capability. Safe tools perform no externally-visible
// I/O beyond local session state and bypass the approval gate; unsafe tools
// call out to the network and require approval first.
type Tool interface {
	Name() string
	Description() string
	Schema() *Schema
	Safe() bool
	Execute(ctx context.Context, inv Invocation) (string, error)
}

// Searcher is the search-provider boundary tools depend on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]tavily.Result, error)
}

// Extractor is the URL-extraction boundary used by scrape_url.
type Extractor interface {
	Extract(ctx context.Context, urls []string) ([]tavily.ExtractResult, error)
}

func stringArg(args map[string]any, key string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch value := args[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
}

func intArg(args map[string]any, key string, fallback int) int {
	if value, ok := floatArg(args, key); ok && value > 0 {
		return int(value)
	}
	return fallback
}
