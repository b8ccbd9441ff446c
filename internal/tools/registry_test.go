package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingTool struct {
	name     string
	schema   *Schema
	executed bool
}

func (t *recordingTool) Name() string        { return t.name }
func (t *recordingTool) Description() string { return "test tool" }
func (t *recordingTool) Schema() *Schema     { return t.schema }
func (t *recordingTool) Safe() bool          { return true }

func (t *recordingTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	t.executed = true
	return "ran", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	tool := &recordingTool{name: "demo"}
	require.NoError(t, r.Register(tool))

	got, err := r.Get("demo")
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name())

	_, err = r.Get("missing")
	require.Error(t, err)
}

func TestRegistry_RejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&recordingTool{name: "demo"}))
	require.Error(t, r.Register(&recordingTool{name: "demo"}))
	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(&recordingTool{}))
}

func TestRegistry_ListSortedByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&recordingTool{name: "zeta"}))
	require.NoError(t, r.Register(&recordingTool{name: "alpha"}))

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "alpha", list[0].Name())
	require.Equal(t, "zeta", list[1].Name())
}

func TestRegistry_ValidationBlocksExecution(t *testing.T) {
	r := NewRegistry()
	tool := &recordingTool{
		name: "demo",
		schema: &Schema{
			Type:       "object",
			Properties: map[string]Property{"query": {Type: "string"}},
			Required:   []string{"query"},
		},
	}
	require.NoError(t, r.Register(tool))

	_, err := r.Execute(context.Background(), "demo", Invocation{Args: map[string]any{}})
	require.ErrorContains(t, err, "missing required field: query")
	require.False(t, tool.executed, "body must not run on malformed input")

	_, err = r.Execute(context.Background(), "demo", Invocation{Args: map[string]any{"query": 12.0}})
	require.ErrorContains(t, err, "field query")
	require.False(t, tool.executed)

	out, err := r.Execute(context.Background(), "demo", Invocation{Args: map[string]any{"query": "ok"}})
	require.NoError(t, err)
	require.Equal(t, "ran", out)
	require.True(t, tool.executed)
}

func TestValidateArgs_Types(t *testing.T) {
	schema := &Schema{
		Type: "object",
		Properties: map[string]Property{
			"name":    {Type: "string"},
			"price":   {Type: "number"},
			"count":   {Type: "integer"},
			"flags":   {Type: "array"},
			"nested":  {Type: "object"},
			"enabled": {Type: "boolean"},
		},
	}

	require.NoError(t, ValidateArgs(map[string]any{
		"name":    "x",
		"price":   1.5,
		"count":   3.0,
		"flags":   []any{"a"},
		"nested":  map[string]any{},
		"enabled": true,
	}, schema))

	require.Error(t, ValidateArgs(map[string]any{"price": "not a number"}, schema))
	require.Error(t, ValidateArgs(map[string]any{"count": 3.5}, schema))
	require.Error(t, ValidateArgs(map[string]any{"flags": "not a list"}, schema))

	// Unknown fields pass through; the schema only constrains what it names.
	require.NoError(t, ValidateArgs(map[string]any{"other": struct{}{}}, schema))
	require.NoError(t, ValidateArgs(nil, schema))
	require.NoError(t, ValidateArgs(map[string]any{"name": "x"}, nil))
}
