package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricewise-labs/pricewise/internal/approval"
	"github.com/pricewise-labs/pricewise/internal/events"
	"github.com/pricewise-labs/pricewise/internal/llm"
	"github.com/pricewise-labs/pricewise/internal/store"
	"github.com/pricewise-labs/pricewise/internal/store/memory"
	"github.com/pricewise-labs/pricewise/internal/tools"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*llm.Completion
	err       error
	requests  []llm.Request
}

func (p *scriptedProvider) Generate(_ context.Context, req llm.Request) (*llm.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.Completion{Content: "done"}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *scriptedProvider) recorded() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.requests...)
}

type capturingBroker struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (b *capturingBroker) Publish(event events.SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *capturingBroker) ofType(eventType string) []events.SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []events.SessionEvent
	for _, event := range b.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type recordingTool struct {
	mu          sync.Mutex
	name        string
	safe        bool
	result      string
	invocations []tools.Invocation
}

func (t *recordingTool) Name() string        { return t.name }
func (t *recordingTool) Description() string { return "test tool" }
func (t *recordingTool) Safe() bool          { return t.safe }

func (t *recordingTool) Schema() *tools.Schema {
	return &tools.Schema{
		Type: "object",
		Properties: map[string]tools.Property{
			"query": {Type: "string", Description: "query"},
		},
	}
}

func (t *recordingTool) Execute(_ context.Context, inv tools.Invocation) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invocations = append(t.invocations, inv)
	return t.result, nil
}

func (t *recordingTool) calls() []tools.Invocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]tools.Invocation(nil), t.invocations...)
}

type fixture struct {
	runtime  *Runtime
	provider *scriptedProvider
	broker   *capturingBroker
	gate     *approval.Gate
	store    store.Store
	registry *tools.Registry
}

func newFixture(t *testing.T, provider *scriptedProvider, toolsToRegister ...tools.Tool) *fixture {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.CreateSession(context.Background(), store.Session{ID: "s1"}))

	registry := tools.NewRegistry()
	for _, tool := range toolsToRegister {
		require.NoError(t, registry.Register(tool))
	}

	gate := approval.NewGate()
	broker := &capturingBroker{}
	return &fixture{
		runtime:  NewRuntime(provider, registry, gate, st, broker, 5),
		provider: provider,
		broker:   broker,
		gate:     gate,
		store:    st,
		registry: registry,
	}
}

// resolveWhenPending resolves every gated call with the given decision as
// soon as it shows up, standing in for the external approver.
func resolveWhenPending(gate *approval.Gate, approved bool) {
	go func() {
		for i := 0; i < 1000; i++ {
			if gate.ResolveAll("s1", approved) > 0 {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

func TestRunTurnPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Completion{{Content: "Here is my pick."}}}
	f := newFixture(t, provider)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "find me a laptop"))

	messages, err := f.store.ListMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "assistant", messages[1].Role)
	require.Equal(t, "Here is my pick.", messages[1].Content)

	completed := f.broker.ofType("turn.completed")
	require.Len(t, completed, 1)
	require.Equal(t, "Here is my pick.", completed[0].Payload["content"])
	require.Len(t, f.broker.ofType("message.added"), 2)
}

func TestRunTurnSafeToolCall(t *testing.T) {
	tool := &recordingTool{name: "calculate_budget", safe: true, result: "Within budget"}
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "calculate_budget", Arguments: `{"query":"laptops"}`}}},
		{Content: "All set."},
	}}
	f := newFixture(t, provider, tool)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "budget check"))

	calls := tool.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "s1", calls[0].SessionID)
	require.Equal(t, "laptops", calls[0].Args["query"])

	require.Len(t, f.broker.ofType("tool.started"), 1)
	completed := f.broker.ofType("tool.completed")
	require.Len(t, completed, 1)
	require.Equal(t, "Within budget", completed[0].Payload["result"])
	require.Empty(t, f.broker.ofType("approval.required"))

	// Tool result is fed back as a tool-role message on the next round.
	requests := provider.recorded()
	require.Len(t, requests, 2)
	last := requests[1].Messages[len(requests[1].Messages)-1]
	require.Equal(t, "tool", last.Role)
	require.Equal(t, "Within budget", last.Content)
}

func TestRunTurnApprovalApproved(t *testing.T) {
	tool := &recordingTool{name: "search_product", safe: false, result: "1. Laptop X"}
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_product", Arguments: `{"query":"laptop"}`}}},
		{Content: "Found it."},
	}}
	f := newFixture(t, provider, tool)
	resolveWhenPending(f.gate, true)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "find a laptop"))

	require.Len(t, tool.calls(), 1)

	required := f.broker.ofType("approval.required")
	require.Len(t, required, 1)
	pending, ok := required[0].Payload["tool_calls"].([]approval.PendingCall)
	require.True(t, ok)
	require.Len(t, pending, 1)
	require.Equal(t, "search_product", pending[0].ToolName)

	resolved := f.broker.ofType("approval.resolved")
	require.Len(t, resolved, 1)
	require.Equal(t, true, resolved[0].Payload["approved"])
}

func TestRunTurnApprovalDenied(t *testing.T) {
	tool := &recordingTool{name: "search_product", safe: false, result: "should not run"}
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_product", Arguments: `{"query":"laptop"}`}}},
		{Content: "Understood."},
	}}
	f := newFixture(t, provider, tool)
	resolveWhenPending(f.gate, false)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "find a laptop"))

	require.Empty(t, tool.calls())
	require.Empty(t, f.broker.ofType("tool.started"))

	requests := provider.recorded()
	require.Len(t, requests, 2)
	last := requests[1].Messages[len(requests[1].Messages)-1]
	require.Equal(t, "tool", last.Role)
	require.Equal(t, "Tool call 'search_product' was not approved by the user.", last.Content)
}

func TestRunTurnAwaitCancelled(t *testing.T) {
	tool := &recordingTool{name: "search_product", safe: false}
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_product", Arguments: `{}`}}},
	}}
	f := newFixture(t, provider, tool)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.runtime.RunTurn(ctx, "s1", "find a laptop")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, f.broker.ofType("turn.failed"), 1)
}

func TestRunTurnAbortedBatchLeavesNothingPending(t *testing.T) {
	search := &recordingTool{name: "search_product", safe: false}
	scrape := &recordingTool{name: "scrape_url", safe: false}
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "search_product", Arguments: `{"query":"laptop"}`},
			{ID: "c2", Name: "scrape_url", Arguments: `{"url":"https://x.example"}`},
		}},
	}}
	f := newFixture(t, provider, search, scrape)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.runtime.RunTurn(ctx, "s1", "find a laptop")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The unawaited rest of the batch is dropped with the turn, so a later
	// blanket approval finds nothing to resolve.
	require.Empty(t, f.gate.Pending("s1"))
	require.Zero(t, f.gate.ResolveAll("s1", true))
	require.Empty(t, search.calls())
	require.Empty(t, scrape.calls())
}

func TestRunTurnUnknownTool(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "nope", Arguments: `{}`}}},
		{Content: "Sorry."},
	}}
	f := newFixture(t, provider)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "hi"))

	requests := provider.recorded()
	require.Len(t, requests, 2)
	last := requests[1].Messages[len(requests[1].Messages)-1]
	require.Equal(t, "tool", last.Role)
	require.Contains(t, last.Content, "not found")
}

func TestRunTurnReceiptInCompletedEvent(t *testing.T) {
	answer := "Go with the ThinkPad.\n" +
		`{"product_name":"ThinkPad X1","price":1199.99,"currency":"USD","average_rating":4.6,` +
		`"price_range":"$1100-$1400","recommendation_reason":"best build quality"}`
	provider := &scriptedProvider{responses: []*llm.Completion{{Content: answer}}}
	f := newFixture(t, provider)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "which laptop"))

	completed := f.broker.ofType("turn.completed")
	require.Len(t, completed, 1)
	receipt, ok := completed[0].Payload["receipt"].(*Receipt)
	require.True(t, ok)
	require.Equal(t, "ThinkPad X1", receipt.ProductName)
	require.InDelta(t, 1199.99, receipt.Price, 0.001)
}

func TestRunTurnSummarizesLongHistory(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Completion{
		{Content: "User is shopping for a laptop under $1200."},
		{Content: "Final answer."},
	}}
	f := newFixture(t, provider)

	ctx := context.Background()
	for i, text := range []string{"hi", "hello", "show laptops", "here are laptops", "cheaper ones", "sure"} {
		require.NoError(t, f.store.AddMessage(ctx, store.Message{
			ID: string(rune('a' + i)), SessionID: "s1", Role: "user", Content: text, Sequence: int64(i),
		}))
	}

	require.NoError(t, f.runtime.RunTurn(ctx, "s1", "pick one"))

	requests := provider.recorded()
	require.Len(t, requests, 2)

	// First call is the summarizer.
	require.Contains(t, requests[0].Messages[0].Content, "Summarize this shopping conversation")

	// Main call carries the synthetic summary plus the last two messages verbatim.
	main := requests[1].Messages
	require.Contains(t, main[1].Content, "Summary of the conversation so far:")
	require.Contains(t, main[1].Content, "laptop under $1200")
	tail := main[len(main)-2:]
	require.Equal(t, "sure", tail[0].Content)
	require.Equal(t, "pick one", tail[1].Content)
}

func TestRunTurnShortHistoryNotSummarized(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Completion{{Content: "ok"}}}
	f := newFixture(t, provider)

	require.NoError(t, f.runtime.RunTurn(context.Background(), "s1", "hi"))

	requests := provider.recorded()
	require.Len(t, requests, 1)
	for _, msg := range requests[0].Messages {
		require.False(t, strings.HasPrefix(msg.Content, "Summary of the conversation"))
	}
}

func TestRunTurnProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: context.DeadlineExceeded}
	f := newFixture(t, provider)

	err := f.runtime.RunTurn(context.Background(), "s1", "hi")
	require.Error(t, err)

	failed := f.broker.ofType("turn.failed")
	require.Len(t, failed, 1)
	require.NotEmpty(t, failed[0].Payload["error"])
}
