// Package agent drives one chat turn at a time: it calls the model,
// dispatches requested tool calls through the approval gate, and feeds
// results back until the model produces a final answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pricewise-labs/pricewise/internal/approval"
	"github.com/pricewise-labs/pricewise/internal/events"
	"github.com/pricewise-labs/pricewise/internal/llm"
	"github.com/pricewise-labs/pricewise/internal/store"
	"github.com/pricewise-labs/pricewise/internal/tools"
)

const systemPrompt = "You are Pricewise, a shopping assistant. Use the available tools to " +
	"search products, compare prices, check reviews and availability, find coupons, and " +
	"manage the user's wishlist. When you have a final recommendation, answer in plain " +
	"text followed by a JSON object with the fields product_name, price, currency, " +
	"average_rating, price_range, recommendation_reason and, for multi-product " +
	"comparisons, comparison_products and comparison_summary."

type Broker interface {
	Publish(event events.SessionEvent)
}

type Runtime struct {
	provider       llm.Provider
	registry       *tools.Registry
	gate           *approval.Gate
	store          store.Store
	broker         Broker
	summarizeAfter int
	maxToolRounds  int
}

func NewRuntime(provider llm.Provider, registry *tools.Registry, gate *approval.Gate, st store.Store, broker Broker, summarizeAfter int) *Runtime {
	if summarizeAfter <= 0 {
		summarizeAfter = 5
	}
	return &Runtime{
		provider:       provider,
		registry:       registry,
		gate:           gate,
		store:          st,
		broker:         broker,
		summarizeAfter: summarizeAfter,
		maxToolRounds:  8,
	}
}

// RunTurn processes one user message to completion. Tool failures and
// rejected approvals become tool-result strings the model reasons about;
// only provider failures and cancelled waits fail the turn.
func (r *Runtime) RunTurn(ctx context.Context, sessionID string, content string) error {
	userMsg := store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
		Sequence:  time.Now().UnixNano(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.AddMessage(ctx, userMsg); err != nil {
		return err
	}
	r.publish(ctx, sessionID, "message.added", map[string]any{
		"message_id": userMsg.ID,
		"role":       "user",
		"content":    content,
	})

	history, err := r.store.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	messages := r.buildMessages(ctx, history)

	for round := 0; round < r.maxToolRounds; round++ {
		completion, err := r.provider.Generate(ctx, llm.Request{
			Messages: messages,
			Tools:    r.toolDefs(),
		})
		if err != nil {
			r.publish(ctx, sessionID, "turn.failed", map[string]any{"error": err.Error()})
			return err
		}

		if len(completion.ToolCalls) == 0 {
			return r.finishTurn(ctx, sessionID, completion.Content)
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		results, err := r.dispatch(ctx, sessionID, completion.ToolCalls)
		if err != nil {
			r.publish(ctx, sessionID, "turn.failed", map[string]any{"error": err.Error()})
			return err
		}
		messages = append(messages, results...)
	}

	err = fmt.Errorf("tool loop exceeded %d rounds", r.maxToolRounds)
	r.publish(ctx, sessionID, "turn.failed", map[string]any{"error": err.Error()})
	return err
}

// dispatch executes one reasoning turn's tool calls. Unsafe calls are all
// registered with the gate first, so a single approval_required record
// covers the whole batch, then each is awaited and run in order.
func (r *Runtime) dispatch(ctx context.Context, sessionID string, calls []llm.ToolCall) ([]llm.Message, error) {
	type gatedCall struct {
		args    map[string]any
		argsErr error
		pending *approval.PendingCall
	}

	gated := make([]gatedCall, len(calls))
	for i, tc := range calls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				gated[i].argsErr = fmt.Errorf("invalid tool arguments: %w", err)
				continue
			}
		}
		gated[i].args = args

		tool, err := r.registry.Get(tc.Name)
		if err != nil {
			gated[i].argsErr = err
			continue
		}
		if !tool.Safe() {
			record := r.gate.Request(sessionID, tc.Name, args)
			gated[i].pending = &record
		}
	}

	pending := make([]approval.PendingCall, 0, len(calls))
	for i := range gated {
		if gated[i].pending != nil {
			pending = append(pending, *gated[i].pending)
		}
	}
	if len(pending) > 0 {
		r.publish(ctx, sessionID, "approval.required", map[string]any{"tool_calls": pending})
	}

	results := make([]llm.Message, 0, len(calls))
	for i, tc := range calls {
		var result string
		switch {
		case gated[i].argsErr != nil:
			result = gated[i].argsErr.Error()
		case gated[i].pending != nil:
			approved, err := r.gate.Await(ctx, gated[i].pending.ID)
			if err != nil {
				// The turn is over; nothing will await the rest of the
				// batch, so drop it from the gate.
				for k := i + 1; k < len(calls); k++ {
					if gated[k].pending != nil {
						r.gate.Drop(gated[k].pending.ID)
					}
				}
				return nil, err
			}
			r.publish(ctx, sessionID, "approval.resolved", map[string]any{
				"id":        gated[i].pending.ID,
				"tool_name": tc.Name,
				"approved":  approved,
			})
			if !approved {
				result = approval.RejectionMessage(tc.Name)
			} else {
				result = r.execute(ctx, sessionID, tc.Name, gated[i].args)
			}
		default:
			result = r.execute(ctx, sessionID, tc.Name, gated[i].args)
		}

		results = append(results, llm.Message{
			Role:       "tool",
			Content:    result,
			ToolCallID: tc.ID,
		})
	}
	return results, nil
}

func (r *Runtime) execute(ctx context.Context, sessionID string, name string, args map[string]any) string {
	r.publish(ctx, sessionID, "tool.started", map[string]any{"tool_name": name})
	result, err := r.registry.Execute(ctx, name, tools.Invocation{SessionID: sessionID, Args: args})
	if err != nil {
		result = err.Error()
	}
	r.publish(ctx, sessionID, "tool.completed", map[string]any{
		"tool_name": name,
		"result":    result,
	})
	return result
}

func (r *Runtime) finishTurn(ctx context.Context, sessionID string, content string) error {
	assistantMsg := store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   content,
		Sequence:  time.Now().UnixNano(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.AddMessage(ctx, assistantMsg); err != nil {
		return err
	}

	payload := map[string]any{"content": content}
	if receipt := parseReceipt(content); receipt != nil {
		payload["receipt"] = receipt
	}
	r.publish(ctx, sessionID, "turn.completed", payload)
	return nil
}

// buildMessages converts stored history into model input, compressing old
// messages into a synthetic summary once the history outgrows the
// threshold. The last two messages always pass through verbatim.
func (r *Runtime) buildMessages(ctx context.Context, history []store.Message) []llm.Message {
	converted := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		converted = append(converted, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	if len(converted) > r.summarizeAfter {
		if summary, err := r.summarize(ctx, converted[:len(converted)-2]); err == nil {
			compressed := []llm.Message{{Role: "system", Content: "Summary of the conversation so far: " + summary}}
			converted = append(compressed, converted[len(converted)-2:]...)
		}
	}

	return append([]llm.Message{{Role: "system", Content: systemPrompt}}, converted...)
}

func (r *Runtime) summarize(ctx context.Context, messages []llm.Message) (string, error) {
	var transcript strings.Builder
	for _, msg := range messages {
		transcript.WriteString(msg.Role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}
	completion, err := r.provider.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "Summarize this shopping conversation in a few sentences, keeping product names, prices, and decisions."},
			{Role: "user", Content: transcript.String()},
		},
	})
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

func (r *Runtime) toolDefs() []llm.ToolDef {
	list := r.registry.List()
	defs := make([]llm.ToolDef, 0, len(list))
	for _, tool := range list {
		defs = append(defs, llm.ToolDef{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return defs
}

func (r *Runtime) publish(ctx context.Context, sessionID string, eventType string, payload map[string]any) {
	seq, _ := r.store.NextSeq(ctx, sessionID)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	event := store.SessionEvent{
		SessionID: sessionID,
		Seq:       seq,
		Type:      events.NormalizeType(eventType),
		Timestamp: now,
		Payload:   payload,
	}
	_ = r.store.AppendEvent(ctx, event)
	r.broker.Publish(events.SessionEvent{
		SessionID: event.SessionID,
		Seq:       event.Seq,
		Type:      event.Type,
		Ts:        event.Timestamp,
		Payload:   event.Payload,
	})
}
