// Package approval implements the human-in-the-loop gate for unsafe tools.
// Each gated call is a two-state machine: Pending until an external approver
// resolves it with a boolean, exactly once. Calls are scoped to the session
// that requested them; one session's decision never touches another's calls.
// Suspension is indefinite; only context cancellation aborts a wait.
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PendingCall is the record surfaced to the external approver while a call
// is suspended.
type PendingCall struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
}

type call struct {
	record   PendingCall
	decision chan bool
	resolved bool
}

type Gate struct {
	mu    sync.Mutex
	calls map[string]*call
	order []string
}

func NewGate() *Gate {
	return &Gate{calls: map[string]*call{}}
}

// Request registers a suspended call for the session and returns its pending
// record. The caller then blocks in Await until an approver resolves the id.
func (g *Gate) Request(sessionID string, toolName string, args map[string]any) PendingCall {
	record := PendingCall{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		ToolName:  toolName,
		Args:      args,
	}

	g.mu.Lock()
	g.calls[record.ID] = &call{record: record, decision: make(chan bool, 1)}
	g.order = append(g.order, record.ID)
	g.mu.Unlock()

	return record
}

// Await blocks until the call is resolved or ctx is cancelled. The decision
// channel is buffered, so a call resolved before Await is still consumable.
// A cancelled wait discards the call.
func (g *Gate) Await(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	c, ok := g.calls[id]
	g.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("no such approval call %s", id)
	}

	select {
	case approved := <-c.decision:
		g.discard(id)
		return approved, nil
	case <-ctx.Done():
		g.discard(id)
		return false, ctx.Err()
	}
}

// Resolve consumes a pending call exactly once. Resolving an unknown or
// already-resolved id is an error.
func (g *Gate) Resolve(id string, approved bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.calls[id]
	if !ok || c.resolved {
		return fmt.Errorf("no pending approval %s", id)
	}
	c.resolved = true
	c.decision <- approved
	return nil
}

// ResolveAll applies one decision to every pending call of the session, for
// the single-boolean resume shape. It returns the number of calls resolved.
func (g *Gate) ResolveAll(sessionID string, approved bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	resolved := 0
	for _, id := range g.order {
		c, ok := g.calls[id]
		if !ok || c.resolved || c.record.SessionID != sessionID {
			continue
		}
		c.resolved = true
		c.decision <- approved
		resolved++
	}
	return resolved
}

// ResolveBatch applies per-call decisions within one session, for the
// id-to-boolean resume shape. Every id must be a pending call of that
// session; on any unknown or foreign id nothing is resolved.
func (g *Gate) ResolveBatch(sessionID string, decisions map[string]bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range decisions {
		c, ok := g.calls[id]
		if !ok || c.resolved || c.record.SessionID != sessionID {
			return fmt.Errorf("no pending approval %s", id)
		}
	}
	for id, approved := range decisions {
		c := g.calls[id]
		c.resolved = true
		c.decision <- approved
	}
	return nil
}

// Pending snapshots the session's unresolved calls in request order.
func (g *Gate) Pending(sessionID string) []PendingCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	records := make([]PendingCall, 0, len(g.order))
	for _, id := range g.order {
		if c, ok := g.calls[id]; ok && !c.resolved && c.record.SessionID == sessionID {
			records = append(records, c.record)
		}
	}
	return records
}

// Drop removes calls nothing will await anymore, resolved or not. Used when
// a turn aborts with some of its batch still suspended.
func (g *Gate) Drop(ids ...string) {
	for _, id := range ids {
		g.discard(id)
	}
}

func (g *Gate) discard(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.calls, id)
	for i, candidate := range g.order {
		if candidate == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

// RejectionMessage is the outcome returned in place of a denied tool's
// output. The reasoning loop sees it as the tool's answer.
func RejectionMessage(toolName string) string {
	return fmt.Sprintf("Tool call '%s' was not approved by the user.", toolName)
}
