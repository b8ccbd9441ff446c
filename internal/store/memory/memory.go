package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pricewise-labs/pricewise/internal/store"
)

type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]store.Session
	messages  map[string][]store.Message
	wishlists map[string][]store.WishlistItem
	events    map[string][]store.SessionEvent
	seq       map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		sessions:  map[string]store.Session{},
		messages:  map[string][]store.Message{},
		wishlists: map[string][]store.WishlistItem{},
		events:    map[string][]store.SessionEvent{},
		seq:       map[string]int64{},
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.CreatedAt == "" {
		session.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if session.UpdatedAt == "" {
		session.UpdatedAt = session.CreatedAt
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cloned := session
	return &cloned, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		results = append(results, session)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt < results[j].CreatedAt
	})
	return results, nil
}

// DeleteSession is the session teardown: it clears the wishlist along with
// everything else keyed by the session.
func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return store.ErrNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	delete(m.wishlists, sessionID)
	delete(m.events, sessionID)
	delete(m.seq, sessionID)
	return nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID string) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages := m.messages[sessionID]
	results := make([]store.Message, len(messages))
	copy(results, messages)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Sequence < results[j].Sequence
	})
	return results, nil
}

func (m *MemoryStore) AddWishlistItem(ctx context.Context, item store.WishlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.CreatedAt == "" {
		item.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if item.Price != nil {
		price := *item.Price
		item.Price = &price
	}
	m.wishlists[item.SessionID] = append(m.wishlists[item.SessionID], item)
	return nil
}

// ListWishlist returns items in insertion order; that order is the display
// order.
func (m *MemoryStore) ListWishlist(ctx context.Context, sessionID string) ([]store.WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.wishlists[sessionID]
	results := make([]store.WishlistItem, len(items))
	for i, item := range items {
		cloned := item
		if item.Price != nil {
			price := *item.Price
			cloned.Price = &price
		}
		results[i] = cloned
	}
	return results, nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.SessionID] = append(m.events[event.SessionID], event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]store.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []store.SessionEvent
	for _, event := range m.events[sessionID] {
		if event.Seq > afterSeq {
			results = append(results, event)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Seq < results[j].Seq
	})
	return results, nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[sessionID]++
	return m.seq[sessionID], nil
}
