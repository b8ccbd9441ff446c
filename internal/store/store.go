package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session or item does not exist.
var ErrNotFound = errors.New("not found")

type Session struct {
	ID        string
	CreatedAt string
	UpdatedAt string
}

type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Sequence  int64
	CreatedAt string
	Metadata  map[string]any
}

// WishlistItem is owned by exactly one session. Items live for the
// session's lifetime; deleting the session clears them.
type WishlistItem struct {
	ID          string
	SessionID   string
	ProductName string
	Price       *float64
	URL         string
	Notes       string
	CreatedAt   string
}

type SessionEvent struct {
	SessionID string
	Seq       int64
	Type      string
	Timestamp string
	Payload   map[string]any
}

// Store persists sessions, conversation history, wishlists, and the event
// log backing SSE replay. The memory implementation is unbounded by policy;
// the postgres implementation exists for deployments that outlive a process.
type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	AddMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	AddWishlistItem(ctx context.Context, item WishlistItem) error
	ListWishlist(ctx context.Context, sessionID string) ([]WishlistItem, error)
	AppendEvent(ctx context.Context, event SessionEvent) error
	ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]SessionEvent, error)
	NextSeq(ctx context.Context, sessionID string) (int64, error)
}
