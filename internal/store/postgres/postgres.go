package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pricewise-labs/pricewise/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"sessions",
		"messages",
		"wishlist_items",
		"session_events",
		"session_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateSession(ctx context.Context, session store.Session) error {
	createdAt := session.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	updatedAt := session.UpdatedAt
	if updatedAt == "" {
		updatedAt = createdAt
	}
	const query = `
		INSERT INTO sessions (id, created_at, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
	_, err := p.db.ExecContext(ctx, query, session.ID, createdAt, updatedAt)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	const query = `SELECT id, created_at, updated_at FROM sessions WHERE id = $1`
	var session store.Session
	err := p.db.QueryRowContext(ctx, query, sessionID).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (p *PostgresStore) ListSessions(ctx context.Context) ([]store.Session, error) {
	const query = `SELECT id, created_at, updated_at FROM sessions ORDER BY created_at`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []store.Session
	for rows.Next() {
		var session store.Session
		if err := rows.Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, session)
	}
	return results, rows.Err()
}

func (p *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, query := range []string{
		`DELETE FROM wishlist_items WHERE session_id = $1`,
		`DELETE FROM messages WHERE session_id = $1`,
		`DELETE FROM session_events WHERE session_id = $1`,
		`DELETE FROM session_event_sequences WHERE session_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, sessionID); err != nil {
			return err
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (p *PostgresStore) AddMessage(ctx context.Context, msg store.Message) error {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO messages (id, session_id, role, content, sequence, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = p.db.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Sequence, msg.CreatedAt, metadata)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]store.Message, error) {
	const query = `
		SELECT id, session_id, role, content, sequence, created_at, metadata
		FROM messages WHERE session_id = $1 ORDER BY sequence`
	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []store.Message
	for rows.Next() {
		var msg store.Message
		var metadata []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Sequence, &msg.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &msg.Metadata)
		}
		results = append(results, msg)
	}
	return results, rows.Err()
}

func (p *PostgresStore) AddWishlistItem(ctx context.Context, item store.WishlistItem) error {
	createdAt := item.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	var price sql.NullFloat64
	if item.Price != nil {
		price = sql.NullFloat64{Float64: *item.Price, Valid: true}
	}
	const query = `
		INSERT INTO wishlist_items (id, session_id, product_name, price, url, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, query, item.ID, item.SessionID, item.ProductName, price, item.URL, item.Notes, createdAt)
	return err
}

func (p *PostgresStore) ListWishlist(ctx context.Context, sessionID string) ([]store.WishlistItem, error) {
	const query = `
		SELECT id, session_id, product_name, price, url, notes, created_at
		FROM wishlist_items WHERE session_id = $1 ORDER BY created_at, id`
	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []store.WishlistItem
	for rows.Next() {
		var item store.WishlistItem
		var price sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.SessionID, &item.ProductName, &price, &item.URL, &item.Notes, &item.CreatedAt); err != nil {
			return nil, err
		}
		if price.Valid {
			value := price.Float64
			item.Price = &value
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.SessionEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO session_events (session_id, seq, type, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = p.db.ExecContext(ctx, query, event.SessionID, event.Seq, event.Type, event.Timestamp, payload)
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]store.SessionEvent, error) {
	const query = `
		SELECT session_id, seq, type, timestamp, payload
		FROM session_events WHERE session_id = $1 AND seq > $2 ORDER BY seq`
	rows, err := p.db.QueryContext(ctx, query, sessionID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []store.SessionEvent
	for rows.Next() {
		var event store.SessionEvent
		var payload []byte
		if err := rows.Scan(&event.SessionID, &event.Seq, &event.Type, &event.Timestamp, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &event.Payload)
		}
		results = append(results, event)
	}
	return results, rows.Err()
}

func (p *PostgresStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	const query = `
		INSERT INTO session_event_sequences (session_id, seq)
		VALUES ($1, 1)
		ON CONFLICT (session_id) DO UPDATE SET seq = session_event_sequences.seq + 1
		RETURNING seq`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, sessionID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
