package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction marks who sent a transcript line.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// TranscriptEntry is one message exchanged on a thread.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	ThreadKey string    `json:"thread_key"`
	Direction Direction `json:"direction"`
	Body      string    `json:"body"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptRecorder is the write side used by the dispatcher.
type TranscriptRecorder interface {
	Record(ctx context.Context, entry TranscriptEntry) error
}

// TranscriptStore persists conversation_messages rows.
type TranscriptStore struct {
	db *sql.DB
}

func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		panic("conversation: sql db cannot be nil")
	}
	return &TranscriptStore{db: db}
}

func (s *TranscriptStore) Record(ctx context.Context, entry TranscriptEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO conversation_messages (
			id, thread_key, direction, body, order_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ThreadKey,
		string(entry.Direction),
		entry.Body,
		nullString(entry.OrderID),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation: failed to record transcript: %w", err)
	}
	return nil
}

// ListByThread returns the most recent entries for a thread, oldest first.
func (s *TranscriptStore) ListByThread(ctx context.Context, threadKey string, limit int) ([]TranscriptEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, thread_key, direction, body, COALESCE(order_id::text, ''), created_at
		FROM (
			SELECT * FROM conversation_messages
			WHERE thread_key = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, threadKey, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list transcript: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var (
			e         TranscriptEntry
			direction string
		)
		if err := rows.Scan(&e.ID, &e.ThreadKey, &direction, &e.Body, &e.OrderID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan transcript: %w", err)
		}
		e.Direction = Direction(direction)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: failed to iterate transcript: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
