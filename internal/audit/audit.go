package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"presencegate/internal/queue"
)

// Entry is one recorded domain event.
type Entry struct {
	ID         string
	Type       string
	Key        string
	Payload    json.RawMessage
	OccurredAt time.Time
	RecordedAt time.Time
}

// FromMessage converts a queue message into an entry.
func FromMessage(msg queue.Message) Entry {
	payload := msg.Body
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	occurred := msg.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Entry{
		ID:         uuid.NewString(),
		Type:       msg.Type,
		Key:        msg.Key,
		Payload:    payload,
		OccurredAt: occurred,
	}
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
}

// Repository writes entries to the audit_events table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, key, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Type, e.Key, string(e.Payload), e.OccurredAt)
	return err
}

// MemoryStore keeps entries in a slice.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.RecordedAt = time.Now().UTC()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything recorded.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
