package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append writes a new event. There is no uniqueness guard; every call inserts a row.
func (r *Repository) Append(ctx context.Context, evt *Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.MarkedAt.IsZero() {
		evt.MarkedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, identity_id, marked_at, latitude, longitude, ssid, mac)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.IdentityID, evt.MarkedAt, evt.Latitude, evt.Longitude, evt.SSID, evt.MAC)
	return err
}

// Recent returns the newest event for identity+mac marked at or after since.
func (r *Repository) Recent(ctx context.Context, identityID, mac string, since time.Time) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, identity_id, marked_at, latitude, longitude, ssid, mac
		FROM attendance_events
		WHERE identity_id = $1 AND mac = $2 AND marked_at >= $3
		ORDER BY marked_at DESC
		LIMIT 1
	`, identityID, mac, since)
	var evt Event
	if err := row.Scan(&evt.ID, &evt.IdentityID, &evt.MarkedAt, &evt.Latitude, &evt.Longitude, &evt.SSID, &evt.MAC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// ListByIdentity returns the identity's events, newest first.
func (r *Repository) ListByIdentity(ctx context.Context, identityID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity_id, marked_at, latitude, longitude, ssid, mac
		FROM attendance_events
		WHERE identity_id = $1
		ORDER BY marked_at DESC
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.IdentityID, &evt.MarkedAt, &evt.Latitude, &evt.Longitude, &evt.SSID, &evt.MAC); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
