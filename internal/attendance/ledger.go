package attendance

import (
	"context"
	"time"
)

// Event is one accepted presence confirmation.
type Event struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"user_id"`
	MarkedAt   time.Time `json:"marked_at"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SSID       string    `json:"ssid"`
	MAC        string    `json:"mac"`
}

// Ledger is the append-only store of accepted events.
type Ledger interface {
	Append(ctx context.Context, evt *Event) error
	// Recent returns the newest event for identity+mac at or after since, or nil.
	Recent(ctx context.Context, identityID, mac string, since time.Time) (*Event, error)
	ListByIdentity(ctx context.Context, identityID string) ([]Event, error)
}
