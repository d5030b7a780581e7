package attendance

import (
	"context"
	"errors"
	"time"

	"presencegate/internal/apperr"
	"presencegate/internal/identity"
)

// Stats counts events in the current calendar month and the current Sunday-start week.
type Stats struct {
	Monthly int    `json:"monthly"`
	Weekly  int    `json:"weekly"`
	User    string `json:"user"`
}

// History serves read-only views of the ledger.
type History struct {
	identities identity.Store
	ledger     Ledger
}

// NewHistory creates a history reader.
func NewHistory(identities identity.Store, ledger Ledger) *History {
	return &History{identities: identities, ledger: ledger}
}

// ForRoll returns the identity and its events, newest first.
func (h *History) ForRoll(ctx context.Context, rollNumber string) (identity.Profile, []Event, error) {
	ident, err := h.identities.GetByRoll(ctx, rollNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return identity.Profile{}, nil, apperr.NotFound(apperr.ReasonIdentityNotFound, "User not found")
	}
	if err != nil {
		return identity.Profile{}, nil, apperr.Storage(err)
	}
	events, err := h.ledger.ListByIdentity(ctx, ident.ID)
	if err != nil {
		return identity.Profile{}, nil, apperr.Storage(err)
	}
	if events == nil {
		events = []Event{}
	}
	return ident.Public(), events, nil
}

// Stats tallies the identity's events relative to now. Calendar boundaries use now's location.
func (h *History) Stats(ctx context.Context, rollNumber string, now time.Time) (Stats, error) {
	profile, events, err := h.ForRoll(ctx, rollNumber)
	if err != nil {
		return Stats{}, err
	}
	return Tally(events, now, profile.RollNumber), nil
}

// Tally counts events in now's month and in the Sunday..Saturday week containing now.
func Tally(events []Event, now time.Time, roll string) Stats {
	loc := now.Location()
	y, m, d := now.Date()
	weekStart := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	weekEnd := weekStart.AddDate(0, 0, 7)

	st := Stats{User: roll}
	for _, evt := range events {
		at := evt.MarkedAt.In(loc)
		if at.Year() == y && at.Month() == m {
			st.Monthly++
		}
		if !at.Before(weekStart) && at.Before(weekEnd) {
			st.Weekly++
		}
	}
	return st
}
