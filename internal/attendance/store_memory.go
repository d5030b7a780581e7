package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps events in a slice.
type MemoryLedger struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, evt *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.MarkedAt.IsZero() {
		evt.MarkedAt = time.Now().UTC()
	}
	l.events = append(l.events, *evt)
	return nil
}

func (l *MemoryLedger) Recent(_ context.Context, identityID, mac string, since time.Time) (*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var newest *Event
	for i := range l.events {
		evt := l.events[i]
		if evt.IdentityID != identityID || evt.MAC != mac || evt.MarkedAt.Before(since) {
			continue
		}
		if newest == nil || evt.MarkedAt.After(newest.MarkedAt) {
			newest = &evt
		}
	}
	return newest, nil
}

func (l *MemoryLedger) ListByIdentity(_ context.Context, identityID string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, evt := range l.events {
		if evt.IdentityID == identityID {
			out = append(out, evt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarkedAt.After(out[j].MarkedAt) })
	return out, nil
}

// Len reports how many events were appended.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// DeleteIdentity drops the identity's events.
func (l *MemoryLedger) DeleteIdentity(identityID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.events[:0]
	for _, evt := range l.events {
		if evt.IdentityID != identityID {
			kept = append(kept, evt)
		}
	}
	l.events = kept
}
