package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"presencegate/internal/apperr"
)

// MemoryRegistry is an in-process Registry keyed by (identity, mac).
type MemoryRegistry struct {
	mu       sync.RWMutex
	bindings map[string]map[string]Binding
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{bindings: make(map[string]map[string]Binding)}
}

func (r *MemoryRegistry) Bind(_ context.Context, b *Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMAC, ok := r.bindings[b.IdentityID]
	if !ok {
		byMAC = make(map[string]Binding)
		r.bindings[b.IdentityID] = byMAC
	}
	if _, dup := byMAC[b.MAC]; dup {
		return apperr.ErrConflict
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now().UTC()
	byMAC[b.MAC] = *b
	return nil
}

func (r *MemoryRegistry) Exists(_ context.Context, identityID, mac string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[identityID][mac]
	return ok, nil
}

func (r *MemoryRegistry) ListByIdentity(_ context.Context, identityID string) ([]Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.bindings[identityID]))
	for _, b := range r.bindings[identityID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteIdentity drops every binding of the identity.
func (r *MemoryRegistry) DeleteIdentity(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, identityID)
}
