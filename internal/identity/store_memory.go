package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"presencegate/internal/apperr"
)

// MemoryStore keeps identities in a map; used with STORE_BACKEND=memory and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Identity
	byRoll map[string]string
	onDel  []func(id string)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Identity),
		byRoll: make(map[string]string),
	}
}

// OnDelete registers a hook run after an identity is removed, standing in for FK cascades.
func (s *MemoryStore) OnDelete(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDel = append(s.onDel, fn)
}

func (s *MemoryStore) Create(_ context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRoll[ident.RollNumber]; ok {
		return apperr.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.Email == ident.Email {
			return apperr.ErrConflict
		}
	}
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ident.CreatedAt, ident.UpdatedAt = now, now
	cp := *ident
	s.byID[cp.ID] = &cp
	s.byRoll[cp.RollNumber] = cp.ID
	return nil
}

func (s *MemoryStore) GetByRoll(_ context.Context, rollNumber string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRoll[rollNumber]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ident := range s.byID {
		if ident.Email == email {
			cp := *ident
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *MemoryStore) UpdateProfile(_ context.Context, rollNumber, name, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRoll[rollNumber]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if email != "" {
		for otherID, other := range s.byID {
			if otherID != id && other.Email == email {
				return nil, apperr.ErrConflict
			}
		}
	}
	ident := s.byID[id]
	if name != "" {
		ident.Name = name
	}
	if email != "" {
		ident.Email = email
	}
	ident.UpdatedAt = time.Now().UTC()
	cp := *ident
	return &cp, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	ident.PasswordHash = hash
	ident.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	ident, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	delete(s.byRoll, ident.RollNumber)
	delete(s.byID, id)
	hooks := append([]func(string){}, s.onDel...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return nil
}
