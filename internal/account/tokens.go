package account

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"presencegate/internal/apperr"
)

// RefreshToken is the persisted half of an issued session. Only the jti is stored.
type RefreshToken struct {
	ID         string
	IdentityID string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// TokenStore persists refresh tokens so they can be revoked and pruned.
type TokenStore interface {
	Save(ctx context.Context, t RefreshToken) error
	// Revoke marks one active token revoked at at and returns it. A token that is missing,
	// already revoked or expired at at yields apperr.ErrNotFound.
	Revoke(ctx context.Context, id string, at time.Time) (RefreshToken, error)
	RevokeAll(ctx context.Context, identityID string, at time.Time) error
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// TokenRepository stores refresh tokens in Postgres.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Save(ctx context.Context, t RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, identity_id, expires_at)
		VALUES ($1, $2, $3)
	`, t.ID, t.IdentityID, t.ExpiresAt)
	return err
}

func (r *TokenRepository) Revoke(ctx context.Context, id string, at time.Time) (RefreshToken, error) {
	t := RefreshToken{ID: id, RevokedAt: &at}
	err := r.db.QueryRowContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING identity_id, expires_at
	`, id, at).Scan(&t.IdentityID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshToken{}, apperr.ErrNotFound
	}
	if err != nil {
		return RefreshToken{}, err
	}
	return t, nil
}

func (r *TokenRepository) RevokeAll(ctx context.Context, identityID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE identity_id = $1 AND revoked_at IS NULL
	`, identityID, at)
	return err
}

// Prune deletes expired and revoked tokens and returns how many were removed.
func (r *TokenRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at <= $1 OR revoked_at IS NOT NULL
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MemoryTokens is the in-memory TokenStore.
type MemoryTokens struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]RefreshToken)}
}

func (m *MemoryTokens) Save(_ context.Context, t RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *MemoryTokens) Revoke(_ context.Context, id string, at time.Time) (RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(at) {
		return RefreshToken{}, apperr.ErrNotFound
	}
	revoked := at
	t.RevokedAt = &revoked
	m.tokens[id] = t
	return t, nil
}

func (m *MemoryTokens) RevokeAll(_ context.Context, identityID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.IdentityID == identityID && t.RevokedAt == nil {
			revoked := at
			t.RevokedAt = &revoked
			m.tokens[id] = t
		}
	}
	return nil
}

func (m *MemoryTokens) Prune(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if !t.ExpiresAt.After(now) || t.RevokedAt != nil {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

// DeleteIdentity drops every token of the identity.
func (m *MemoryTokens) DeleteIdentity(identityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.IdentityID == identityID {
			delete(m.tokens, id)
		}
	}
}

// Active returns the number of tokens that are neither revoked nor expired at now.
func (m *MemoryTokens) Active(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.RevokedAt == nil && t.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}
