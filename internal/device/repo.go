package device

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Repository persists device bindings in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Bind inserts a binding. A repeated (identity, mac) pair fails on the unique index.
func (r *Repository) Bind(ctx context.Context, b *Binding) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (id, identity_id, mac, device_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, b.ID, b.IdentityID, b.MAC, b.DeviceID)
	return row.Scan(&b.CreatedAt)
}

// Exists reports whether the identity has a device with this MAC.
func (r *Repository) Exists(ctx context.Context, identityID, mac string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE identity_id = $1 AND mac = $2)`,
		identityID, mac).Scan(&ok)
	return ok, err
}

// ListByIdentity returns the identity's devices, oldest first.
func (r *Repository) ListByIdentity(ctx context.Context, identityID string) ([]Binding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity_id, mac, device_id, created_at
		FROM devices WHERE identity_id = $1
		ORDER BY created_at
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.ID, &b.IdentityID, &b.MAC, &b.DeviceID, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
