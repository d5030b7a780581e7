package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presencegate/internal/apperr"
)

// Repository persists identities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const identityColumns = `id, COALESCE(auth_id, ''), roll_number, name, email, department,
	COALESCE(face_data, ''), COALESCE(fingerprint_data, ''), password_hash,
	ssid, mac_address, latitude, longitude, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*Identity, error) {
	var (
		ident    Identity
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&ident.ID, &ident.AuthID, &ident.RollNumber, &ident.Name, &ident.Email, &ident.Department,
		&ident.FaceData, &ident.FingerprintData, &ident.PasswordHash,
		&ident.SSID, &ident.MACAddress, &lat, &lng, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if lat.Valid {
		ident.Latitude = &lat.Float64
	}
	if lng.Valid {
		ident.Longitude = &lng.Float64
	}
	return &ident, nil
}

// Create inserts a new identity and fills in the generated timestamps.
func (r *Repository) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO identities (id, auth_id, roll_number, name, email, department,
			face_data, fingerprint_data, password_hash, ssid, mac_address, latitude, longitude)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, ident.ID, ident.AuthID, ident.RollNumber, ident.Name, ident.Email, ident.Department,
		ident.FaceData, ident.FingerprintData, ident.PasswordHash, ident.SSID, ident.MACAddress,
		ident.Latitude, ident.Longitude)
	return uniqueViolation(row.Scan(&ident.CreatedAt, &ident.UpdatedAt))
}

// GetByRoll returns the identity with the given roll number.
func (r *Repository) GetByRoll(ctx context.Context, rollNumber string) (*Identity, error) {
	return scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE roll_number = $1`, rollNumber))
}

// GetByEmail returns the identity with the given email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email))
}

// UpdateProfile changes name and/or email; empty values keep the stored ones.
func (r *Repository) UpdateProfile(ctx context.Context, rollNumber, name, email string) (*Identity, error) {
	ident, err := scanIdentity(r.db.QueryRowContext(ctx, `
		UPDATE identities
		SET name = COALESCE(NULLIF($2, ''), name),
			email = COALESCE(NULLIF($3, ''), email),
			updated_at = NOW()
		WHERE roll_number = $1
		RETURNING `+identityColumns, rollNumber, name, email))
	return ident, uniqueViolation(err)
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes an identity; devices and attendance rows cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// uniqueViolation maps a roll_number/email/auth_id collision to apperr.ErrConflict.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.ErrConflict
	}
	return err
}
