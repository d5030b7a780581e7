package identity

import (
	"context"
	"time"
)

// Identity is an enrolled person. Biometric tokens and the credential hash never leave
// this package's callers except through the redacted Profile.
type Identity struct {
	ID              string
	AuthID          string
	RollNumber      string
	Name            string
	Email           string
	Department      string
	FaceData        string
	FingerprintData string
	PasswordHash    string
	SSID            string
	MACAddress      string
	Latitude        *float64
	Longitude       *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Profile is the client-facing view of an Identity.
type Profile struct {
	ID         string    `json:"id"`
	AuthID     string    `json:"auth_id,omitempty"`
	RollNumber string    `json:"rollNumber"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	SSID       string    `json:"ssid"`
	MACAddress string    `json:"macAddress"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Public strips biometric tokens and the credential hash.
func (i Identity) Public() Profile {
	return Profile{
		ID:         i.ID,
		AuthID:     i.AuthID,
		RollNumber: i.RollNumber,
		Name:       i.Name,
		Email:      i.Email,
		Department: i.Department,
		SSID:       i.SSID,
		MACAddress: i.MACAddress,
		Latitude:   i.Latitude,
		Longitude:  i.Longitude,
		CreatedAt:  i.CreatedAt,
	}
}

// Store persists identities. Lookups return apperr.ErrNotFound when nothing matches.
type Store interface {
	Create(ctx context.Context, ident *Identity) error
	GetByRoll(ctx context.Context, rollNumber string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	UpdateProfile(ctx context.Context, rollNumber, name, email string) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}
