package registration

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"presencegate/internal/apperr"
	"presencegate/internal/identity"
)

// Provisioner creates the external auth identity that backs a local identity, and removes
// it again when the local insert fails.
type Provisioner interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	Delete(ctx context.Context, authID string) error
}

// Service enrolls new identities.
type Service struct {
	validator  *Validator
	identities identity.Store
	auth       Provisioner
	cost       int
}

// NewService wires the registration flow. Passwords are hashed with bcrypt cost 10.
func NewService(v *Validator, identities identity.Store, auth Provisioner) *Service {
	return &Service{validator: v, identities: identities, auth: auth, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register validates f, hashes the password, provisions the auth identity and persists the
// identity. The returned profile never carries biometric tokens or the hash.
func (s *Service) Register(ctx context.Context, f Fields) (identity.Profile, error) {
	n, err := s.validator.ValidateAndPrepare(f)
	if err != nil {
		return identity.Profile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return identity.Profile{}, apperr.Validation(apperr.ReasonBadRequest, "password is too long")
	}
	if err != nil {
		return identity.Profile{}, apperr.Internal(err)
	}

	authID, err := s.auth.SignUp(ctx, n.Email, n.Password)
	if err != nil {
		return identity.Profile{}, apperr.Storage(err)
	}

	ident := &identity.Identity{
		AuthID:          authID,
		RollNumber:      n.RollNumber,
		Name:            n.Name,
		Email:           n.Email,
		Department:      n.Department,
		FaceData:        n.FaceData,
		FingerprintData: n.FingerprintData,
		PasswordHash:    string(hash),
		SSID:            n.SSID,
		MACAddress:      n.MACAddress,
		Latitude:        n.Latitude,
		Longitude:       n.Longitude,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		// Best effort; a failed rollback leaves an auth user with no identity row.
		_ = s.auth.Delete(context.WithoutCancel(ctx), authID)
		if errors.Is(err, apperr.ErrConflict) {
			return identity.Profile{}, apperr.Storage(errors.New("roll number or email already registered"))
		}
		return identity.Profile{}, apperr.Storage(err)
	}
	return ident.Public(), nil
}
