package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"presencegate/internal/apperr"
	"presencegate/internal/auth"
	"presencegate/internal/identity"
	"presencegate/internal/registration"
)

// AuthAdmin manages identities at the external auth provider.
type AuthAdmin interface {
	UpdatePassword(ctx context.Context, authID, password string) error
	Delete(ctx context.Context, authID string) error
}

// TokenConfig controls token issuance.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Session is returned by a successful login.
type Session struct {
	Tokens auth.TokenPair
	User   identity.Profile
}

// Service implements login and the self-service account operations.
type Service struct {
	identities identity.Store
	tokens     TokenStore
	authAdmin  AuthAdmin
	cfg        TokenConfig
	admins     map[string]struct{}
	cost       int
	now        func() time.Time
}

// NewService wires the account service. admins lists roll numbers that log in with the admin role.
func NewService(identities identity.Store, tokens TokenStore, authAdmin AuthAdmin, cfg TokenConfig, admins []string) *Service {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &Service{
		identities: identities,
		tokens:     tokens,
		authAdmin:  authAdmin,
		cfg:        cfg,
		admins:     set,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithCost overrides the bcrypt cost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

var errBadCredentials = apperr.Unauthorized(apperr.ReasonInvalidCredentials, "Invalid email or password")

// Login verifies the password against the stored hash and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, apperr.Validation(apperr.ReasonMissingFields, "email and password are required")
	}
	ident, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, errBadCredentials
	}
	if err != nil {
		return Session{}, apperr.Storage(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)) != nil {
		return Session{}, errBadCredentials
	}

	return s.issue(ctx, ident)
}

var errBadRefresh = apperr.Unauthorized(apperr.ReasonInvalidCredentials, "Invalid or expired refresh token")

// Refresh exchanges a stored, unrevoked refresh token for a new pair. The presented token is
// revoked so it cannot be used twice.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, apperr.Validation(apperr.ReasonMissingFields, "refresh_token is required")
	}
	claims, err := auth.ParseAs(refreshToken, s.cfg.SigningKey, s.cfg.Issuer, auth.TokenRefresh)
	if err != nil || claims.ID == "" {
		return Session{}, errBadRefresh
	}

	stored, err := s.tokens.Revoke(ctx, claims.ID, s.now().UTC())
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, errBadRefresh
	}
	if err != nil {
		return Session{}, apperr.Storage(err)
	}

	ident, err := s.identities.GetByRoll(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, errBadRefresh
	}
	if err != nil {
		return Session{}, apperr.Storage(err)
	}
	if ident.ID != stored.IdentityID {
		return Session{}, errBadRefresh
	}
	return s.issue(ctx, ident)
}

// issue signs a new pair for ident and stores the refresh half.
func (s *Service) issue(ctx context.Context, ident *identity.Identity) (Session, error) {
	role := auth.RoleUser
	if _, ok := s.admins[ident.RollNumber]; ok {
		role = auth.RoleAdmin
	}
	pair, err := auth.Issue(ident.RollNumber, role, s.cfg.Issuer, s.cfg.SigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}
	err = s.tokens.Save(ctx, RefreshToken{ID: pair.RefreshID, IdentityID: ident.ID, ExpiresAt: pair.RefreshExp.UTC()})
	if err != nil {
		return Session{}, apperr.Storage(err)
	}
	return Session{Tokens: pair, User: ident.Public()}, nil
}

// UpdateProfile changes name and/or email of the identity with rollNumber. Empty values are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, p auth.Principal, rollNumber, name, email string) (identity.Profile, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if rollNumber == "" || (name == "" && email == "") {
		return identity.Profile{}, apperr.Validation(apperr.ReasonMissingFields, "rollNumber and at least one of name or email are required")
	}
	if email != "" && !registration.ValidEmail(email) {
		return identity.Profile{}, apperr.Validation(apperr.ReasonInvalidEmail, "Invalid email format.")
	}
	if !p.CanActOn(rollNumber) {
		return identity.Profile{}, apperr.Forbidden("cannot modify another user's profile")
	}

	ident, err := s.identities.UpdateProfile(ctx, rollNumber, name, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return identity.Profile{}, apperr.NotFound(apperr.ReasonIdentityNotFound, "User not found")
	case errors.Is(err, apperr.ErrConflict):
		return identity.Profile{}, apperr.Storage(errors.New("email already registered"))
	case err != nil:
		return identity.Profile{}, apperr.Storage(err)
	}
	return ident.Public(), nil
}

// ChangePassword sets a new password at the auth provider, re-hashes it locally and revokes
// outstanding refresh tokens.
func (s *Service) ChangePassword(ctx context.Context, p auth.Principal, email, newPassword string) error {
	if email == "" || newPassword == "" {
		return apperr.Validation(apperr.ReasonMissingFields, "email and newPassword are required")
	}
	ident, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(apperr.ReasonIdentityNotFound, "User not found")
	}
	if err != nil {
		return apperr.Storage(err)
	}
	if !p.CanActOn(ident.RollNumber) {
		return apperr.Forbidden("cannot change another user's password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return apperr.Validation(apperr.ReasonBadRequest, "password is too long")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if ident.AuthID != "" {
		if err := s.authAdmin.UpdatePassword(ctx, ident.AuthID, newPassword); err != nil {
			return apperr.Storage(err)
		}
	}
	if err := s.identities.UpdatePasswordHash(ctx, ident.ID, string(hash)); err != nil {
		return apperr.Storage(err)
	}
	if err := s.tokens.RevokeAll(ctx, ident.ID, s.now().UTC()); err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// DeleteAccount removes the auth identity and then the local identity; devices, events and
// tokens go with it.
func (s *Service) DeleteAccount(ctx context.Context, p auth.Principal, email, rollNumber string) (identity.Profile, error) {
	if email == "" || rollNumber == "" {
		return identity.Profile{}, apperr.Validation(apperr.ReasonMissingFields, "email and rollNumber are required")
	}
	notFound := apperr.NotFound(apperr.ReasonIdentityNotFound,
		fmt.Sprintf("No users found for email: %s, rollNumber: %s", email, rollNumber))

	ident, err := s.identities.GetByRoll(ctx, rollNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return identity.Profile{}, notFound
	}
	if err != nil {
		return identity.Profile{}, apperr.Storage(err)
	}
	if ident.Email != email {
		return identity.Profile{}, notFound
	}
	if !p.CanActOn(ident.RollNumber) {
		return identity.Profile{}, apperr.Forbidden("cannot delete another user's account")
	}

	if ident.AuthID != "" {
		if err := s.authAdmin.Delete(ctx, ident.AuthID); err != nil {
			return identity.Profile{}, apperr.Storage(err)
		}
	}
	if err := s.identities.Delete(ctx, ident.ID); err != nil {
		return identity.Profile{}, apperr.Storage(err)
	}
	return ident.Public(), nil
}
