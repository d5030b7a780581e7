package device

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"presencegate/internal/apperr"
	"presencegate/internal/identity"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// ValidMAC reports whether mac is six colon-separated hex octets.
func ValidMAC(mac string) bool {
	return macPattern.MatchString(mac)
}

// Binding ties a physical device to an identity.
type Binding struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"user_id"`
	MAC        string    `json:"mac"`
	DeviceID   string    `json:"device_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Registry stores device bindings.
type Registry interface {
	Bind(ctx context.Context, b *Binding) error
	Exists(ctx context.Context, identityID, mac string) (bool, error)
	ListByIdentity(ctx context.Context, identityID string) ([]Binding, error)
}

// Service registers and lists devices for identities looked up by roll number.
type Service struct {
	identities identity.Store
	registry   Registry
}

// NewService wires the service.
func NewService(identities identity.Store, registry Registry) *Service {
	return &Service{identities: identities, registry: registry}
}

// Register binds mac/deviceID to the identity with the given roll number. The identity is
// resolved before the MAC is checked, so an unknown roll number is always NotFound.
func (s *Service) Register(ctx context.Context, rollNumber, mac, deviceID string) (Binding, error) {
	ident, err := s.lookup(ctx, rollNumber)
	if err != nil {
		return Binding{}, err
	}
	mac = strings.TrimSpace(mac)
	switch {
	case mac == "":
		return Binding{}, apperr.Validation(apperr.ReasonMissingFields, "mac is required")
	case !ValidMAC(mac):
		return Binding{}, apperr.Validation(apperr.ReasonInvalidMac, "Invalid MAC address format.")
	}
	b := Binding{
		IdentityID: ident.ID,
		MAC:        mac,
		DeviceID:   strings.TrimSpace(deviceID),
	}
	if err := s.registry.Bind(ctx, &b); err != nil {
		return Binding{}, apperr.Storage(err)
	}
	return b, nil
}

// List returns every device bound to the identity.
func (s *Service) List(ctx context.Context, rollNumber string) ([]Binding, error) {
	ident, err := s.lookup(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	bindings, err := s.registry.ListByIdentity(ctx, ident.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if bindings == nil {
		bindings = []Binding{}
	}
	return bindings, nil
}

func (s *Service) lookup(ctx context.Context, rollNumber string) (*identity.Identity, error) {
	ident, err := s.identities.GetByRoll(ctx, rollNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound(apperr.ReasonIdentityNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return ident, nil
}
