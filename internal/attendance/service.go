package attendance

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"presencegate/internal/apperr"
	"presencegate/internal/config"
	"presencegate/internal/device"
	"presencegate/internal/identity"
)

// MarkRequest carries everything a client submits to prove presence.
// Empty FaceData/FingerprintData mean the factor was not supplied.
type MarkRequest struct {
	RollNumber      string
	FaceData        string
	FingerprintData string
	SSID            string
	MAC             string
	Latitude        float64
	Longitude       float64
}

// Result is the outcome of a successful mark.
type Result struct {
	Event     Event
	Duplicate bool
}

type check struct {
	reason  string
	message string
	pass    func(ctx context.Context, req MarkRequest, ident *identity.Identity) (bool, error)
}

// Pipeline verifies presence and appends accepted events to the ledger.
type Pipeline struct {
	identities identity.Store
	devices    device.Registry
	ledger     Ledger
	policy     config.Policy
	now        func() time.Time
	checks     []check
}

// NewPipeline creates a pipeline bound to an immutable policy.
func NewPipeline(identities identity.Store, devices device.Registry, ledger Ledger, policy config.Policy) *Pipeline {
	p := &Pipeline{
		identities: identities,
		devices:    devices,
		ledger:     ledger,
		policy:     policy,
		now:        time.Now,
	}
	// Order matters: the first failing check decides the rejection reason.
	p.checks = []check{
		{apperr.ReasonBiometricMismatch, "Face data does not match", p.faceMatches},
		{apperr.ReasonBiometricMismatch, "Fingerprint data does not match", p.fingerprintMatches},
		{apperr.ReasonNetworkNotAllowed, "SSID not allowed", p.networkAllowed},
		{apperr.ReasonDeviceNotRegistered, "Device not registered", p.deviceBound},
		{apperr.ReasonOutsideAllowedLocation, "Outside allowed location", p.insideGeofence},
	}
	return p
}

// WithClock overrides the time source.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// MarkAttendance resolves the identity, runs every presence check in order and records the event.
// Nothing is written unless all checks pass.
func (p *Pipeline) MarkAttendance(ctx context.Context, req MarkRequest) (Result, error) {
	ident, err := p.identities.GetByRoll(ctx, req.RollNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return Result{}, apperr.NotFound(apperr.ReasonIdentityNotFound, "User not found")
	}
	if err != nil {
		return Result{}, apperr.Storage(err)
	}

	for _, c := range p.checks {
		ok, err := c.pass(ctx, req, ident)
		if err != nil {
			return Result{}, apperr.Storage(err)
		}
		if !ok {
			return Result{}, apperr.Unauthorized(c.reason, c.message)
		}
	}

	now := p.now().UTC()
	if p.policy.DedupWindow > 0 {
		recent, err := p.ledger.Recent(ctx, ident.ID, req.MAC, now.Add(-p.policy.DedupWindow))
		if err != nil {
			return Result{}, apperr.Storage(err)
		}
		if recent != nil {
			return Result{Event: *recent, Duplicate: true}, nil
		}
	}

	evt := Event{
		IdentityID: ident.ID,
		MarkedAt:   now,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		SSID:       req.SSID,
		MAC:        req.MAC,
	}
	if err := p.ledger.Append(ctx, &evt); err != nil {
		return Result{}, apperr.Storage(err)
	}
	return Result{Event: evt}, nil
}

func (p *Pipeline) faceMatches(_ context.Context, req MarkRequest, ident *identity.Identity) (bool, error) {
	return p.biometricMatches(req.FaceData, ident.FaceData), nil
}

func (p *Pipeline) fingerprintMatches(_ context.Context, req MarkRequest, ident *identity.Identity) (bool, error) {
	return p.biometricMatches(req.FingerprintData, ident.FingerprintData), nil
}

// biometricMatches skips the factor when either side is absent, unless the policy
// requires a supplied token for every enrolled one.
func (p *Pipeline) biometricMatches(supplied, stored string) bool {
	if stored == "" {
		return true
	}
	if supplied == "" {
		return !p.policy.RequireEnrolledBiometrics
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) == 1
}

func (p *Pipeline) networkAllowed(_ context.Context, req MarkRequest, _ *identity.Identity) (bool, error) {
	return req.SSID == p.policy.AllowedSSID, nil
}

func (p *Pipeline) deviceBound(ctx context.Context, req MarkRequest, ident *identity.Identity) (bool, error) {
	return p.devices.Exists(ctx, ident.ID, req.MAC)
}

func (p *Pipeline) insideGeofence(_ context.Context, req MarkRequest, _ *identity.Identity) (bool, error) {
	return p.policy.Anchor.Contains(req.Latitude, req.Longitude), nil
}
