package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"presencegate/internal/apperr"
	"presencegate/internal/config"
	"presencegate/internal/device"
	"presencegate/internal/geofence"
	"presencegate/internal/identity"
)

const (
	roll      = "21CS042"
	boundMAC  = "AA:BB:CC:DD:EE:FF"
	campusLat = 12.9716
	campusLng = 77.5946
)

var testPolicy = config.Policy{
	AllowedSSID: "CollegeWiFi",
	Anchor:      geofence.Anchor{Latitude: campusLat, Longitude: campusLng, RadiusMeters: 100},
	Departments: config.DefaultDepartments,
}

type brokenRegistry struct{ *device.MemoryRegistry }

func (brokenRegistry) Exists(context.Context, string, string) (bool, error) {
	return false, errors.New("devices: read timeout")
}

type brokenIdentities struct{ *identity.MemoryStore }

func (brokenIdentities) GetByRoll(context.Context, string) (*identity.Identity, error) {
	return nil, errors.New("users: connection reset")
}

type brokenLedger struct{ *MemoryLedger }

func (brokenLedger) Append(context.Context, *Event) error {
	return errors.New("attendance_events: write failed")
}

type PipelineSuite struct {
	suite.Suite
	ctx        context.Context
	identities *identity.MemoryStore
	devices    *device.MemoryRegistry
	ledger     *MemoryLedger
	pipeline   *Pipeline
	ident      *identity.Identity
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.identities = identity.NewMemoryStore()
	s.devices = device.NewMemoryRegistry()
	s.ledger = NewMemoryLedger()
	s.pipeline = NewPipeline(s.identities, s.devices, s.ledger, testPolicy)

	s.ident = &identity.Identity{
		RollNumber:      roll,
		Name:            "Meera Nair",
		Email:           "meera@college.edu",
		Department:      "CSE",
		FaceData:        "stored-face",
		FingerprintData: "c3RvcmVkLWZw",
	}
	s.Require().NoError(s.identities.Create(s.ctx, s.ident))
	s.Require().NoError(s.devices.Bind(s.ctx, &device.Binding{IdentityID: s.ident.ID, MAC: boundMAC, DeviceID: "phone"}))
}

func validRequest() MarkRequest {
	return MarkRequest{
		RollNumber:      roll,
		FaceData:        "stored-face",
		FingerprintData: "c3RvcmVkLWZw",
		SSID:            "CollegeWiFi",
		MAC:             boundMAC,
		Latitude:        12.9716,
		Longitude:       77.5950,
	}
}

func (s *PipelineSuite) requireRejected(err error, kind apperr.Kind, reason string) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(kind, apperr.KindOf(err))
	s.Equal(reason, apperr.ReasonOf(err))
	s.Zero(s.ledger.Len(), "no event may be written on a rejected mark")
}

func (s *PipelineSuite) TestAcceptsInsideGeofence() {
	before := time.Now().Truncate(time.Second)

	res, err := s.pipeline.MarkAttendance(s.ctx, validRequest())
	s.Require().NoError(err)

	s.False(res.Duplicate)
	s.NotEmpty(res.Event.ID)
	s.Equal(s.ident.ID, res.Event.IdentityID)
	s.Equal("CollegeWiFi", res.Event.SSID)
	s.Equal(boundMAC, res.Event.MAC)
	s.Equal(12.9716, res.Event.Latitude)
	s.Equal(77.5950, res.Event.Longitude)
	s.False(res.Event.MarkedAt.Before(before))
	s.Equal(time.UTC, res.Event.MarkedAt.Location())
	s.Equal(1, s.ledger.Len())
}

func (s *PipelineSuite) TestIdentityNotFound() {
	req := validRequest()
	req.RollNumber = "99XX999"
	_, err := s.pipeline.MarkAttendance(s.ctx, req)
	s.requireRejected(err, apperr.KindNotFound, apperr.ReasonIdentityNotFound)
}

func (s *PipelineSuite) TestBiometrics() {
	s.Run("face mismatch", func() {
		req := validRequest()
		req.FaceData = "someone-else"
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonBiometricMismatch)
		s.Equal("Face data does not match", err.Error())
	})

	s.Run("fingerprint mismatch", func() {
		req := validRequest()
		req.FingerprintData = "b3RoZXI="
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonBiometricMismatch)
		s.Equal("Fingerprint data does not match", err.Error())
	})

	s.Run("omitted face never rejects", func() {
		req := validRequest()
		req.FaceData = ""
		req.FingerprintData = ""
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.Require().NoError(err)
	})
}

func (s *PipelineSuite) TestNoStoredBiometricSkipsCheck() {
	bare := &identity.Identity{RollNumber: "21CS050", Email: "bare@college.edu", Department: "CSE"}
	s.Require().NoError(s.identities.Create(s.ctx, bare))
	s.Require().NoError(s.devices.Bind(s.ctx, &device.Binding{IdentityID: bare.ID, MAC: boundMAC}))

	req := validRequest()
	req.RollNumber = "21CS050"
	req.FaceData = "anything"
	_, err := s.pipeline.MarkAttendance(s.ctx, req)
	s.Require().NoError(err)
}

func (s *PipelineSuite) TestRequireEnrolledBiometricsPolicy() {
	strict := testPolicy
	strict.RequireEnrolledBiometrics = true
	p := NewPipeline(s.identities, s.devices, s.ledger, strict)

	req := validRequest()
	req.FaceData = ""
	_, err := p.MarkAttendance(s.ctx, req)
	s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonBiometricMismatch)
}

func (s *PipelineSuite) TestNetworkIsMandatoryAndCaseSensitive() {
	for _, ssid := range []string{"", "collegewifi", "GuestWiFi"} {
		req := validRequest()
		req.SSID = ssid
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonNetworkNotAllowed)
	}
}

func (s *PipelineSuite) TestDeviceNotRegistered() {
	req := validRequest()
	req.MAC = "11:22:33:44:55:66"
	_, err := s.pipeline.MarkAttendance(s.ctx, req)
	s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonDeviceNotRegistered)
}

func (s *PipelineSuite) TestOutsideGeofence() {
	req := validRequest()
	req.Latitude, req.Longitude = 12.9800, 77.6100
	_, err := s.pipeline.MarkAttendance(s.ctx, req)
	s.requireRejected(err, apperr.KindUnauthorized, apperr.ReasonOutsideAllowedLocation)
}

func (s *PipelineSuite) TestCheckOrder() {
	s.Run("device check precedes geofence", func() {
		req := validRequest()
		req.MAC = "11:22:33:44:55:66"
		req.Latitude, req.Longitude = 12.9800, 77.6100
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.Equal(apperr.ReasonDeviceNotRegistered, apperr.ReasonOf(err))
	})

	s.Run("network check precedes device", func() {
		req := validRequest()
		req.SSID = "GuestWiFi"
		req.MAC = "11:22:33:44:55:66"
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.Equal(apperr.ReasonNetworkNotAllowed, apperr.ReasonOf(err))
	})

	s.Run("biometric check precedes network", func() {
		req := validRequest()
		req.FaceData = "someone-else"
		req.SSID = "GuestWiFi"
		_, err := s.pipeline.MarkAttendance(s.ctx, req)
		s.Equal(apperr.ReasonBiometricMismatch, apperr.ReasonOf(err))
	})

	s.Run("identity resolution precedes everything", func() {
		_, err := s.pipeline.MarkAttendance(s.ctx, MarkRequest{RollNumber: "missing"})
		s.Equal(apperr.ReasonIdentityNotFound, apperr.ReasonOf(err))
	})
}

func (s *PipelineSuite) TestStorageErrors() {
	s.Run("identity lookup failure is not a not-found", func() {
		p := NewPipeline(brokenIdentities{s.identities}, s.devices, s.ledger, testPolicy)
		_, err := p.MarkAttendance(s.ctx, validRequest())
		s.requireRejected(err, apperr.KindStorage, apperr.ReasonStorage)
		s.Equal("users: connection reset", err.Error())
	})

	s.Run("device lookup failure", func() {
		p := NewPipeline(s.identities, brokenRegistry{s.devices}, s.ledger, testPolicy)
		_, err := p.MarkAttendance(s.ctx, validRequest())
		s.requireRejected(err, apperr.KindStorage, apperr.ReasonStorage)
		s.Equal("devices: read timeout", err.Error())
	})

	s.Run("ledger append failure", func() {
		p := NewPipeline(s.identities, s.devices, brokenLedger{s.ledger}, testPolicy)
		_, err := p.MarkAttendance(s.ctx, validRequest())
		s.requireRejected(err, apperr.KindStorage, apperr.ReasonStorage)
		s.Equal("attendance_events: write failed", err.Error())
	})
}

func (s *PipelineSuite) TestRepeatedMarksAppendEachTime() {
	for i := 0; i < 3; i++ {
		_, err := s.pipeline.MarkAttendance(s.ctx, validRequest())
		s.Require().NoError(err)
	}
	s.Equal(3, s.ledger.Len())
}

func (s *PipelineSuite) TestDedupWindow() {
	withDedup := testPolicy
	withDedup.DedupWindow = 5 * time.Minute
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	p := NewPipeline(s.identities, s.devices, s.ledger, withDedup).WithClock(func() time.Time { return now })

	first, err := p.MarkAttendance(s.ctx, validRequest())
	s.Require().NoError(err)
	s.False(first.Duplicate)

	now = now.Add(2 * time.Minute)
	second, err := p.MarkAttendance(s.ctx, validRequest())
	s.Require().NoError(err)
	s.True(second.Duplicate)
	s.Equal(first.Event.ID, second.Event.ID)

	now = now.Add(10 * time.Minute)
	third, err := p.MarkAttendance(s.ctx, validRequest())
	s.Require().NoError(err)
	s.False(third.Duplicate)
	s.Equal(2, s.ledger.Len())
}
