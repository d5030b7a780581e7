package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"presencegate/internal/apperr"
	"presencegate/internal/identity"
)

type failingRegistry struct{ MemoryRegistry }

func (*failingRegistry) Bind(context.Context, *Binding) error {
	return errors.New("insert failed: connection refused")
}

type DeviceServiceSuite struct {
	suite.Suite
	ctx        context.Context
	identities *identity.MemoryStore
	registry   *MemoryRegistry
	svc        *Service
	ident      *identity.Identity
}

func TestDeviceServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceSuite))
}

func (s *DeviceServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.identities = identity.NewMemoryStore()
	s.registry = NewMemoryRegistry()
	s.svc = NewService(s.identities, s.registry)
	s.ident = &identity.Identity{RollNumber: "21EC014", Email: "ravi@college.edu", Department: "ECE"}
	s.Require().NoError(s.identities.Create(s.ctx, s.ident))
}

func (s *DeviceServiceSuite) TestRegister() {
	s.Run("binds mac to identity", func() {
		b, err := s.svc.Register(s.ctx, "21EC014", " AA:BB:CC:DD:EE:01 ", "pixel-7")
		s.Require().NoError(err)
		s.Equal(s.ident.ID, b.IdentityID)
		s.Equal("AA:BB:CC:DD:EE:01", b.MAC)
		s.NotEmpty(b.ID)

		ok, err := s.registry.Exists(s.ctx, s.ident.ID, "AA:BB:CC:DD:EE:01")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("several devices per identity", func() {
		_, err := s.svc.Register(s.ctx, "21EC014", "AA:BB:CC:DD:EE:02", "laptop")
		s.Require().NoError(err)
		list, err := s.svc.List(s.ctx, "21EC014")
		s.Require().NoError(err)
		s.Len(list, 2)
	})

	s.Run("unknown roll number is not found", func() {
		_, err := s.svc.Register(s.ctx, "nobody", "AA:BB:CC:DD:EE:03", "x")
		s.ErrorIs(err, &apperr.Error{Kind: apperr.KindNotFound, Reason: apperr.ReasonIdentityNotFound})
	})

	s.Run("unknown roll number wins over a blank mac", func() {
		_, err := s.svc.Register(s.ctx, "nobody", "", "x")
		s.Equal(apperr.KindNotFound, apperr.KindOf(err))
	})

	s.Run("blank or malformed mac is rejected", func() {
		_, err := s.svc.Register(s.ctx, "21EC014", "  ", "x")
		s.Equal(apperr.ReasonMissingFields, apperr.ReasonOf(err))

		_, err = s.svc.Register(s.ctx, "21EC014", "AA-BB-CC-DD-EE-04", "x")
		s.Equal(apperr.KindValidation, apperr.KindOf(err))
		s.Equal(apperr.ReasonInvalidMac, apperr.ReasonOf(err))

		list, err := s.svc.List(s.ctx, "21EC014")
		s.Require().NoError(err)
		s.Len(list, 2)
	})

	s.Run("same mac twice is a storage error", func() {
		_, err := s.svc.Register(s.ctx, "21EC014", "AA:BB:CC:DD:EE:01", "pixel-7")
		s.Equal(apperr.KindStorage, apperr.KindOf(err))
	})
}

func (s *DeviceServiceSuite) TestStorageErrorPassesThrough() {
	svc := NewService(s.identities, &failingRegistry{})
	_, err := svc.Register(s.ctx, "21EC014", "AA:BB:CC:DD:EE:09", "tablet")
	s.Equal(apperr.KindStorage, apperr.KindOf(err))
	s.Equal("insert failed: connection refused", err.Error())
}

func (s *DeviceServiceSuite) TestValidMAC() {
	s.True(ValidMAC("aa:bb:cc:dd:ee:ff"))
	s.False(ValidMAC("AA:BB:CC:DD:EE"))
	s.False(ValidMAC("AA:BB:CC:DD:EE:FG"))
}

func (s *DeviceServiceSuite) TestListEmpty() {
	list, err := s.svc.List(s.ctx, "21EC014")
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)

	_, err = s.svc.List(s.ctx, "nobody")
	s.Equal(apperr.KindNotFound, apperr.KindOf(err))
}
