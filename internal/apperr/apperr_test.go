package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("mark: %w", Unauthorized(ReasonDeviceNotRegistered, "device not registered"))

	assert.ErrorIs(t, err, &Error{Kind: KindUnauthorized})
	assert.ErrorIs(t, err, &Error{Kind: KindUnauthorized, Reason: ReasonDeviceNotRegistered})
	assert.NotErrorIs(t, err, &Error{Kind: KindUnauthorized, Reason: ReasonOutsideAllowedLocation})
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, ReasonDeviceNotRegistered, ReasonOf(err))
}

func TestStoragePassesMessageThrough(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Storage(cause)

	require.NotNil(t, err)
	assert.Equal(t, "connection reset by peer", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindStorage, err.Kind)
	assert.Nil(t, Storage(nil))

	already := NotFound(ReasonIdentityNotFound, "user not found")
	assert.Same(t, already, Storage(already))
}

func TestForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, ReasonInternal, ReasonOf(err))
	assert.Equal(t, "internal error", Internal(err).Error())
}
