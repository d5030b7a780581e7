package apperr

import (
	"errors"
	"fmt"
)

// Sentinels returned by stores; services translate them into *Error values.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Kind is the coarse error class; the HTTP layer maps it to a status code.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindStorage      Kind = "storage"
	KindInternal     Kind = "internal"
)

// Reason codes surfaced to clients.
const (
	ReasonIdentityNotFound       = "IdentityNotFound"
	ReasonBiometricMismatch      = "BiometricMismatch"
	ReasonNetworkNotAllowed      = "NetworkNotAllowed"
	ReasonDeviceNotRegistered    = "DeviceNotRegistered"
	ReasonOutsideAllowedLocation = "OutsideAllowedLocation"

	ReasonMissingFields              = "MissingFields"
	ReasonInvalidEmail               = "InvalidEmail"
	ReasonInvalidDepartment          = "InvalidDepartment"
	ReasonInvalidNetwork             = "InvalidNetwork"
	ReasonInvalidMac                 = "InvalidMac"
	ReasonInvalidFingerprintEncoding = "InvalidFingerprintEncoding"
	ReasonInvalidCoordinate          = "InvalidCoordinate"

	ReasonInvalidCredentials = "InvalidCredentials"
	ReasonBadRequest         = "BadRequest"
	ReasonStorage            = "StorageError"
	ReasonInternal           = "InternalError"
	ReasonForbidden          = "Forbidden"
	ReasonRateLimited        = "RateLimited"
)

// Error is the single error type returned by services.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error on Kind and Reason so callers can compare against templates.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Reason == "" || e.Reason == t.Reason)
}

// New builds an error with no underlying cause.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// NotFound reports an absent identity or record.
func NotFound(reason, message string) *Error {
	return New(KindNotFound, reason, message)
}

// Unauthorized reports a failed presence or credential check.
func Unauthorized(reason, message string) *Error {
	return New(KindUnauthorized, reason, message)
}

// Forbidden reports a principal acting outside its scope.
func Forbidden(message string) *Error {
	return New(KindForbidden, ReasonForbidden, message)
}

// Validation reports malformed or missing input.
func Validation(reason, message string) *Error {
	return New(KindValidation, reason, message)
}

// Storage wraps a failed read or write. The underlying message is passed through.
func Storage(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindStorage, Reason: ReasonStorage, Message: err.Error(), Err: err}
}

// Internal wraps anything unanticipated.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: "internal error", Err: err}
}

// Internalf formats an internal error with a cause.
func Internalf(format string, args ...any) *Error {
	return Internal(fmt.Errorf(format, args...))
}

// KindOf returns the class of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason code carried by err.
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonInternal
}
