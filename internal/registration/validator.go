package registration

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"presencegate/internal/apperr"
	"presencegate/internal/config"
	"presencegate/internal/device"
)

var (
	emailPattern       = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	fingerprintPattern = regexp.MustCompile(`^([A-Za-z0-9+/=]+)$`)
)

// Coordinate is a latitude or longitude as sent by the client: a JSON number,
// a numeric string, or absent.
type Coordinate string

// UnmarshalJSON accepts both 12.97 and "12.97".
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
		return nil
	}
	*c = Coordinate(raw)
	return nil
}

// Fields is a raw enrollment request.
type Fields struct {
	Name            string     `json:"name" validate:"required"`
	Email           string     `json:"email" validate:"required"`
	RollNumber      string     `json:"rollNumber" validate:"required"`
	Password        string     `json:"password" validate:"required"`
	Department      string     `json:"department" validate:"required"`
	FaceData        string     `json:"faceData" validate:"required"`
	FingerprintData string     `json:"fingerprintData" validate:"required"`
	SSID            string     `json:"ssid" validate:"required"`
	MACAddress      string     `json:"macAddress" validate:"required"`
	Latitude        Coordinate `json:"latitude"`
	Longitude       Coordinate `json:"longitude"`
}

// Normalized is a validated enrollment ready to be hashed and persisted.
type Normalized struct {
	Name            string
	Email           string
	RollNumber      string
	Password        string
	Department      string
	FaceData        string
	FingerprintData string
	SSID            string
	MACAddress      string
	Latitude        *float64
	Longitude       *float64
}

// Validator checks enrollment requests against the policy.
type Validator struct {
	policy   config.Policy
	validate *validator.Validate
}

// NewValidator creates a validator bound to policy.
func NewValidator(policy config.Policy) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{policy: policy, validate: v}
}

// ValidateAndPrepare runs the required-field check and then each field rule in a fixed
// order; the first failing rule decides the error.
func (v *Validator) ValidateAndPrepare(f Fields) (Normalized, error) {
	if err := v.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Normalized{}, apperr.Internal(err)
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return Normalized{}, apperr.Validation(apperr.ReasonMissingFields,
			"Missing required fields: "+strings.Join(missing, ", "))
	}

	switch {
	case !emailPattern.MatchString(f.Email):
		return Normalized{}, apperr.Validation(apperr.ReasonInvalidEmail, "Invalid email format.")
	case !v.policy.HasDepartment(f.Department):
		return Normalized{}, apperr.Validation(apperr.ReasonInvalidDepartment, "Invalid department.")
	case f.SSID != v.policy.AllowedSSID:
		return Normalized{}, apperr.Validation(apperr.ReasonInvalidNetwork, "SSID must be "+v.policy.AllowedSSID+".")
	case !device.ValidMAC(f.MACAddress):
		return Normalized{}, apperr.Validation(apperr.ReasonInvalidMac, "Invalid MAC address format.")
	case !fingerprintPattern.MatchString(f.FingerprintData):
		return Normalized{}, apperr.Validation(apperr.ReasonInvalidFingerprintEncoding, "fingerprintData must be base64.")
	}

	lat, err := ParseCoordinate(f.Latitude, "latitude")
	if err != nil {
		return Normalized{}, err
	}
	lng, err := ParseCoordinate(f.Longitude, "longitude")
	if err != nil {
		return Normalized{}, err
	}

	return Normalized{
		Name:            f.Name,
		Email:           f.Email,
		RollNumber:      f.RollNumber,
		Password:        f.Password,
		Department:      f.Department,
		FaceData:        f.FaceData,
		FingerprintData: f.FingerprintData,
		SSID:            f.SSID,
		MACAddress:      f.MACAddress,
		Latitude:        lat,
		Longitude:       lng,
	}, nil
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ParseCoordinate returns nil for an absent value and rejects anything that is not a finite number.
func ParseCoordinate(c Coordinate, name string) (*float64, error) {
	raw := strings.TrimSpace(string(c))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return nil, apperr.Validation(apperr.ReasonInvalidCoordinate, "Invalid "+name+".")
	}
	return &val, nil
}
