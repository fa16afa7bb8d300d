package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// VINLength is the length of a Vehicle Identification Number.
const VINLength = 17

var (
	// ErrInvalidVIN is returned for identifiers that are not 17 alphanumeric characters.
	ErrInvalidVIN = errors.New("vin must be 17 alphanumeric characters")

	// ErrVINExists is returned when a VIN is registered twice.
	ErrVINExists = errors.New("vin is already registered")
)

// VehicleQuery identifies one tracked vehicle. It is immutable once built.
type VehicleQuery struct {
	// Name is the display label.
	Name string
	// VIN is upper-cased and trimmed.
	VIN string
	// APIKey may be empty; fetches then fail with KindMissingCredential.
	APIKey string
}

// NewVehicleQuery normalizes and validates its input. An empty name
// defaults to "STK <VIN>".
func NewVehicleQuery(name, vin, apiKey string) (VehicleQuery, error) {
	q := VehicleQuery{
		Name:   strings.TrimSpace(name),
		VIN:    strings.ToUpper(strings.TrimSpace(vin)),
		APIKey: strings.TrimSpace(apiKey),
	}
	if q.Name == "" {
		q.Name = "STK " + q.VIN
	}
	if err := q.Validate(); err != nil {
		return VehicleQuery{}, err
	}
	return q, nil
}

// Validate checks the VIN format.
func (q VehicleQuery) Validate() error {
	if !ValidVIN(q.VIN) {
		return fmt.Errorf("%w: %q", ErrInvalidVIN, q.VIN)
	}
	return nil
}

// HasCredential reports whether an API key is present.
func (q VehicleQuery) HasCredential() bool {
	return q.APIKey != ""
}

// String never includes the API key.
func (q VehicleQuery) String() string {
	return fmt.Sprintf("%s (%s)", q.Name, q.VIN)
}

// ValidVIN reports whether vin has the right length and only letters and digits.
func ValidVIN(vin string) bool {
	if len(vin) != VINLength {
		return false
	}
	for _, r := range vin {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
