package core

import "time"

// Status is the derived inspection state.
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusExpired Status = "expired"
	StatusUnknown Status = "unknown"
)

// WarningDays is the threshold at or below which a valid inspection is
// reported as a warning.
const WarningDays = 30

// Snapshot is the normalized view of one vehicle. Dates are "YYYY-MM-DD",
// numbers are finite or nil. A Snapshot is never modified after it is built.
type Snapshot struct {
	Source    Source
	FetchedAt time.Time

	ValidUntil    *string
	DaysRemaining *int
	Status        Status

	Brand       string
	Model       string
	VIN         string
	Color       string
	FuelType    string
	VehicleType string
	Category    string
	StatusName  string
	TPNumber    string
	ORVNumber   string
	TiresFront  string
	TiresRear   string
	Dimensions  string

	FirstRegistration   *string
	FirstRegistrationCZ *string

	Weight              *float64
	MaxWeight           *float64
	MaxSpeed            *float64
	EngineDisplacement  *float64
	EnginePower         *float64
	Wheelbase           *float64
	Length              *float64
	Width               *float64
	Height              *float64
	ConsumptionCity     *float64
	ConsumptionHighway  *float64
	ConsumptionCombined *float64
	CO2Emissions        *float64
	NoiseStationary     *float64
	NoiseDriving        *float64
	OwnersCount         *float64
	OperatorsCount      *float64
}

// Value returns the value of a catalog field, or nil when it is unknown.
func (s *Snapshot) Value(key FieldKey) any {
	spec, ok := Lookup(key)
	if !ok {
		return nil
	}
	return spec.ValueOf(s)
}

// ChangedFields lists the tracked fields whose values differ between prev
// and next. A nil prev counts every tracked field as changed.
func ChangedFields(prev, next *Snapshot) []FieldKey {
	var changed []FieldKey
	for _, spec := range Catalog() {
		if !spec.Tracked {
			continue
		}
		if prev == nil || !equalValue(spec.ValueOf(prev), spec.ValueOf(next)) {
			changed = append(changed, spec.Key)
		}
	}
	return changed
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}
