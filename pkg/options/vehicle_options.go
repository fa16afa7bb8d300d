package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*VehicleOptions)(nil)

// Vehicle is one tracked vehicle as written in the config file.
type Vehicle struct {
	Name   string `json:"name" mapstructure:"name"`
	VIN    string `json:"vin" mapstructure:"vin"`
	APIKey string `json:"api-key" mapstructure:"api-key"`
}

// VehicleOptions holds the set of tracked vehicles. Entries come from the
// config file ("vehicles" list) and from repeated --vehicle flags.
type VehicleOptions struct {
	Vehicles []Vehicle `json:"vehicles" mapstructure:"vehicles"`

	flagValues []string
	fromFlags  []Vehicle
}

func NewVehicleOptions() *VehicleOptions {
	return &VehicleOptions{}
}

// Complete parses the --vehicle flag values. It may be called again after
// Vehicles was re-read from a changed config file.
func (o *VehicleOptions) Complete() error {
	parsed := make([]Vehicle, 0, len(o.flagValues))
	for _, raw := range o.flagValues {
		v, err := ParseVehicle(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, v)
	}
	o.fromFlags = parsed
	return nil
}

// All returns the config file vehicles followed by the flag vehicles.
func (o *VehicleOptions) All() []Vehicle {
	all := make([]Vehicle, 0, len(o.Vehicles)+len(o.fromFlags))
	all = append(all, o.Vehicles...)
	return append(all, o.fromFlags...)
}

func (o *VehicleOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	all := o.All()
	seen := make(map[string]struct{}, len(all))
	for i, v := range all {
		vin := strings.ToUpper(strings.TrimSpace(v.VIN))
		if vin == "" {
			errors = append(errors, fmt.Errorf("vehicles[%d]: vin is required", i))
			continue
		}
		if _, ok := seen[vin]; ok {
			errors = append(errors, fmt.Errorf("vehicles[%d]: vin %s is listed more than once", i, vin))
		}
		seen[vin] = struct{}{}
	}

	return errors
}

func (o *VehicleOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringArrayVar(&o.flagValues, "vehicle", o.flagValues,
		"A vehicle to track as 'vin=<VIN>,api-key=<KEY>,name=<NAME>'. May be repeated.")
}

// ParseVehicle parses the --vehicle flag syntax. A bare value is taken as the VIN.
func ParseVehicle(raw string) (Vehicle, error) {
	var v Vehicle
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			v.VIN = part
			continue
		}
		switch strings.TrimSpace(key) {
		case "vin":
			v.VIN = strings.TrimSpace(val)
		case "api-key", "key":
			v.APIKey = strings.TrimSpace(val)
		case "name":
			v.Name = strings.TrimSpace(val)
		default:
			return Vehicle{}, fmt.Errorf("--vehicle %q: unknown key %q", raw, key)
		}
	}
	if v.VIN == "" {
		return Vehicle{}, fmt.Errorf("--vehicle %q: vin is required", raw)
	}
	return v, nil
}
