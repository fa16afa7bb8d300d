// Package exposure turns refresh results into sensor values and hands them
// to the configured sinks.
package exposure

import (
	"strconv"

	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

// APIKeyRequired replaces every value while a vehicle has no key and no
// cached data.
const APIKeyRequired = "API key required"

// Attribute names set while the API key is missing.
const (
	AttrRegistrationURL  = "api_registration_url"
	AttrDocumentationURL = "api_documentation_url"
	AttrMessage          = "message"
)

// SensorState is the rendered value of one catalog field.
type SensorState struct {
	Key              core.FieldKey     `json:"key"`
	Name             string            `json:"name"`
	Icon             string            `json:"icon,omitempty"`
	Unit             string            `json:"unit,omitempty"`
	DeviceClass      string            `json:"device_class,omitempty"`
	EnabledByDefault bool              `json:"enabled_by_default"`
	Value            any               `json:"value"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// States renders every catalog field for res. Error kinds never appear as
// values: a field shows the snapshot value, the kind default, or the
// missing-key placeholder.
func States(res *coordinator.Result) []SensorState {
	var (
		snap    *core.Snapshot
		missing *core.Error
	)
	if res != nil {
		snap = res.Snapshot
		if e, ok := core.FindKind(res.Err, core.KindMissingCredential); ok {
			missing = e
		}
	}

	catalog := core.Catalog()
	states := make([]SensorState, 0, len(catalog))
	for _, spec := range catalog {
		st := SensorState{
			Key:              spec.Key,
			Name:             spec.Name,
			Icon:             spec.Icon,
			Unit:             spec.Unit,
			DeviceClass:      spec.DeviceClass,
			EnabledByDefault: spec.EnabledByDefault,
		}
		switch {
		case snap != nil:
			st.Value = spec.ValueOf(snap)
			if st.Value == nil {
				st.Value = Default(spec.Kind)
			}
		case missing != nil:
			st.Value = APIKeyRequired
		default:
			st.Value = Default(spec.Kind)
		}
		if missing != nil {
			st.Attributes = map[string]string{
				AttrRegistrationURL:  missing.RegistrationURL,
				AttrDocumentationURL: missing.DocumentationURL,
				AttrMessage:          missing.Message,
			}
		}
		states = append(states, st)
	}
	return states
}

// Default is the value shown for an unknown field of kind k.
func Default(k core.ValueKind) any {
	switch {
	case k.Numeric():
		return 0
	case k == core.ValueEnum:
		return core.StatusUnknown
	default:
		return ""
	}
}

// Format renders a sensor value as MQTT state payload text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case core.Status:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
