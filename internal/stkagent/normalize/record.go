package normalize

import (
	"time"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

// Upstream field names used by the vehicle technical data API. Scraped
// pages are mapped onto the same names.
const (
	upValidUntil          = "PravidelnaTechnickaProhlidkaDo"
	upBrand               = "TovarniZnacka"
	upModel               = "ObchodniOznaceni"
	upVIN                 = "VIN"
	upColor               = "VozidloKaroserieBarva"
	upWeight              = "HmotnostiProvozni"
	upMaxWeight           = "HmotnostiPripPov"
	upMaxSpeed            = "NejvyssiRychlost"
	upDisplacement        = "MotorZdvihObjem"
	upPower               = "MotorMaxVykon"
	upWheelbase           = "RozmeryRozvor"
	upDimensions          = "Rozmery"
	upNoiseDriving        = "HlukJizda"
	upNoiseStationary     = "HlukStojiciOtacky"
	upConsumption         = "SpotrebaNa100Km"
	upCO2                 = "EmiseCO2"
	upOwners              = "PocetVlastniku"
	upOperators           = "PocetProvozovatelu"
	upTPNumber            = "CisloTp"
	upORVNumber           = "CisloOrv"
	upFuel                = "Palivo"
	upVehicleType         = "VozidloDruh"
	upCategory            = "Kategorie"
	upStatusName          = "StatusNazev"
	upFirstRegistration   = "DatumPrvniRegistrace"
	upFirstRegistrationCZ = "DatumPrvniRegistraceVCr"
	upTires               = "NapravyPneuRafky"
)

// okStatus is the envelope status of a usable API response.
const okStatus = 1

// Record normalizes raw into a snapshot. today is the civil date used for
// the derived fields, see Today.
func Record(raw *core.RawRecord, today time.Time) (*core.Snapshot, error) {
	if raw == nil {
		return nil, core.NewError(core.KindInvalidResponseShape, "empty record")
	}

	var fields map[string]any
	switch raw.Source {
	case core.SourceScrape:
		f, err := HTMLFields(raw.HTML)
		if err != nil {
			return nil, err
		}
		fields = f
	default:
		if raw.Status != okStatus {
			return nil, core.NewError(core.KindInvalidResponseShape, "envelope status %d", raw.Status)
		}
		f, err := dataFields(raw.Data)
		if err != nil {
			return nil, err
		}
		fields = f
	}

	s := FromFields(fields, today)
	s.Source = raw.Source
	return s, nil
}

// dataFields accepts the Data object, or the older list of name/value pairs.
func dataFields(data any) (map[string]any, error) {
	switch d := data.(type) {
	case map[string]any:
		return d, nil
	case []any:
		fields := make(map[string]any, len(d))
		for _, item := range d {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, core.NewError(core.KindInvalidResponseShape, "data list entry is %T, want object", item)
			}
			name := Text(first(entry, "name", "Name"))
			if name == "" {
				continue
			}
			fields[name] = first(entry, "value", "Value")
		}
		return fields, nil
	case nil:
		return nil, core.NewError(core.KindInvalidResponseShape, "response has no Data")
	default:
		return nil, core.NewError(core.KindInvalidResponseShape, "Data is %T, want object", data)
	}
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// FromFields maps upstream fields onto a snapshot and computes the derived
// fields. Missing fields become "" for text and nil otherwise.
func FromFields(f map[string]any, today time.Time) *core.Snapshot {
	dims := Text(f[upDimensions])
	consumption := Text(f[upConsumption])
	tires := Text(f[upTires])

	s := &core.Snapshot{
		ValidUntil:          Date(f[upValidUntil]),
		FirstRegistration:   Date(f[upFirstRegistration]),
		FirstRegistrationCZ: Date(f[upFirstRegistrationCZ]),

		Brand:       Text(f[upBrand]),
		Model:       Text(f[upModel]),
		VIN:         Text(f[upVIN]),
		Color:       Text(f[upColor]),
		FuelType:    Text(f[upFuel]),
		VehicleType: Text(f[upVehicleType]),
		Category:    Text(f[upCategory]),
		StatusName:  Text(f[upStatusName]),
		TPNumber:    Text(f[upTPNumber]),
		ORVNumber:   Text(f[upORVNumber]),
		TiresFront:  Entry(tires, ";", 0),
		TiresRear:   Entry(tires, ";", 1),
		Dimensions:  dims,

		Weight:             Number(f[upWeight]),
		MaxWeight:          Number(f[upMaxWeight]),
		MaxSpeed:           Number(f[upMaxSpeed]),
		EngineDisplacement: Number(f[upDisplacement]),
		EnginePower:        compositeNumber(f[upPower], 0),
		Wheelbase:          Number(f[upWheelbase]),
		NoiseDriving:       Number(f[upNoiseDriving]),
		NoiseStationary:    compositeNumber(f[upNoiseStationary], 0),
		OwnersCount:        Number(f[upOwners]),
		OperatorsCount:     Number(f[upOperators]),

		Length: Number(Segment(dims, 0)),
		Width:  Number(Segment(dims, 1)),
		Height: Number(Segment(dims, 2)),

		ConsumptionCity:     Number(Segment(consumption, 0)),
		ConsumptionHighway:  Number(Segment(consumption, 1)),
		ConsumptionCombined: consumptionCombined(consumption),
		CO2Emissions:        compositeScan(f[upCO2]),
	}

	s.DaysRemaining = DaysRemaining(s.ValidUntil, today)
	s.Status = StatusFor(s.DaysRemaining)
	return s
}

// compositeNumber reads segment i of a composite value; plain numbers pass through.
func compositeNumber(v any, i int) *float64 {
	if n := Number(v); n != nil {
		return n
	}
	return Number(Segment(Text(v), i))
}

// compositeScan reads the first numeric segment; plain numbers pass through.
func compositeScan(v any) *float64 {
	if n := Number(v); n != nil {
		return n
	}
	return FirstNumeric(Text(v))
}

// consumptionCombined prefers the third segment and falls back to the first
// numeric one, so a lone " / / 3.5" and a bare "5.1" both resolve.
func consumptionCombined(s string) *float64 {
	if n := Number(Segment(s, 2)); n != nil {
		return n
	}
	return FirstNumeric(s)
}
