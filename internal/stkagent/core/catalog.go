package core

// FieldKey names one normalized field.
type FieldKey string

const (
	FieldValidUntil          FieldKey = "valid_until"
	FieldDaysRemaining       FieldKey = "days_remaining"
	FieldStatus              FieldKey = "status"
	FieldBrand               FieldKey = "brand"
	FieldModel               FieldKey = "model"
	FieldVIN                 FieldKey = "vin"
	FieldColor               FieldKey = "color"
	FieldFirstRegistration   FieldKey = "first_registration"
	FieldFirstRegistrationCZ FieldKey = "first_registration_cz"
	FieldWeight              FieldKey = "weight"
	FieldMaxWeight           FieldKey = "max_weight"
	FieldMaxSpeed            FieldKey = "max_speed"
	FieldEngineDisplacement  FieldKey = "engine_displacement"
	FieldEnginePower         FieldKey = "engine_power"
	FieldWheelbase           FieldKey = "wheelbase"
	FieldLength              FieldKey = "length"
	FieldWidth               FieldKey = "width"
	FieldHeight              FieldKey = "height"
	FieldConsumptionCity     FieldKey = "consumption_city"
	FieldConsumptionHighway  FieldKey = "consumption_highway"
	FieldConsumptionCombined FieldKey = "consumption_combined"
	FieldCO2Emissions        FieldKey = "co2_emissions"
	FieldNoiseStationary     FieldKey = "noise_stationary"
	FieldNoiseDriving        FieldKey = "noise_driving"
	FieldOwnersCount         FieldKey = "owners_count"
	FieldOperatorsCount      FieldKey = "operators_count"
	FieldFuelType            FieldKey = "fuel_type"
	FieldVehicleType         FieldKey = "vehicle_type"
	FieldCategory            FieldKey = "category"
	FieldStatusName          FieldKey = "status_name"
	FieldTPNumber            FieldKey = "tp_number"
	FieldORVNumber           FieldKey = "orv_number"
	FieldTiresFront          FieldKey = "tires_front"
	FieldTiresRear           FieldKey = "tires_rear"
	FieldDimensions          FieldKey = "dimensions"
)

// ValueKind decides how a field is rendered and what its default is.
type ValueKind string

const (
	ValueDate    ValueKind = "date"
	ValueInteger ValueKind = "integer"
	ValueNumber  ValueKind = "number"
	ValueText    ValueKind = "text"
	ValueEnum    ValueKind = "enum"
)

// Numeric reports whether values of this kind default to 0.
func (k ValueKind) Numeric() bool {
	return k == ValueInteger || k == ValueNumber
}

// FieldSpec describes one exposed field.
type FieldSpec struct {
	Key         FieldKey
	Name        string
	Icon        string
	Unit        string
	DeviceClass string
	Kind        ValueKind

	// Tracked fields take part in change detection.
	Tracked bool

	// EnabledByDefault marks the sensors shown without user opt-in.
	EnabledByDefault bool

	value func(*Snapshot) any
}

var catalog = []FieldSpec{
	{Key: FieldValidUntil, Name: "Platnost STK", Icon: "mdi:calendar-clock", DeviceClass: "date", Kind: ValueDate, Tracked: true, EnabledByDefault: true,
		value: func(s *Snapshot) any { return str(s.ValidUntil) }},
	{Key: FieldDaysRemaining, Name: "Dní do konce platnosti", Icon: "mdi:timer-sand", Unit: "days", Kind: ValueInteger, Tracked: true, EnabledByDefault: true,
		value: func(s *Snapshot) any { return integer(s.DaysRemaining) }},
	{Key: FieldStatus, Name: "Stav STK", Icon: "mdi:car-wrench", DeviceClass: "enum", Kind: ValueEnum, Tracked: true, EnabledByDefault: true,
		value: func(s *Snapshot) any { return s.Status }},
	{Key: FieldFirstRegistration, Name: "Datum první registrace", Icon: "mdi:calendar", DeviceClass: "date", Kind: ValueDate, EnabledByDefault: true,
		value: func(s *Snapshot) any { return str(s.FirstRegistration) }},
	{Key: FieldFirstRegistrationCZ, Name: "Datum první registrace v ČR", Icon: "mdi:calendar", DeviceClass: "date", Kind: ValueDate,
		value: func(s *Snapshot) any { return str(s.FirstRegistrationCZ) }},
	{Key: FieldBrand, Name: "Značka", Icon: "mdi:car", Kind: ValueText, EnabledByDefault: true,
		value: func(s *Snapshot) any { return s.Brand }},
	{Key: FieldModel, Name: "Model", Icon: "mdi:car-side", Kind: ValueText, EnabledByDefault: true,
		value: func(s *Snapshot) any { return s.Model }},
	{Key: FieldVIN, Name: "VIN", Icon: "mdi:identifier", Kind: ValueText,
		value: func(s *Snapshot) any { return s.VIN }},
	{Key: FieldColor, Name: "Barva", Icon: "mdi:palette", Kind: ValueText, EnabledByDefault: true,
		value: func(s *Snapshot) any { return s.Color }},
	{Key: FieldEnginePower, Name: "Výkon motoru", Icon: "mdi:engine", Unit: "kW", DeviceClass: "power", Kind: ValueNumber, EnabledByDefault: true,
		value: func(s *Snapshot) any { return num(s.EnginePower) }},
	{Key: FieldEngineDisplacement, Name: "Objem motoru", Icon: "mdi:engine", Unit: "cm³", Kind: ValueNumber, Tracked: true, EnabledByDefault: true,
		value: func(s *Snapshot) any { return num(s.EngineDisplacement) }},
	{Key: FieldFuelType, Name: "Palivo", Icon: "mdi:gas-station", Kind: ValueText, EnabledByDefault: true,
		value: func(s *Snapshot) any { return s.FuelType }},
	{Key: FieldMaxSpeed, Name: "Maximální rychlost", Icon: "mdi:speedometer", Unit: "km/h", Kind: ValueNumber, Tracked: true, EnabledByDefault: true,
		value: func(s *Snapshot) any { return num(s.MaxSpeed) }},
	{Key: FieldConsumptionCombined, Name: "Kombinovaná spotřeba", Icon: "mdi:fuel", Unit: "l/100km", Kind: ValueNumber, EnabledByDefault: true,
		value: func(s *Snapshot) any { return num(s.ConsumptionCombined) }},
	{Key: FieldConsumptionCity, Name: "Spotřeba ve městě", Icon: "mdi:fuel", Unit: "l/100km", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.ConsumptionCity) }},
	{Key: FieldConsumptionHighway, Name: "Spotřeba mimo město", Icon: "mdi:fuel", Unit: "l/100km", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.ConsumptionHighway) }},
	{Key: FieldCO2Emissions, Name: "Emise CO2", Icon: "mdi:molecule-co2", Unit: "g/km", Kind: ValueNumber, EnabledByDefault: true,
		value: func(s *Snapshot) any { return num(s.CO2Emissions) }},
	{Key: FieldWeight, Name: "Provozní hmotnost", Icon: "mdi:weight-kilogram", Unit: "kg", DeviceClass: "weight", Kind: ValueNumber, Tracked: true,
		value: func(s *Snapshot) any { return num(s.Weight) }},
	{Key: FieldMaxWeight, Name: "Největší povolená hmotnost", Icon: "mdi:weight-kilogram", Unit: "kg", DeviceClass: "weight", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.MaxWeight) }},
	{Key: FieldWheelbase, Name: "Rozvor", Icon: "mdi:ruler", Unit: "mm", DeviceClass: "distance", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.Wheelbase) }},
	{Key: FieldLength, Name: "Délka", Icon: "mdi:ruler", Unit: "mm", DeviceClass: "distance", Kind: ValueNumber, Tracked: true,
		value: func(s *Snapshot) any { return num(s.Length) }},
	{Key: FieldWidth, Name: "Šířka", Icon: "mdi:ruler", Unit: "mm", DeviceClass: "distance", Kind: ValueNumber, Tracked: true,
		value: func(s *Snapshot) any { return num(s.Width) }},
	{Key: FieldHeight, Name: "Výška", Icon: "mdi:ruler", Unit: "mm", DeviceClass: "distance", Kind: ValueNumber, Tracked: true,
		value: func(s *Snapshot) any { return num(s.Height) }},
	{Key: FieldNoiseStationary, Name: "Hluk stojícího vozidla", Icon: "mdi:volume-high", Unit: "dB", DeviceClass: "sound_pressure", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.NoiseStationary) }},
	{Key: FieldNoiseDriving, Name: "Hluk za jízdy", Icon: "mdi:volume-high", Unit: "dB", DeviceClass: "sound_pressure", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.NoiseDriving) }},
	{Key: FieldOwnersCount, Name: "Počet vlastníků", Icon: "mdi:account-multiple", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.OwnersCount) }},
	{Key: FieldOperatorsCount, Name: "Počet provozovatelů", Icon: "mdi:account-multiple", Kind: ValueNumber,
		value: func(s *Snapshot) any { return num(s.OperatorsCount) }},
	{Key: FieldVehicleType, Name: "Druh vozidla", Icon: "mdi:car-info", Kind: ValueText,
		value: func(s *Snapshot) any { return s.VehicleType }},
	{Key: FieldCategory, Name: "Kategorie", Icon: "mdi:shape", Kind: ValueText,
		value: func(s *Snapshot) any { return s.Category }},
	{Key: FieldStatusName, Name: "Stav vozidla", Icon: "mdi:information", Kind: ValueText,
		value: func(s *Snapshot) any { return s.StatusName }},
	{Key: FieldTPNumber, Name: "Číslo TP", Icon: "mdi:file-document", Kind: ValueText,
		value: func(s *Snapshot) any { return s.TPNumber }},
	{Key: FieldORVNumber, Name: "Číslo ORV", Icon: "mdi:file-document", Kind: ValueText,
		value: func(s *Snapshot) any { return s.ORVNumber }},
	{Key: FieldTiresFront, Name: "Pneumatiky přední", Icon: "mdi:tire", Kind: ValueText,
		value: func(s *Snapshot) any { return s.TiresFront }},
	{Key: FieldTiresRear, Name: "Pneumatiky zadní", Icon: "mdi:tire", Kind: ValueText,
		value: func(s *Snapshot) any { return s.TiresRear }},
	{Key: FieldDimensions, Name: "Rozměry", Icon: "mdi:ruler-square", Kind: ValueText,
		value: func(s *Snapshot) any { return s.Dimensions }},
}

var catalogIndex = func() map[FieldKey]int {
	idx := make(map[FieldKey]int, len(catalog))
	for i, spec := range catalog {
		idx[spec.Key] = i
	}
	return idx
}()

// Catalog returns the field table in display order.
func Catalog() []FieldSpec {
	out := make([]FieldSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for key.
func Lookup(key FieldKey) (FieldSpec, bool) {
	i, ok := catalogIndex[key]
	if !ok {
		return FieldSpec{}, false
	}
	return catalog[i], true
}

// ValueOf returns the field value of s, or nil when unknown.
func (f FieldSpec) ValueOf(s *Snapshot) any {
	if s == nil || f.value == nil {
		return nil
	}
	return f.value(s)
}

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func integer(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func num(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
