package normalize

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

func decode(t *testing.T, body string) *core.RawRecord {
	t.Helper()
	var env struct {
		Status int `json:"Status"`
		Data   any `json:"Data"`
	}
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&env))
	return &core.RawRecord{Source: core.SourceAPI, Status: env.Status, Data: env.Data}
}

func TestRecordExpiredVehicle(t *testing.T) {
	raw := decode(t, `{"Status":1,"Data":{"PravidelnaTechnickaProhlidkaDo":"01.01.2020","VIN":"TEST12345678901XX"}}`)

	s, err := Record(raw, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, s.ValidUntil)
	assert.Equal(t, "2020-01-01", *s.ValidUntil)
	require.NotNil(t, s.DaysRemaining)
	assert.Equal(t, 0, *s.DaysRemaining)
	assert.Equal(t, core.StatusExpired, s.Status)
	assert.Equal(t, "TEST12345678901XX", s.VIN)
	assert.Equal(t, core.SourceAPI, s.Source)
}

func TestRecordFullPayload(t *testing.T) {
	raw := decode(t, `{
		"Status": 1,
		"Data": {
			"PravidelnaTechnickaProhlidkaDo": "2026-03-15T00:00:00",
			"TovarniZnacka": "ŠKODA",
			"ObchodniOznaceni": " OCTAVIA ",
			"VIN": "TMBJJ7NE8J0123456",
			"VozidloKaroserieBarva": "ŠEDÁ",
			"HmotnostiProvozni": 1320,
			"HmotnostiPripPov": "1880",
			"NejvyssiRychlost": "206",
			"MotorZdvihObjem": 1968,
			"MotorMaxVykon": "110/ 3500",
			"RozmeryRozvor": 2686,
			"Rozmery": "4689/ 1814/ 1461",
			"HlukJizda": 71,
			"HlukStojiciOtacky": "87/ 3750",
			"SpotrebaNa100Km": "5,6/ 4,1/ 4,6",
			"EmiseCO2": " / 119",
			"PocetVlastniku": 2,
			"PocetProvozovatelu": 3,
			"CisloTp": "UG123456",
			"CisloOrv": "UAA123456",
			"Palivo": "NM",
			"VozidloDruh": "OSOBNÍ AUTOMOBIL",
			"Kategorie": "M1",
			"StatusNazev": "Provozované",
			"DatumPrvniRegistrace": "2018-05-02T00:00:00",
			"DatumPrvniRegistraceVCr": "02.05.2018",
			"NapravyPneuRafky": "205/55 R16 91V;205/55 R16 91V;"
		}
	}`)

	s, err := Record(raw, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	want := &core.Snapshot{
		Source:              core.SourceAPI,
		ValidUntil:          ptr("2026-03-15"),
		DaysRemaining:       ptr(14),
		Status:              core.StatusWarning,
		Brand:               "ŠKODA",
		Model:               "OCTAVIA",
		VIN:                 "TMBJJ7NE8J0123456",
		Color:               "ŠEDÁ",
		FuelType:            "NM",
		VehicleType:         "OSOBNÍ AUTOMOBIL",
		Category:            "M1",
		StatusName:          "Provozované",
		TPNumber:            "UG123456",
		ORVNumber:           "UAA123456",
		TiresFront:          "205/55 R16 91V",
		TiresRear:           "205/55 R16 91V",
		Dimensions:          "4689/ 1814/ 1461",
		FirstRegistration:   ptr("2018-05-02"),
		FirstRegistrationCZ: ptr("2018-05-02"),
		Weight:              ptr(1320.0),
		MaxWeight:           ptr(1880.0),
		MaxSpeed:            ptr(206.0),
		EngineDisplacement:  ptr(1968.0),
		EnginePower:         ptr(110.0),
		Wheelbase:           ptr(2686.0),
		Length:              ptr(4689.0),
		Width:               ptr(1814.0),
		Height:              ptr(1461.0),
		ConsumptionCity:     ptr(5.6),
		ConsumptionHighway:  ptr(4.1),
		ConsumptionCombined: ptr(4.6),
		CO2Emissions:        ptr(119.0),
		NoiseStationary:     ptr(87.0),
		NoiseDriving:        ptr(71.0),
		OwnersCount:         ptr(2.0),
		OperatorsCount:      ptr(3.0),
	}

	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordMissingFields(t *testing.T) {
	raw := decode(t, `{"Status":1,"Data":{"SpotrebaNa100Km":" / / 3.5","Rozmery":" / / ","EmiseCO2":" / / "}}`)

	s, err := Record(raw, time.Now())
	require.NoError(t, err)
	assert.Nil(t, s.ValidUntil)
	assert.Nil(t, s.DaysRemaining)
	assert.Equal(t, core.StatusUnknown, s.Status)
	assert.Equal(t, "", s.Brand)
	assert.Nil(t, s.Weight)
	assert.Nil(t, s.Length)
	assert.Nil(t, s.Width)
	assert.Nil(t, s.Height)
	assert.Nil(t, s.CO2Emissions)
	assert.Nil(t, s.ConsumptionCity)
	assert.Nil(t, s.ConsumptionHighway)
	assert.Equal(t, ptr(3.5), s.ConsumptionCombined)
}

func TestRecordConsumptionSegments(t *testing.T) {
	tests := []struct {
		name                    string
		value                   string
		city, highway, combined *float64
	}{
		{name: "all three", value: "5,6/ 4,1/ 4,6", city: ptr(5.6), highway: ptr(4.1), combined: ptr(4.6)},
		{name: "combined only", value: " / / 3.5", combined: ptr(3.5)},
		{name: "city only", value: "5.9/ / ", city: ptr(5.9), combined: ptr(5.9)},
		{name: "blank", value: " / / "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, `{"Status":1,"Data":{"SpotrebaNa100Km":"`+tt.value+`"}}`)
			s, err := Record(raw, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.city, s.ConsumptionCity)
			assert.Equal(t, tt.highway, s.ConsumptionHighway)
			assert.Equal(t, tt.combined, s.ConsumptionCombined)
		})
	}
}

func TestRecordListData(t *testing.T) {
	raw := decode(t, `{"Status":1,"Data":[
		{"name":"PravidelnaTechnickaProhlidkaDo","value":"15.03.2025"},
		{"name":"TovarniZnacka","value":"ŠKODA"},
		{"name":"","value":"ignored"}
	]}`)

	s, err := Record(raw, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, ptr("2025-03-15"), s.ValidUntil)
	assert.Equal(t, "ŠKODA", s.Brand)
	assert.Equal(t, core.StatusValid, s.Status)
}

func TestRecordInvalidShape(t *testing.T) {
	tests := map[string]string{
		"status zero":    `{"Status":0,"Data":{"VIN":"X"}}`,
		"missing data":   `{"Status":1}`,
		"scalar data":    `{"Status":1,"Data":"nope"}`,
		"bad list entry": `{"Status":1,"Data":[1,2]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Record(decode(t, body), time.Now())
			assert.Equal(t, core.KindInvalidResponseShape, core.KindOf(err))
		})
	}

	_, err := Record(nil, time.Now())
	assert.Equal(t, core.KindInvalidResponseShape, core.KindOf(err))
}
