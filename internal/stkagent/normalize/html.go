package normalize

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

type labelRule struct {
	field string
	label *regexp.Regexp
}

// labelRules map label cells of the public search page to upstream field
// names. Labels are lower-cased with collapsed whitespace and no trailing
// colon before matching. Order matters: the first rule that matches a row
// and is still unset takes it.
var labelRules = []labelRule{
	{upValidUntil, regexp.MustCompile(`^(pravidelná )?technická prohlídka( platná)? do$|^platnost stk( do)?$`)},
	{upFirstRegistrationCZ, regexp.MustCompile(`^datum (1\.|první) registrace v čr$`)},
	{upFirstRegistration, regexp.MustCompile(`^datum (1\.|první) registrace$`)},
	{upBrand, regexp.MustCompile(`^tovární značka$`)},
	{upModel, regexp.MustCompile(`^obchodní označení$`)},
	{upVIN, regexp.MustCompile(`^(vin|identifikační číslo vozidla( \(vin\))?)$`)},
	{upColor, regexp.MustCompile(`^barva( karoserie)?$`)},
	{upWeight, regexp.MustCompile(`^(provozní hmotnost|hmotnost provozní)$`)},
	{upMaxWeight, regexp.MustCompile(`^(největší )?(technicky )?(přípustná|povolená) (celková )?hmotnost$`)},
	{upMaxSpeed, regexp.MustCompile(`^nejvyšší rychlost$`)},
	{upDisplacement, regexp.MustCompile(`^zdvihový objem( motoru)?$`)},
	{upPower, regexp.MustCompile(`^max(\.|imální) výkon( motoru)?`)},
	{upWheelbase, regexp.MustCompile(`^rozvor$`)},
	{upDimensions, regexp.MustCompile(`^(rozměry|celková délka/šířka/výška)`)},
	{upNoiseStationary, regexp.MustCompile(`^hluk stojícího vozidla`)},
	{upNoiseDriving, regexp.MustCompile(`^hluk za jízdy`)},
	{upConsumption, regexp.MustCompile(`^spotřeba( paliva)?`)},
	{upCO2, regexp.MustCompile(`^emise co2`)},
	{upOwners, regexp.MustCompile(`^počet vlastníků$`)},
	{upOperators, regexp.MustCompile(`^počet provozovatelů$`)},
	{upTPNumber, regexp.MustCompile(`^číslo tp$`)},
	{upORVNumber, regexp.MustCompile(`^číslo orv$`)},
	{upFuel, regexp.MustCompile(`^(druh )?paliv[oa]$`)},
	{upVehicleType, regexp.MustCompile(`^druh vozidla$`)},
	{upCategory, regexp.MustCompile(`^kategorie( vozidla)?$`)},
	{upStatusName, regexp.MustCompile(`^(status|stav vozidla)$`)},
	{upTires, regexp.MustCompile(`^(pneumatiky|kola a pneumatiky)`)},
}

var spaces = regexp.MustCompile(`\s+`)

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(spaces.ReplaceAllString(s, " ")))
	return strings.TrimSpace(strings.TrimSuffix(s, ":"))
}

// HTMLFields extracts upstream fields from a search result page. Values sit
// in the cell right after their label cell, in table rows or dt/dd pairs.
// Fields without a matching label are left out.
func HTMLFields(page []byte) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, core.WrapError(core.KindParse, err, "parse search page")
	}

	fields := make(map[string]any)
	assign := func(label, value string) {
		label = normalizeLabel(label)
		if label == "" {
			return
		}
		for _, rule := range labelRules {
			if _, done := fields[rule.field]; done {
				continue
			}
			if rule.label.MatchString(label) {
				fields[rule.field] = strings.TrimSpace(spaces.ReplaceAllString(value, " "))
				return
			}
		}
	}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children().Filter("th, td")
		if cells.Length() < 2 {
			return
		}
		assign(cells.Eq(0).Text(), cells.Eq(1).Text())
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		assign(dt.Text(), dd.Text())
	})

	return fields, nil
}
