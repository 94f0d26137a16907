package water

import (
	"fmt"
	"time"
)

// TariffNotAvailableError is returned when the requested area or tariff
// is not present in the configured tariff table, or when a custom tariff
// is selected without the caller supplying its figures.
type TariffNotAvailableError struct {
	Area   string
	Tariff string
	Detail string
}

func (e *TariffNotAvailableError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tariff not available (area=%q tariff=%q): %s", e.Area, e.Tariff, e.Detail)
	}
	return fmt.Sprintf("tariff not available (area=%q tariff=%q)", e.Area, e.Tariff)
}

// Tariff is one priced tariff: a volumetric rate in GBP per cubic metre
// and an annual standing (service) charge in GBP. Custom marks entries
// whose figures must come from the caller instead of the table.
type Tariff struct {
	Rate    float64
	Service float64
	Custom  bool
}

// TariffTable maps supply area -> tariff name -> fiscal year (the year
// the charging period started in, UK fiscal year) -> Tariff. Tables are
// injected into the Service so deployments can carry their own pricing.
type TariffTable map[string]map[string]map[int]Tariff

// FiscalYear returns the UK fiscal year a time falls in: the 12 months
// starting 1 April, identified by the starting calendar year.
func FiscalYear(t time.Time) int {
	if t.Month() < time.April {
		return t.Year() - 1
	}
	return t.Year()
}

// Resolve looks up the tariff applying at time at. Custom tariffs take
// the caller-supplied rate and service figures; each is applied
// independently so one may be set without the other.
func (tt TariffTable) Resolve(area, tariff string, at time.Time, customRate, customService *float64) (Tariff, error) {
	areaTariffs, ok := tt[area]
	if !ok {
		return Tariff{}, &TariffNotAvailableError{Area: area, Tariff: tariff, Detail: "unknown area"}
	}
	years, ok := areaTariffs[tariff]
	if !ok {
		return Tariff{}, &TariffNotAvailableError{Area: area, Tariff: tariff, Detail: "unknown tariff"}
	}
	entry, ok := years[FiscalYear(at)]
	if !ok {
		return Tariff{}, &TariffNotAvailableError{
			Area: area, Tariff: tariff,
			Detail: fmt.Sprintf("no pricing for fiscal year %d", FiscalYear(at)),
		}
	}
	if entry.Custom {
		if customRate == nil && customService == nil {
			return Tariff{}, &TariffNotAvailableError{
				Area: area, Tariff: tariff,
				Detail: "custom tariff requires a rate or service charge",
			}
		}
		if customRate != nil {
			entry.Rate = *customRate
		}
		if customService != nil {
			entry.Service = *customService
		}
	}
	return entry, nil
}

// DefaultTariffTable returns the published Anglian Water charges. The
// "custom" tariff is a placeholder whose figures the caller supplies.
func DefaultTariffTable() TariffTable {
	return TariffTable{
		"Anglian": {
			"standard": {
				2024: {Rate: 2.0954, Service: 37.0},
				2025: {Rate: 2.3129, Service: 41.0},
				2026: {Rate: 2.4312, Service: 43.0},
			},
			"watersure": {
				2024: {Rate: 0, Service: 282.0},
				2025: {Rate: 0, Service: 311.0},
				2026: {Rate: 0, Service: 327.0},
			},
			"custom": {
				2024: {Custom: true},
				2025: {Custom: true},
				2026: {Custom: true},
			},
		},
		"Hartlepool": {
			"standard": {
				2024: {Rate: 1.8391, Service: 33.0},
				2025: {Rate: 2.0255, Service: 36.0},
				2026: {Rate: 2.1297, Service: 38.0},
			},
			"custom": {
				2024: {Custom: true},
				2025: {Custom: true},
				2026: {Custom: true},
			},
		},
	}
}
