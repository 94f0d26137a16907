package water

import (
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// usageDateFormat is the date format the usage endpoint reports per
// daily record.
const usageDateFormat = "2006-01-02"

// Reading is one daily meter record: total consumption for the day in
// litres and the cumulative register read in cubic metres.
type Reading struct {
	Date        time.Time
	Consumption float64
	Read        float64
}

// SmartMeter caches the reading history for one meter serial number and
// prices consumption at the resolved tariff. The cache is safe for
// concurrent use; updates and reads may come from different goroutines.
type SmartMeter struct {
	SerialNumber string

	tariff Tariff

	mu       sync.RWMutex
	readings []Reading
}

// NewSmartMeter returns a meter cache pricing consumption at tariff.
func NewSmartMeter(serialNumber string, tariff Tariff) *SmartMeter {
	return &SmartMeter{SerialNumber: serialNumber, tariff: tariff}
}

// UpdateReadingCache replaces the cached history from the usage
// endpoint's daily records. Records that do not mention this meter's
// serial number are skipped, as are records with unparsable dates.
func (m *SmartMeter) UpdateReadingCache(records gjson.Result) {
	fresh := make([]Reading, 0, len(records.Array()))
	for _, record := range records.Array() {
		date, err := time.Parse(usageDateFormat, record.Get("date").String())
		if err != nil {
			continue
		}
		for _, entry := range record.Get("meters").Array() {
			if entry.Get("meter_serial_number").String() != m.SerialNumber {
				continue
			}
			fresh = append(fresh, Reading{
				Date:        date,
				Consumption: entry.Get("consumption").Float(),
				Read:        entry.Get("read").Float(),
			})
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Date.Before(fresh[j].Date) })
	m.mu.Lock()
	m.readings = fresh
	m.mu.Unlock()
}

// Readings returns a copy of the cached history, oldest first.
func (m *SmartMeter) Readings() []Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Reading, len(m.readings))
	copy(out, m.readings)
	return out
}

// LatestReading returns the most recent cached record. The boolean is
// false when the cache is empty.
func (m *SmartMeter) LatestReading() (Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.readings) == 0 {
		return Reading{}, false
	}
	return m.readings[len(m.readings)-1], true
}

// YesterdayConsumption returns yesterday's total consumption in litres,
// relative to now.
func (m *SmartMeter) YesterdayConsumption(now time.Time) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target := now.AddDate(0, 0, -1).Format(usageDateFormat)
	for i := len(m.readings) - 1; i >= 0; i-- {
		if m.readings[i].Date.Format(usageDateFormat) == target {
			return m.readings[i].Consumption
		}
	}
	return 0
}

// YesterdayCost prices yesterday's consumption at the tariff: the
// volumetric rate applied per cubic metre plus one day's share of the
// annual standing charge.
func (m *SmartMeter) YesterdayCost(now time.Time) float64 {
	litres := m.YesterdayConsumption(now)
	yesterday := now.AddDate(0, 0, -1)
	return litres/1000*m.tariff.Rate + m.tariff.Service/float64(daysInYear(yesterday.Year()))
}

func daysInYear(year int) int {
	if isLeap(year) {
		return 366
	}
	return 365
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
