// Package water turns the vendor's dashboard and usage endpoints into a
// per-meter reading cache priced at a configured tariff.
package water

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/pantherale0/go-anglianwater/internal/auth"
)

// Endpoint names the service dispatches through its authenticator.
const (
	endpointUsageDetails     = "get_usage_details"
	endpointDashboardDetails = "get_dashboard_details"
)

// Service owns an authenticator and maintains the cached smart meter
// state for one account.
type Service struct {
	mu            sync.Mutex
	authenticator auth.Authenticator
	tariff        Tariff
	meters        map[string]*SmartMeter
	dashboard     gjson.Result
	lastUpdated   time.Time
	callbacks     []func()
}

// NewService resolves the tariff for the current fiscal year and returns
// a service dispatching through authenticator. An empty area leaves the
// tariff unpriced; costs then report as the standing-charge share only.
func NewService(authenticator auth.Authenticator, table TariffTable, area, tariff string, customRate, customService *float64) (*Service, error) {
	s := &Service{
		authenticator: authenticator,
		meters:        map[string]*SmartMeter{},
	}
	if area != "" {
		resolved, err := table.Resolve(area, tariff, time.Now(), customRate, customService)
		if err != nil {
			return nil, err
		}
		s.tariff = resolved
	}
	return s, nil
}

// RegisterCallback registers fn to run after every successful Update.
func (s *Service) RegisterCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Update fetches the usage and dashboard endpoints concurrently,
// refreshes the meter caches and fires registered callbacks. The caches
// are left untouched when either fetch fails.
func (s *Service) Update(ctx context.Context) error {
	var usage, dashboard gjson.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.authenticator.Dispatch(gctx, endpointUsageDetails, nil)
		if err != nil {
			return err
		}
		usage = res
		return nil
	})
	g.Go(func() error {
		res, err := s.authenticator.Dispatch(gctx, endpointDashboardDetails, nil)
		if err != nil {
			return err
		}
		dashboard = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.dashboard = dashboard
	s.parseUsagesLocked(usage)
	s.lastUpdated = time.Now()
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// parseUsagesLocked unwraps the usage payload and routes the daily
// records into per-serial meter caches, creating caches for serial
// numbers seen for the first time.
func (s *Service) parseUsagesLocked(payload gjson.Result) {
	records := payload
	if r := records.Get("result"); r.Exists() {
		records = r
	}
	if r := records.Get("records"); r.Exists() {
		records = r
	}
	if !records.IsArray() || len(records.Array()) == 0 {
		log.WithField("endpoint", endpointUsageDetails).Warn("usage response contained no records")
		return
	}

	serials := map[string]struct{}{}
	for _, record := range records.Array() {
		for _, entry := range record.Get("meters").Array() {
			if serial := entry.Get("meter_serial_number").String(); serial != "" {
				serials[serial] = struct{}{}
			}
		}
	}
	for serial := range serials {
		meter, ok := s.meters[serial]
		if !ok {
			meter = NewSmartMeter(serial, s.tariff)
			s.meters[serial] = meter
			log.WithField("meter", serial).Info("discovered smart meter")
		}
		meter.UpdateReadingCache(records)
	}
}

// Meters returns the cached meters keyed by serial number.
func (s *Service) Meters() map[string]*SmartMeter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*SmartMeter, len(s.meters))
	for k, v := range s.meters {
		out[k] = v
	}
	return out
}

// Dashboard returns the last fetched dashboard payload.
func (s *Service) Dashboard() gjson.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dashboard
}

// LastUpdated reports when Update last completed; zero before the first
// successful update.
func (s *Service) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}
