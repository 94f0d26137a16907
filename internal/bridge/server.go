// Package bridge exposes the cached water usage state over a small local
// HTTP API for exporter-style consumers.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/pantherale0/go-anglianwater/internal/water"
)

// meterView is the JSON shape of one meter in API responses.
type meterView struct {
	SerialNumber         string  `json:"serial_number"`
	LatestRead           float64 `json:"latest_read"`
	LatestReadDate       string  `json:"latest_read_date,omitempty"`
	YesterdayConsumption float64 `json:"yesterday_consumption"`
	YesterdayCost        float64 `json:"yesterday_cost"`
}

// Server serves the bridge API over a water.Service.
type Server struct {
	service *water.Service
	server  *http.Server
}

// NewServer builds the bridge listening on port.
func NewServer(service *water.Service, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		service: service,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/meters", s.handleMeters)
	engine.GET("/api/usage", s.handleUsage)
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Infof("bridge listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bridge: server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	updated := s.service.LastUpdated()
	status := http.StatusOK
	if updated.IsZero() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ok":           !updated.IsZero(),
		"last_updated": updated,
	})
}

func (s *Server) handleMeters(c *gin.Context) {
	now := time.Now()
	views := make([]meterView, 0)
	for serial, meter := range s.service.Meters() {
		view := meterView{
			SerialNumber:         serial,
			YesterdayConsumption: meter.YesterdayConsumption(now),
			YesterdayCost:        meter.YesterdayCost(now),
		}
		if latest, ok := meter.LatestReading(); ok {
			view.LatestRead = latest.Read
			view.LatestReadDate = latest.Date.Format("2006-01-02")
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"meters":       views,
		"last_updated": s.service.LastUpdated(),
	})
}

func (s *Server) handleUsage(c *gin.Context) {
	serial := c.Query("serial")
	meters := s.service.Meters()

	history := map[string][]water.Reading{}
	for key, meter := range meters {
		if serial != "" && key != serial {
			continue
		}
		history[key] = meter.Readings()
	}
	if serial != "" && len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown meter %q", serial)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"usage":        history,
		"last_updated": s.service.LastUpdated(),
	})
}
