package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kawayt/stampsys-back-sub000/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe, e.g. postgres or the relay.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Name      string  `json:"name"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

type probeResponse struct {
	Status     string        `json:"status"`
	InstanceID string        `json:"instance_id"`
	Checks     []checkResult `json:"checks"`
}

type livenessResponse struct {
	Status        string  `json:"status"`
	InstanceID    string  `json:"instance_id"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	OpenStreams   int64   `json:"open_streams"`
	StreamLimit   int64   `json:"stream_limit"`
	ActiveRooms   int     `json:"active_rooms"`
}

type versionResponse struct {
	version.Info
	Summary    string `json:"summary"`
	InstanceID string `json:"instance_id"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.writeProbe(c, s.probeDependencies(ctx))
}

// handleLiveness never touches dependencies; it only proves the process serves requests.
func (s *Server) handleLiveness(c echo.Context) error {
	response := livenessResponse{
		Status:        "ok",
		InstanceID:    s.instanceID,
		UptimeSeconds: s.clock.Since(s.startTime).Seconds(),
		OpenStreams:   s.limiter.Current(),
		StreamLimit:   s.limiter.max,
		ActiveRooms:   s.streams.Rooms(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness reports not ready while draining so load balancers stop
// routing new streams here before they are closed.
func (s *Server) handleReadiness(c echo.Context) error {
	if s.draining.Load() {
		return s.writeProbe(c, probeResponse{Status: "draining", InstanceID: s.instanceID, Checks: []checkResult{}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.writeProbe(c, s.probeDependencies(ctx))
}

// probeDependencies runs every check, so one failing dependency does not hide another.
func (s *Server) probeDependencies(ctx context.Context) probeResponse {
	response := probeResponse{Status: "ready", InstanceID: s.instanceID, Checks: make([]checkResult, 0, len(s.healthChecks))}

	for _, hc := range s.healthChecks {
		start := s.clock.Now()
		err := hc.Check(ctx)
		result := checkResult{
			Name:      hc.Name,
			OK:        err == nil,
			LatencyMS: float64(s.clock.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			result.Error = err.Error()
			response.Status = "unhealthy"
		}
		response.Checks = append(response.Checks, result)
	}
	return response
}

func (s *Server) writeProbe(c echo.Context, response probeResponse) error {
	code := http.StatusOK
	if response.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	if err := c.JSON(code, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	info := version.Get()
	response := versionResponse{Info: info, Summary: info.String(), InstanceID: s.instanceID}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
