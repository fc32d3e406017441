package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type appService interface {
	domain.RoomService
	domain.StampService
}

// streamRegistry opens push channels. *broadcast.Registry satisfies it.
type streamRegistry interface {
	Register(roomID int64) *broadcast.Channel
	Rooms() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app      appService
	streams  streamRegistry
	limiter  *connectionLimiter
	upgrader websocket.Upgrader
	origins  []string
	draining atomic.Bool

	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics
	streamMetrics  *metrics.StreamMetrics

	instanceID   string
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app appService, streams streamRegistry, reg *prometheus.Registry, instanceID string, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := clockwork.NewRealClock()
	origins := parseOrigins(cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newCheckOrigin(origins, cfg.AppEnv == "development"),
	}

	srv := &Server{
		echo:           e,
		config:         cfg,
		clock:          clock,
		app:            app,
		streams:        streams,
		limiter:        newConnectionLimiter(int64(cfg.MaxStreamConnections)),
		upgrader:       upgrader,
		origins:        origins,
		metricsHandler: metrics.Handler(reg),
		httpMetrics:    metrics.NewHTTPMetrics(reg),
		streamMetrics:  metrics.NewStreamMetrics(reg),
		instanceID:     instanceID,
		healthChecks:   healthChecks,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// BeginShutdown makes readiness fail and rejects new streams. Call it before
// closing the registry so no stream registers after the close.
func (s *Server) BeginShutdown() {
	if s.draining.CompareAndSwap(false, true) {
		slog.Info("Server draining, new streams rejected")
	}
}

// Shutdown stops accepting requests and waits for in-flight ones. Open streams
// only return once their channels are closed, so close the registry first.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
