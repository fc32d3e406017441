package httpserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Mock implementations ---

type mockAppService struct {
	createRoomFn func(ctx context.Context, name string) (*domain.Room, error)
	getRoomFn    func(ctx context.Context, roomID int64) (*domain.Room, error)
	listRoomsFn  func(ctx context.Context) ([]domain.Room, error)
	closeRoomFn  func(ctx context.Context, roomID int64) (*domain.Room, error)
	listStampsFn func(ctx context.Context) ([]domain.Stamp, error)
	sendStampFn  func(ctx context.Context, roomID, stampID int64, userID string) (*domain.Message, error)
	resetRoomFn  func(ctx context.Context, roomID int64) (int64, error)
	summaryFn    func(ctx context.Context, roomID int64) (domain.Snapshot, error)
}

func (m *mockAppService) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	if m.createRoomFn != nil {
		return m.createRoomFn(ctx, name)
	}
	return &domain.Room{ID: 1, Name: name}, nil
}

func (m *mockAppService) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	if m.getRoomFn != nil {
		return m.getRoomFn(ctx, roomID)
	}
	return &domain.Room{ID: roomID, Name: "room"}, nil
}

func (m *mockAppService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	if m.listRoomsFn != nil {
		return m.listRoomsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) CloseRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	if m.closeRoomFn != nil {
		return m.closeRoomFn(ctx, roomID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) ListStamps(ctx context.Context) ([]domain.Stamp, error) {
	if m.listStampsFn != nil {
		return m.listStampsFn(ctx)
	}
	return []domain.Stamp{{ID: 1, Name: "good"}}, nil
}

func (m *mockAppService) SendStamp(ctx context.Context, roomID, stampID int64, userID string) (*domain.Message, error) {
	if m.sendStampFn != nil {
		return m.sendStampFn(ctx, roomID, stampID, userID)
	}
	return &domain.Message{ID: 1, RoomID: roomID, StampID: stampID, UserID: userID}, nil
}

func (m *mockAppService) ResetRoom(ctx context.Context, roomID int64) (int64, error) {
	if m.resetRoomFn != nil {
		return m.resetRoomFn(ctx, roomID)
	}
	return 0, nil
}

func (m *mockAppService) Summary(ctx context.Context, roomID int64) (domain.Snapshot, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, roomID)
	}
	return domain.NewSnapshot([]domain.StampCount{
		{Stamp: domain.Stamp{ID: 1, Name: "good"}},
	}), nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:                    "0",
		MaxStreamConnections:    100,
		StreamHeartbeatInterval: 30 * time.Second,
		StampRateLimit:          100,
		StampRateBurst:          100,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := NewServer(testConfig(), app, broadcast.NewRegistry(nil), prometheus.NewRegistry(), "test-instance", nil)
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withClock(clock clockwork.Clock) func(*Server) {
	return func(s *Server) {
		s.clock = clock
	}
}

func withRegistry(r streamRegistry) func(*Server) {
	return func(s *Server) {
		s.streams = r
	}
}

func withConfig(fn func(cfg *config.Config)) func(*Server) {
	return func(s *Server) {
		fn(s.config)
	}
}

func withStreamLimit(max int64) func(*Server) {
	return func(s *Server) {
		s.limiter = newConnectionLimiter(max)
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}
