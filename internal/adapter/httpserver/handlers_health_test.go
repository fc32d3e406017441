package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func newHealthContext(path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func decodeProbe(t *testing.T, rec *httptest.ResponseRecorder) probeResponse {
	t.Helper()
	var resp probeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleStartup_AllDependenciesUp(t *testing.T) {
	c, rec := newHealthContext("/health/startup")
	srv := newTestServer(t, &mockAppService{},
		withHealthChecks(
			HealthCheck{Name: "postgres", Check: healthOK},
			HealthCheck{Name: "redis", Check: healthOK},
		),
	)

	require.NoError(t, srv.handleStartup(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeProbe(t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "test-instance", resp.InstanceID)
	require.Len(t, resp.Checks, 2)
	assert.True(t, resp.Checks[0].OK)
	assert.True(t, resp.Checks[1].OK)
}

func TestHandleReadiness_ReportsEveryFailingDependency(t *testing.T) {
	c, rec := newHealthContext("/health/ready")
	srv := newTestServer(t, &mockAppService{},
		withHealthChecks(
			HealthCheck{Name: "postgres", Check: healthErr("database unreachable")},
			HealthCheck{Name: "redis", Check: healthErr("circuit breaker is open")},
		),
		withClock(clockwork.NewFakeClock()),
	)

	require.NoError(t, srv.handleReadiness(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeProbe(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, checkResult{Name: "postgres", Error: "database unreachable"}, resp.Checks[0])
	assert.Equal(t, checkResult{Name: "redis", Error: "circuit breaker is open"}, resp.Checks[1])
}

func TestHandleReadiness_RelayDownOnly(t *testing.T) {
	c, rec := newHealthContext("/health/ready")
	srv := newTestServer(t, &mockAppService{},
		withHealthChecks(
			HealthCheck{Name: "postgres", Check: healthOK},
			HealthCheck{Name: "redis", Check: healthErr("connection refused")},
		),
	)

	require.NoError(t, srv.handleReadiness(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeProbe(t, rec)
	assert.True(t, resp.Checks[0].OK)
	assert.False(t, resp.Checks[1].OK)
}

func TestHandleReadiness_NoChecks(t *testing.T) {
	c, rec := newHealthContext("/health/ready")
	srv := newTestServer(t, &mockAppService{})

	require.NoError(t, srv.handleReadiness(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeProbe(t, rec).Checks)
}

func TestHandleReadiness_DrainingSkipsChecks(t *testing.T) {
	c, rec := newHealthContext("/health/ready")
	called := false
	srv := newTestServer(t, &mockAppService{},
		withHealthChecks(HealthCheck{Name: "postgres", Check: func(context.Context) error {
			called = true
			return nil
		}}),
	)
	srv.BeginShutdown()

	require.NoError(t, srv.handleReadiness(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "draining", decodeProbe(t, rec).Status)
	assert.False(t, called)
}

func TestHandleLiveness_ReportsStreamsAndRooms(t *testing.T) {
	c, rec := newHealthContext("/health/live")
	clock := clockwork.NewFakeClock()
	registry := broadcast.NewRegistry(nil)
	srv := newTestServer(t, &mockAppService{}, withClock(clock), withRegistry(registry), withStreamLimit(50))
	srv.startTime = clock.Now()

	registry.Register(1)
	registry.Register(1)
	registry.Register(7)
	require.True(t, srv.limiter.Acquire())
	clock.Advance(90 * time.Second)

	require.NoError(t, srv.handleLiveness(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp livenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, livenessResponse{
		Status:        "ok",
		InstanceID:    "test-instance",
		UptimeSeconds: 90,
		OpenStreams:   1,
		StreamLimit:   50,
		ActiveRooms:   2,
	}, resp)
}

func TestHandleVersion(t *testing.T) {
	c, rec := newHealthContext("/version")
	srv := newTestServer(t, &mockAppService{})

	require.NoError(t, srv.handleVersion(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"version":"dev"`)
	assert.Contains(t, body, `"commit"`)
	assert.Contains(t, body, `"build_time"`)
	assert.Contains(t, body, `"go_version"`)
	assert.Contains(t, body, `"summary":"dev (unknown, built unknown, `)
	assert.Contains(t, body, `"instance_id":"test-instance"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	req := httptest.NewRequest(http.MethodGet, "/api/stamps", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stampsys_http_requests_total")
}
