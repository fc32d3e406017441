package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	apperrors "github.com/kawayt/stampsys-back-sub000/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"

	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 512
)

// Close reasons, used as metric labels.
const (
	closeClientGone = "client_gone"
	closeTimeout    = "timeout"
	closeWriteError = "write_error"
	closeEvicted    = "evicted"
)

// wsFrame is the WebSocket envelope; SSE carries the same two fields natively.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/api/rooms/:roomId/stream", s.handleSSE)
	s.echo.GET("/api/rooms/:roomId/ws", s.handleWebSocket)
}

// openStream validates the room, takes a connection slot and registers a
// channel. The returned release func must be called exactly once.
func (s *Server) openStream(c echo.Context) (*broadcast.Channel, broadcast.Event, func(), error) {
	roomID, err := parseRoomID(c)
	if err != nil {
		return nil, broadcast.Event{}, nil, err
	}
	ctx := c.Request().Context()

	if _, err := s.app.GetRoom(ctx, roomID); err != nil {
		return nil, broadcast.Event{}, nil, domainError(err, "failed to load room").WithField("room_id", roomID)
	}

	if s.draining.Load() {
		return nil, broadcast.Event{}, nil, apperrors.UnavailableError("server is shutting down")
	}

	if !s.limiter.Acquire() {
		s.streamMetrics.Rejected.Inc()
		return nil, broadcast.Event{}, nil, apperrors.UnavailableError("too many open streams")
	}

	// Register before the pull so no commit between the two is missed.
	ch := s.streams.Register(roomID)
	release := func() {
		ch.Close()
		s.limiter.Release()
	}
	// A registration racing the shutdown close may have been missed by it.
	if s.draining.Load() {
		release()
		return nil, broadcast.Event{}, nil, apperrors.UnavailableError("server is shutting down")
	}

	snapshot, err := s.app.Summary(ctx, roomID)
	if err != nil {
		release()
		return nil, broadcast.Event{}, nil, domainError(err, "failed to load summary").WithField("room_id", roomID)
	}
	initial, err := broadcast.NewSummaryEvent(snapshot)
	if err != nil {
		release()
		return nil, broadcast.Event{}, nil, apperrors.InternalError("failed to encode summary", err)
	}

	return ch, initial, release, nil
}

// pump forwards channel events until the stream ends and reports why it ended.
// write and ping are only ever called from the calling goroutine.
func (s *Server) pump(ctx context.Context, ch *broadcast.Channel, write func(broadcast.Event) error, ping func() error) string {
	heartbeat := s.clock.NewTicker(s.config.StreamHeartbeatInterval)
	defer heartbeat.Stop()

	var timeout <-chan time.Time
	if s.config.StreamTimeout > 0 {
		timer := s.clock.NewTimer(s.config.StreamTimeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return closeClientGone
		case <-timeout:
			return closeTimeout
		case <-heartbeat.Chan():
			if err := ping(); err != nil {
				return closeWriteError
			}
		case ev, ok := <-ch.Events():
			if !ok {
				return closeEvicted
			}
			if err := write(ev); err != nil {
				return closeWriteError
			}
		}
	}
}

func (s *Server) handleSSE(c echo.Context) error {
	ch, initial, release, err := s.openStream(c)
	if err != nil {
		return err
	}
	defer release()

	s.streamMetrics.Active.WithLabelValues(transportSSE).Inc()
	defer s.streamMetrics.Active.WithLabelValues(transportSSE).Dec()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write := func(ev broadcast.Event) error {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
			return err
		}
		w.Flush()
		return nil
	}
	ping := func() error {
		if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	ctx := c.Request().Context()
	reason := closeWriteError
	if write(initial) == nil {
		reason = s.pump(ctx, ch, write, ping)
	}

	s.streamMetrics.Closed.WithLabelValues(transportSSE, reason).Inc()
	slog.DebugContext(ctx, "Stream closed", "transport", transportSSE, "room_id", ch.RoomID(), "reason", reason)
	return nil
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ch, initial, release, err := s.openStream(c)
	if err != nil {
		return err
	}
	defer release()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	s.streamMetrics.Active.WithLabelValues(transportWebSocket).Inc()
	defer s.streamMetrics.Active.WithLabelValues(transportWebSocket).Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Peers send nothing but control frames; a read error means they left.
	pongWait := 2 * s.config.StreamHeartbeatInterval
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(s.clock.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.clock.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev broadcast.Event) error {
		_ = conn.SetWriteDeadline(s.clock.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(wsFrame{Event: ev.Name, Data: ev.Data})
	}
	ping := func() error {
		return conn.WriteControl(websocket.PingMessage, nil, s.clock.Now().Add(wsWriteTimeout))
	}

	reason := closeWriteError
	if write(initial) == nil {
		reason = s.pump(ctx, ch, write, ping)
	}

	if reason != closeWriteError && reason != closeClientGone {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(wsWriteTimeout))
	}

	s.streamMetrics.Closed.WithLabelValues(transportWebSocket, reason).Inc()
	slog.DebugContext(ctx, "Stream closed", "transport", transportWebSocket, "room_id", ch.RoomID(), "reason", reason)
	return nil
}
