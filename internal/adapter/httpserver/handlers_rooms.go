package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	apperrors "github.com/kawayt/stampsys-back-sub000/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

type sendStampRequest struct {
	StampID int64  `json:"stampId"`
	UserID  string `json:"userId"`
}

func (s *Server) registerRoomRoutes() {
	stampLimiter := newRateLimiter(s.config.StampRateLimit, s.config.StampRateBurst)

	s.echo.GET("/api/stamps", s.handleListStamps)

	s.echo.POST("/api/rooms", s.handleCreateRoom)
	s.echo.GET("/api/rooms", s.handleListRooms)
	s.echo.GET("/api/rooms/:roomId", s.handleGetRoom)
	s.echo.POST("/api/rooms/:roomId/close", s.handleCloseRoom)
	s.echo.GET("/api/rooms/:roomId/summary", s.handleSummary)
	s.echo.POST("/api/rooms/:roomId/stamps", s.handleSendStamp, stampLimiter)
	s.echo.DELETE("/api/rooms/:roomId/stamps", s.handleResetRoom)
}

func parseRoomID(c echo.Context) (int64, error) {
	raw := c.Param("roomId")
	roomID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || roomID <= 0 {
		return 0, apperrors.ValidationError("invalid room id").WithField("room_id", raw)
	}
	return roomID, nil
}

func (s *Server) handleListStamps(c echo.Context) error {
	stamps, err := s.app.ListStamps(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list stamps", err)
	}
	if err := c.JSON(http.StatusOK, stamps); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	room, err := s.app.CreateRoom(c.Request().Context(), req.Name)
	if err != nil {
		return domainError(err, "failed to create room")
	}
	if err := c.JSON(http.StatusCreated, room); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListRooms(c echo.Context) error {
	rooms, err := s.app.ListRooms(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list rooms", err)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	if err := c.JSON(http.StatusOK, rooms); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetRoom(c echo.Context) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return err
	}

	room, err := s.app.GetRoom(c.Request().Context(), roomID)
	if err != nil {
		return domainError(err, "failed to load room").WithField("room_id", roomID)
	}
	if err := c.JSON(http.StatusOK, room); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCloseRoom(c echo.Context) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return err
	}

	room, err := s.app.CloseRoom(c.Request().Context(), roomID)
	if err != nil {
		return domainError(err, "failed to close room").WithField("room_id", roomID)
	}
	if err := c.JSON(http.StatusOK, room); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleSummary is the pull fallback for clients that cannot hold a stream open.
func (s *Server) handleSummary(c echo.Context) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.app.Summary(c.Request().Context(), roomID)
	if err != nil {
		return domainError(err, "failed to load summary").WithField("room_id", roomID)
	}
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}
	if err := c.JSON(http.StatusOK, snapshot); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSendStamp(c echo.Context) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return err
	}

	var req sendStampRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.StampID <= 0 {
		return apperrors.ValidationError("stampId is required")
	}

	msg, err := s.app.SendStamp(c.Request().Context(), roomID, req.StampID, req.UserID)
	if err != nil {
		return domainError(err, "failed to send stamp").
			WithField("room_id", roomID).
			WithField("stamp_id", req.StampID)
	}
	if err := c.JSON(http.StatusCreated, msg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleResetRoom(c echo.Context) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return err
	}

	deleted, err := s.app.ResetRoom(c.Request().Context(), roomID)
	if err != nil {
		return domainError(err, "failed to reset room").WithField("room_id", roomID)
	}
	if err := c.JSON(http.StatusOK, map[string]int64{"deleted": deleted}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
