package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"golang.org/x/sync/singleflight"
)

const maxRoomNameLength = 100

// Service implements the room and stamp use cases. Every write that changes a
// room's aggregate notifies the commit bridge inside its transaction.
type Service struct {
	rooms      domain.RoomRepository
	stamps     domain.StampRepository
	messages   domain.MessageRepository
	aggregator domain.Aggregator
	tx         domain.TxManager
	notifier   domain.RoomChangeNotifier
	metrics    *metrics.StampMetrics
	summaries  singleflight.Group
}

var (
	_ domain.RoomService  = (*Service)(nil)
	_ domain.StampService = (*Service)(nil)
)

func NewService(rooms domain.RoomRepository, stamps domain.StampRepository, messages domain.MessageRepository, aggregator domain.Aggregator, tx domain.TxManager, notifier domain.RoomChangeNotifier, m *metrics.StampMetrics) *Service {
	return &Service{
		rooms:      rooms,
		stamps:     stamps,
		messages:   messages,
		aggregator: aggregator,
		tx:         tx,
		notifier:   notifier,
		metrics:    m,
	}
}

func (s *Service) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, domain.ErrInvalidRoomName
	}
	return s.rooms.Create(ctx, name)
}

func (s *Service) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *Service) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.List(ctx)
}

// CloseRoom stops the room from accepting stamps. Its aggregate is unchanged.
func (s *Service) CloseRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	return s.rooms.Close(ctx, roomID)
}

func (s *Service) ListStamps(ctx context.Context) ([]domain.Stamp, error) {
	return s.stamps.List(ctx)
}

// SendStamp records a stamp in an open room. Watchers are notified once the
// insert has committed.
func (s *Service) SendStamp(ctx context.Context, roomID, stampID int64, userID string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		room, err := s.rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Closed() {
			return domain.ErrRoomClosed
		}
		if _, err := s.stamps.GetByID(ctx, stampID); err != nil {
			return err
		}

		msg, err = s.messages.Insert(ctx, roomID, stampID, userID)
		if err != nil {
			return err
		}
		return s.notifier.RoomChanged(ctx, roomID)
	})

	switch {
	case err == nil:
		s.metrics.Sent.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrRoomClosed), errors.Is(err, domain.ErrStampNotFound):
		s.metrics.Sent.WithLabelValues("rejected").Inc()
		return nil, err
	default:
		s.metrics.Sent.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("send stamp: %w", err)
	}
	return msg, nil
}

// ResetRoom deletes every stamp sent into the room and returns how many were removed.
func (s *Service) ResetRoom(ctx context.Context, roomID int64) (int64, error) {
	var deleted int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
			return err
		}

		var err error
		deleted, err = s.messages.DeleteByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		return s.notifier.RoomChanged(ctx, roomID)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Summary returns the authoritative snapshot of a room. Concurrent pulls for the
// same room share one query.
func (s *Service) Summary(ctx context.Context, roomID int64) (domain.Snapshot, error) {
	v, err, _ := s.summaries.Do(strconv.FormatInt(roomID, 10), func() (any, error) {
		if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
			return nil, err
		}
		return s.aggregator.Summary(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.Snapshot), nil
}
