package domain

import (
	"context"
	"time"
)

type Room struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

func (r *Room) Closed() bool { return r.ClosedAt != nil }

type RoomRepository interface {
	Create(ctx context.Context, name string) (*Room, error)
	GetByID(ctx context.Context, roomID int64) (*Room, error)
	List(ctx context.Context) ([]Room, error)
	Close(ctx context.Context, roomID int64) (*Room, error)
}

// RoomService handles room lifecycle.
type RoomService interface {
	CreateRoom(ctx context.Context, name string) (*Room, error)
	GetRoom(ctx context.Context, roomID int64) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	CloseRoom(ctx context.Context, roomID int64) (*Room, error)
}
