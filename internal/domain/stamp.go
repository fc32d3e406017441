package domain

import (
	"context"
	"time"
)

// Stamp is a reaction type students can send.
type Stamp struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Message records one stamp sent into a room.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	StampID   int64     `json:"stampId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StampRepository interface {
	List(ctx context.Context) ([]Stamp, error)
	GetByID(ctx context.Context, stampID int64) (*Stamp, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, roomID, stampID int64, userID string) (*Message, error)
	DeleteByRoom(ctx context.Context, roomID int64) (int64, error)
}

// StampService is the write path for stamps plus the synchronous snapshot pull.
type StampService interface {
	ListStamps(ctx context.Context) ([]Stamp, error)
	SendStamp(ctx context.Context, roomID, stampID int64, userID string) (*Message, error)
	ResetRoom(ctx context.Context, roomID int64) (int64, error)
	Summary(ctx context.Context, roomID int64) (Snapshot, error)
}
