package domain

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomClosed    = errors.New("room is closed")
	ErrStampNotFound = errors.New("stamp not found")

	ErrInvalidRoomName = errors.New("room name must be 1-100 characters")
)
