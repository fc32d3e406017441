package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

const roomColumns = "id, name, created_at, closed_at"

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	if err := row.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.ClosedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RoomRepo) Create(ctx context.Context, name string) (*domain.Room, error) {
	row := db(ctx, r.pool).QueryRow(ctx,
		"INSERT INTO rooms (name) VALUES ($1) RETURNING "+roomColumns, name)
	room, err := scanRoom(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

func (r *RoomRepo) GetByID(ctx context.Context, roomID int64) (*domain.Room, error) {
	row := db(ctx, r.pool).QueryRow(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1", roomID)
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by ID: %w", err)
	}
	return room, nil
}

func (r *RoomRepo) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		"SELECT "+roomColumns+" FROM rooms ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Room, error) {
		room, err := scanRoom(row)
		if err != nil {
			return domain.Room{}, err
		}
		return *room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}
	return rooms, nil
}

// Close marks the room closed. Closing a closed room keeps the first close time.
func (r *RoomRepo) Close(ctx context.Context, roomID int64) (*domain.Room, error) {
	row := db(ctx, r.pool).QueryRow(ctx,
		"UPDATE rooms SET closed_at = COALESCE(closed_at, now()) WHERE id = $1 RETURNING "+roomColumns, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close room: %w", err)
	}
	return room, nil
}
