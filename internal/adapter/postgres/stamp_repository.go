package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

type StampRepo struct {
	pool *pgxpool.Pool
}

var _ domain.StampRepository = (*StampRepo)(nil)

func NewStampRepo(pool *pgxpool.Pool) *StampRepo {
	return &StampRepo{pool: pool}
}

// List returns the visible stamps ordered by id.
func (r *StampRepo) List(ctx context.Context) ([]domain.Stamp, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		"SELECT id, name, color, icon FROM stamps WHERE visible ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list stamps: %w", err)
	}

	stamps, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Stamp])
	if err != nil {
		return nil, fmt.Errorf("failed to scan stamps: %w", err)
	}
	return stamps, nil
}

func (r *StampRepo) GetByID(ctx context.Context, stampID int64) (*domain.Stamp, error) {
	var s domain.Stamp
	err := db(ctx, r.pool).QueryRow(ctx,
		"SELECT id, name, color, icon FROM stamps WHERE id = $1 AND visible", stampID).
		Scan(&s.ID, &s.Name, &s.Color, &s.Icon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStampNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stamp by ID: %w", err)
	}
	return &s, nil
}

type MessageRepo struct {
	pool *pgxpool.Pool
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Insert(ctx context.Context, roomID, stampID int64, userID string) (*domain.Message, error) {
	var m domain.Message
	err := db(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO messages (room_id, stamp_id, user_id) VALUES ($1, $2, $3)
		 RETURNING id, room_id, stamp_id, user_id, created_at`,
		roomID, stampID, userID).
		Scan(&m.ID, &m.RoomID, &m.StampID, &m.UserID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &m, nil
}

func (r *MessageRepo) DeleteByRoom(ctx context.Context, roomID int64) (int64, error) {
	tag, err := db(ctx, r.pool).Exec(ctx, "DELETE FROM messages WHERE room_id = $1", roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
