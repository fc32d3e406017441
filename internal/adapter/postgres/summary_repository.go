package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

// SummaryRepo is the Aggregator backed by PostgreSQL.
type SummaryRepo struct {
	pool *pgxpool.Pool
}

var _ domain.Aggregator = (*SummaryRepo)(nil)

func NewSummaryRepo(pool *pgxpool.Pool) *SummaryRepo {
	return &SummaryRepo{pool: pool}
}

const summaryQuery = `
SELECT s.id, s.name, s.color, s.icon, COUNT(m.id)
FROM stamps s
LEFT JOIN messages m ON m.stamp_id = s.id AND m.room_id = $1
WHERE s.visible
GROUP BY s.id, s.name, s.color, s.icon
ORDER BY s.id`

// Summary counts the messages of roomID per visible stamp, zero counts included.
func (r *SummaryRepo) Summary(ctx context.Context, roomID int64) (domain.Snapshot, error) {
	rows, err := db(ctx, r.pool).Query(ctx, summaryQuery, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StampCount, error) {
		var c domain.StampCount
		err := row.Scan(&c.Stamp.ID, &c.Stamp.Name, &c.Stamp.Color, &c.Stamp.Icon, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	return domain.NewSnapshot(counts), nil
}
