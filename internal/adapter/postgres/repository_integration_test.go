package postgres

import (
	"context"
	"testing"

	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepo_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRoomRepo(pool)
	ctx := context.Background()

	room, err := repo.Create(ctx, "algebra")
	require.NoError(t, err)
	assert.NotZero(t, room.ID)
	assert.False(t, room.Closed())

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "algebra", got.Name)

	closed, err := repo.Close(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, closed.Closed())

	again, err := repo.Close(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.ClosedAt.UTC(), again.ClosedAt.UTC(), "first close time is kept")

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestRoomRepo_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRoomRepo(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = repo.Close(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStampRepo_SeededCatalogue(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewStampRepo(pool)
	ctx := context.Background()

	stamps, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stamps, 5)
	assert.Equal(t, "good", stamps[0].Name)

	s, err := repo.GetByID(ctx, stamps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, stamps[1], *s)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrStampNotFound)
}

func TestMessageRepo_InsertAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewMessageRepo(pool)
	ctx := context.Background()
	roomID := createTestRoom(t, pool)

	msg, err := repo.Insert(ctx, roomID, 1, "student-1")
	require.NoError(t, err)
	assert.Equal(t, roomID, msg.RoomID)
	assert.Equal(t, "student-1", msg.UserID)

	_, err = repo.Insert(ctx, roomID, 2, "student-2")
	require.NoError(t, err)

	n, err := repo.DeleteByRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSummaryRepo_EmptyRoomHasZeroCounts(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	roomID := createTestRoom(t, pool)

	snap, err := NewSummaryRepo(pool).Summary(ctx, roomID)
	require.NoError(t, err)

	require.Len(t, snap, 5)
	for _, row := range snap {
		assert.Zero(t, row.Count)
		assert.Zero(t, row.Percentage)
	}
}

func TestSummaryRepo_CountsPerRoom(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	messages := NewMessageRepo(pool)
	roomA := createTestRoom(t, pool)
	roomB := createTestRoom(t, pool)

	for _, stampID := range []int64{1, 1, 1, 2} {
		_, err := messages.Insert(ctx, roomA, stampID, "")
		require.NoError(t, err)
	}
	_, err := messages.Insert(ctx, roomB, 3, "")
	require.NoError(t, err)

	snap, err := NewSummaryRepo(pool).Summary(ctx, roomA)
	require.NoError(t, err)

	assert.Equal(t, int64(3), snap[0].Count)
	assert.Equal(t, 75.0, snap[0].Percentage)
	assert.Equal(t, int64(1), snap[1].Count)
	assert.Equal(t, 25.0, snap[1].Percentage)
	assert.Zero(t, snap[2].Count, "other room's stamps are not counted")
}

func TestSummaryRepo_Deterministic(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	roomID := createTestRoom(t, pool)
	_, err := NewMessageRepo(pool).Insert(ctx, roomID, 4, "")
	require.NoError(t, err)

	repo := NewSummaryRepo(pool)
	first, err := repo.Summary(ctx, roomID)
	require.NoError(t, err)
	second, err := repo.Summary(ctx, roomID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
