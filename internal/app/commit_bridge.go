package app

import (
	"context"
	"log/slog"

	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/correlation"
)

// RoomChangeListener receives local room change triggers.
type RoomChangeListener interface {
	OnRoomChanged(ctx context.Context, roomID int64)
}

type commitHooks interface {
	AfterCommit(ctx context.Context, hook func(ctx context.Context)) error
}

// CommitBridge turns "a write transaction that changed a room committed" into one
// trigger on the background pool. Every call yields its own trigger.
type CommitBridge struct {
	hooks    commitHooks
	listener RoomChangeListener
	pool     Submitter
}

var _ domain.RoomChangeNotifier = (*CommitBridge)(nil)

func NewCommitBridge(hooks commitHooks, listener RoomChangeListener, pool Submitter) *CommitBridge {
	return &CommitBridge{hooks: hooks, listener: listener, pool: pool}
}

// RoomChanged must be called inside the transaction that changed roomID.
func (b *CommitBridge) RoomChanged(ctx context.Context, roomID int64) error {
	return b.hooks.AfterCommit(ctx, func(hookCtx context.Context) {
		corrID, _ := correlation.ID(hookCtx)

		err := b.pool.Submit(func(taskCtx context.Context) {
			if corrID != "" {
				taskCtx = correlation.WithID(taskCtx, corrID)
			} else {
				taskCtx = correlation.Ensure(taskCtx)
			}
			b.listener.OnRoomChanged(taskCtx, roomID)
		})
		if err != nil {
			slog.WarnContext(hookCtx, "Room change trigger dropped", "room_id", roomID, "error", err)
		}
	})
}
