package domain

import "context"

// Broadcaster fans a snapshot out to the channels open for a room on this instance.
// It returns the number of channels the snapshot reached.
type Broadcaster interface {
	Broadcast(roomID int64, snapshot Snapshot) int
}

// RelayPublisher tells peer instances that a room changed.
type RelayPublisher interface {
	Publish(ctx context.Context, roomID int64) error
}

// RelayHandler processes a room change announced by a peer instance.
// Implementations must not publish again.
type RelayHandler interface {
	OnRelayedRoomChanged(ctx context.Context, roomID int64)
}

// RoomChangeNotifier is called from inside a write transaction. The notification is
// delivered only once that transaction commits.
type RoomChangeNotifier interface {
	RoomChanged(ctx context.Context, roomID int64) error
}

// TxManager runs fn inside a storage transaction carried by the context.
// AfterCommit schedules hook to run once that transaction has committed and
// fails when ctx carries no transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AfterCommit(ctx context.Context, hook func(ctx context.Context)) error
}
