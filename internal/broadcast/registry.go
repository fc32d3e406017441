package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

// Observer receives registry events, typically to feed metrics.
type Observer interface {
	ChannelOpened()
	ChannelClosed()
	RoomOpened()
	RoomPruned()
	EventsDelivered(n int)
	ChannelEvicted(reason string)
}

type noopObserver struct{}

func (noopObserver) ChannelOpened() {}
func (noopObserver) ChannelClosed() {}
func (noopObserver) RoomOpened() {}
func (noopObserver) RoomPruned() {}
func (noopObserver) EventsDelivered(int) {}
func (noopObserver) ChannelEvicted(string) {}

// roomSet is the set of channels of one room. Once removed is set the set is
// no longer reachable from the registry and must not receive new channels.
type roomSet struct {
	mu       sync.Mutex
	channels map[string]*Channel
	removed  bool
}

// Registry maps room ids to their open channels. Rooms are locked independently.
type Registry struct {
	rooms    sync.Map // int64 -> *roomSet
	observer Observer
}

var _ domain.Broadcaster = (*Registry)(nil)

// NewRegistry creates an empty registry. A nil observer is allowed.
func NewRegistry(observer Observer) *Registry {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Registry{observer: observer}
}

// Register opens a new channel for roomID.
func (r *Registry) Register(roomID int64) *Channel {
	ch := &Channel{
		id:       uuid.NewString(),
		roomID:   roomID,
		registry: r,
		events:   make(chan Event, outboxSize),
	}

	for {
		v, loaded := r.rooms.LoadOrStore(roomID, &roomSet{channels: make(map[string]*Channel)})
		set := v.(*roomSet)

		set.mu.Lock()
		if set.removed {
			// Lost a race with pruning; the next LoadOrStore sees a fresh set.
			set.mu.Unlock()
			continue
		}
		set.channels[ch.id] = ch
		size := len(set.channels)
		set.mu.Unlock()

		if !loaded {
			r.observer.RoomOpened()
		}
		r.observer.ChannelOpened()
		slog.Debug("Channel registered", "room_id", roomID, "channel_id", ch.id, "room_channels", size)
		return ch
	}
}

// Unregister removes ch from its room and closes it. It is idempotent.
// The channel's own room wins over a mismatched roomID.
func (r *Registry) Unregister(roomID int64, ch *Channel) {
	if ch == nil {
		return
	}
	if roomID != ch.roomID {
		slog.Warn("Unregister room mismatch, using channel room", "room_id", roomID, "channel_room_id", ch.roomID, "channel_id", ch.id)
		roomID = ch.roomID
	}

	if v, ok := r.rooms.Load(roomID); ok {
		set := v.(*roomSet)

		set.mu.Lock()
		if cur, ok := set.channels[ch.id]; ok && cur == ch {
			delete(set.channels, ch.id)
		}
		if len(set.channels) == 0 && !set.removed {
			set.removed = true
			r.rooms.CompareAndDelete(roomID, set)
			r.observer.RoomPruned()
		}
		set.mu.Unlock()
	}

	if ch.terminate() {
		r.observer.ChannelClosed()
		slog.Debug("Channel unregistered", "room_id", roomID, "channel_id", ch.id)
	}
}

// Broadcast sends snapshot as a summary event to every channel of roomID and
// returns how many channels accepted it. Channels that fail are unregistered.
func (r *Registry) Broadcast(roomID int64, snapshot domain.Snapshot) int {
	targets := r.channels(roomID)
	if len(targets) == 0 {
		return 0
	}

	ev, err := NewSummaryEvent(snapshot)
	if err != nil {
		slog.Error("Failed to encode summary event", "room_id", roomID, "error", err)
		return 0
	}

	delivered := 0
	for _, ch := range targets {
		if err := ch.send(ev); err != nil {
			reason := "closed"
			if errors.Is(err, ErrSlowConsumer) {
				reason = "slow_consumer"
				slog.Warn("Evicting slow channel", "room_id", roomID, "channel_id", ch.id)
			}
			r.Unregister(roomID, ch)
			r.observer.ChannelEvicted(reason)
			continue
		}
		delivered++
	}

	r.observer.EventsDelivered(delivered)
	return delivered
}

// Count returns the number of open channels for roomID.
func (r *Registry) Count(roomID int64) int {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return 0
	}
	set := v.(*roomSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.channels)
}

// Rooms returns the number of rooms with at least one open channel.
func (r *Registry) Rooms() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll closes every channel, used on shutdown.
func (r *Registry) CloseAll() int {
	var all []*Channel
	r.rooms.Range(func(key, v any) bool {
		set := v.(*roomSet)
		set.mu.Lock()
		for _, ch := range set.channels {
			all = append(all, ch)
		}
		clear(set.channels)
		if !set.removed {
			set.removed = true
			r.rooms.CompareAndDelete(key, set)
			r.observer.RoomPruned()
		}
		set.mu.Unlock()
		return true
	})

	for _, ch := range all {
		if ch.terminate() {
			r.observer.ChannelClosed()
		}
	}

	slog.Info("Closed all channels", "channels", len(all))
	return len(all)
}

// channels copies the current channel set of roomID.
func (r *Registry) channels(roomID int64) []*Channel {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil
	}
	set := v.(*roomSet)

	set.mu.Lock()
	defer set.mu.Unlock()

	out := make([]*Channel, 0, len(set.channels))
	for _, ch := range set.channels {
		out = append(out, ch)
	}
	return out
}
