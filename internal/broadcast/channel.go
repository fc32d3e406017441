package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kawayt/stampsys-back-sub000/internal/domain"
)

const (
	EventSummary = "summary"

	outboxSize = 16
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrSlowConsumer  = errors.New("channel outbox full")
)

// Event is one named, pre-encoded message for a channel.
type Event struct {
	Name string
	Data []byte
}

// NewSummaryEvent encodes a snapshot as a summary event.
func NewSummaryEvent(snapshot domain.Snapshot) (Event, error) {
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return Event{Name: EventSummary, Data: data}, nil
}

// Channel is one live push connection for a room.
type Channel struct {
	id       string
	roomID   int64
	registry *Registry
	events   chan Event

	mu     sync.Mutex
	closed bool
}

func (c *Channel) ID() string    { return c.id }
func (c *Channel) RoomID() int64 { return c.roomID }

// Events is closed once the channel reaches its terminal state.
func (c *Channel) Events() <-chan Event { return c.events }

// Closed reports whether the channel reached its terminal state.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close removes the channel from its registry and closes it. Safe to call repeatedly.
func (c *Channel) Close() {
	c.registry.Unregister(c.roomID, c)
}

// send offers ev without blocking.
func (c *Channel) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	select {
	case c.events <- ev:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// terminate moves the channel to CLOSED. It reports whether this call did the transition.
func (c *Channel) terminate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.events)
	return true
}
