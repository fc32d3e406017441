package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/instance"
	goredis "github.com/redis/go-redis/v9"
)

// RoomChangedTopic is the Pub/Sub channel shared by all instances.
const RoomChangedTopic = "stampsys:room-changed"

var errMalformedMessage = errors.New("malformed relay message")

// RelayMessage announces that a room changed. It carries no snapshot; receivers
// always recompute from storage.
type RelayMessage struct {
	OriginInstanceID string `json:"originInstanceId"`
	RoomID           int64  `json:"roomId"`
}

func encodeRelayMessage(origin instance.ID, roomID int64) ([]byte, error) {
	return json.Marshal(RelayMessage{OriginInstanceID: origin.String(), RoomID: roomID})
}

// decodeRelayMessage parses payload. Unknown fields are ignored; both known fields are required.
func decodeRelayMessage(payload string) (RelayMessage, error) {
	var raw struct {
		OriginInstanceID *string `json:"originInstanceId"`
		RoomID           *int64  `json:"roomId"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return RelayMessage{}, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if raw.OriginInstanceID == nil || *raw.OriginInstanceID == "" {
		return RelayMessage{}, fmt.Errorf("%w: missing originInstanceId", errMalformedMessage)
	}
	if raw.RoomID == nil {
		return RelayMessage{}, fmt.Errorf("%w: missing roomId", errMalformedMessage)
	}
	return RelayMessage{OriginInstanceID: *raw.OriginInstanceID, RoomID: *raw.RoomID}, nil
}

// Relay publishes room change notifications on behalf of this instance.
type Relay struct {
	rdb     *goredis.Client
	origin  instance.ID
	timeout time.Duration
	metrics *metrics.RelayMetrics
}

var _ domain.RelayPublisher = (*Relay)(nil)

func NewRelay(rdb *goredis.Client, origin instance.ID, timeout time.Duration, m *metrics.RelayMetrics) *Relay {
	return &Relay{rdb: rdb, origin: origin, timeout: timeout, metrics: m}
}

// Publish announces roomID to peer instances, bounded by the relay timeout.
func (r *Relay) Publish(ctx context.Context, roomID int64) error {
	data, err := encodeRelayMessage(r.origin, roomID)
	if err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	receivers, err := r.rdb.Publish(ctx, RoomChangedTopic, data).Result()
	if err != nil {
		r.metrics.Published.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish room change: %w", err)
	}

	r.metrics.Published.WithLabelValues("ok").Inc()
	slog.DebugContext(ctx, "Room change relayed", "room_id", roomID, "receivers", receivers)
	return nil
}
