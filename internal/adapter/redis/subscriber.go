package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/correlation"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/instance"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/workerpool"
	goredis "github.com/redis/go-redis/v9"
)

// Submitter hands work to a bounded background pool.
type Submitter interface {
	Submit(task workerpool.Task) error
}

// Subscriber listens for room change notifications from peer instances.
type Subscriber struct {
	rdb     *goredis.Client
	local   instance.ID
	handler domain.RelayHandler
	pool    Submitter
	metrics *metrics.RelayMetrics
}

func NewSubscriber(rdb *goredis.Client, local instance.ID, handler domain.RelayHandler, pool Submitter, m *metrics.RelayMetrics) *Subscriber {
	return &Subscriber{rdb: rdb, local: local, handler: handler, pool: pool, metrics: m}
}

// Run blocks until ctx is cancelled. go-redis re-establishes the subscription
// after connection loss, so Redis outages only pause delivery.
func (s *Subscriber) Run(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, RoomChangedTopic)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("Relay subscription not confirmed, will keep retrying", "topic", RoomChangedTopic, "error", err)
	} else {
		slog.Info("Relay subscriber started", "topic", RoomChangedTopic, "instance_id", s.local.String())
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(msg.Payload)
		case <-ctx.Done():
			slog.Info("Relay subscriber stopped")
			return
		}
	}
}

func (s *Subscriber) handleMessage(payload string) {
	msg, err := decodeRelayMessage(payload)
	if err != nil {
		s.metrics.Received.WithLabelValues("malformed").Inc()
		slog.Warn("Dropping malformed relay message", "payload", payload, "error", err)
		return
	}

	if msg.OriginInstanceID == s.local.String() {
		s.metrics.Received.WithLabelValues("echo").Inc()
		return
	}

	roomID := msg.RoomID
	err = s.pool.Submit(func(ctx context.Context) {
		ctx = correlation.Ensure(ctx)
		s.handler.OnRelayedRoomChanged(ctx, roomID)
	})
	if err != nil {
		s.metrics.Received.WithLabelValues("dropped").Inc()
		if errors.Is(err, workerpool.ErrBacklogFull) {
			slog.Warn("Dropping relayed room change, backlog full", "room_id", roomID, "origin_instance_id", msg.OriginInstanceID)
		} else {
			slog.Warn("Dropping relayed room change", "room_id", roomID, "error", err)
		}
		return
	}

	s.metrics.Received.WithLabelValues("dispatched").Inc()
}
