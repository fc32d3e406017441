package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/correlation"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/workerpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	originLocal   = "local"
	originRelayed = "relayed"
)

var tracer = otel.Tracer("github.com/kawayt/stampsys-back-sub000/internal/app")

// Submitter hands work to a bounded background pool.
type Submitter interface {
	Submit(task workerpool.Task) error
}

// BroadcastService recomputes a room's snapshot and fans it out. It never
// returns errors: a failed trigger is logged and counted, and later triggers
// or a client pull recover the state.
type BroadcastService struct {
	aggregator       domain.Aggregator
	broadcaster      domain.Broadcaster
	publisher        domain.RelayPublisher
	publishPool      Submitter
	metrics          *metrics.BroadcastMetrics
	clock            clockwork.Clock
	aggregateTimeout time.Duration
}

var _ domain.RelayHandler = (*BroadcastService)(nil)

// NewBroadcastService wires the service. publisher is nil when the relay is disabled.
// publishPool runs relay publishes; it must not be the pool that runs local triggers,
// or a slow relay holds up local fan-out.
func NewBroadcastService(aggregator domain.Aggregator, broadcaster domain.Broadcaster, publisher domain.RelayPublisher, publishPool Submitter, m *metrics.BroadcastMetrics, clock clockwork.Clock, aggregateTimeout time.Duration) *BroadcastService {
	return &BroadcastService{
		aggregator:       aggregator,
		broadcaster:      broadcaster,
		publisher:        publisher,
		publishPool:      publishPool,
		metrics:          m,
		clock:            clock,
		aggregateTimeout: aggregateTimeout,
	}
}

// OnRoomChanged handles a change made on this instance: peers are notified in the
// background while the snapshot is recomputed and pushed locally.
func (s *BroadcastService) OnRoomChanged(ctx context.Context, roomID int64) {
	ctx, span := tracer.Start(ctx, "BroadcastService.OnRoomChanged", trace.WithAttributes(
		attribute.Int64("room.id", roomID),
		attribute.String("trigger.origin", originLocal),
	))
	defer span.End()

	s.publishAsync(ctx, roomID)
	s.refresh(ctx, span, roomID, originLocal)
}

// OnRelayedRoomChanged handles a change announced by a peer. It never publishes.
func (s *BroadcastService) OnRelayedRoomChanged(ctx context.Context, roomID int64) {
	ctx, span := tracer.Start(ctx, "BroadcastService.OnRelayedRoomChanged", trace.WithAttributes(
		attribute.Int64("room.id", roomID),
		attribute.String("trigger.origin", originRelayed),
	))
	defer span.End()

	s.refresh(ctx, span, roomID, originRelayed)
}

func (s *BroadcastService) publishAsync(ctx context.Context, roomID int64) {
	if s.publisher == nil {
		return
	}

	corrID, _ := correlation.ID(ctx)
	spanCtx := trace.SpanContextFromContext(ctx)

	err := s.publishPool.Submit(func(taskCtx context.Context) {
		taskCtx = trace.ContextWithSpanContext(taskCtx, spanCtx)
		if corrID != "" {
			taskCtx = correlation.WithID(taskCtx, corrID)
		}
		if err := s.publisher.Publish(taskCtx, roomID); err != nil {
			slog.WarnContext(taskCtx, "Relay publish failed, peers miss this change", "room_id", roomID, "error", err)
		}
	})
	if err != nil {
		slog.WarnContext(ctx, "Relay publish dropped", "room_id", roomID, "error", err)
	}
}

func (s *BroadcastService) refresh(ctx context.Context, span trace.Span, roomID int64, origin string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Broadcast trigger panic recovered", "room_id", roomID, "origin", origin, "panic", r)
			span.SetStatus(codes.Error, "panic")
			s.metrics.Trigger(origin, "panic")
		}
	}()

	aggCtx := ctx
	if s.aggregateTimeout > 0 {
		var cancel context.CancelFunc
		aggCtx, cancel = context.WithTimeout(ctx, s.aggregateTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	snapshot, err := s.aggregator.Summary(aggCtx, roomID)
	s.metrics.AggregateDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		s.metrics.Trigger(origin, "aggregate_error")
		slog.ErrorContext(ctx, "Snapshot recompute failed, broadcast skipped", "room_id", roomID, "origin", origin, "error", err)
		return
	}

	delivered := s.broadcaster.Broadcast(roomID, snapshot)
	span.SetAttributes(attribute.Int("broadcast.delivered", delivered))
	s.metrics.Trigger(origin, "ok")
	slog.DebugContext(ctx, "Room snapshot broadcast", "room_id", roomID, "origin", origin, "delivered", delivered)
}
