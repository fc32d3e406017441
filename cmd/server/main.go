package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/httpserver"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/postgres"
	"github.com/kawayt/stampsys-back-sub000/internal/adapter/redis"
	"github.com/kawayt/stampsys-back-sub000/internal/app"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/config"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/instance"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/logging"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/retry"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/telemetry"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/version"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

type relayResult struct {
	client      *goredis.Client
	publisher   *redis.Relay
	subscriber  *redis.Subscriber
	// receivePool runs relayed recomputes, publishPool runs outgoing publishes.
	receivePool *workerpool.Pool
	publishPool *workerpool.Pool
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	db, err := retry.Do(ctx, policy, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

// setupRelay wires the Redis relay. Redis being down at startup is not fatal:
// the subscriber keeps retrying and publishes fail fast behind the breaker.
func setupRelay(cfg *config.Config, reg prometheus.Registerer, local instance.ID, handler domain.RelayHandler) relayResult {
	redisMetrics := metrics.NewRedisMetrics(reg)
	client, err := redis.NewClient(cfg.RedisURL,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(redisMetrics),
	)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis not reachable at startup, relay will recover once it is", "error", err)
	}

	relayMetrics := metrics.NewRelayMetrics(reg)
	receivePool := workerpool.New("relay", cfg.BroadcastWorkers, cfg.BroadcastBacklog, metrics.NewPoolMetrics(reg, "relay"))
	publishPool := workerpool.New("relay_publish", cfg.BroadcastWorkers, cfg.BroadcastBacklog, metrics.NewPoolMetrics(reg, "relay_publish"))

	return relayResult{
		client:      client,
		publisher:   redis.NewRelay(client, local, cfg.RelayPublishTimeout, relayMetrics),
		subscriber:  redis.NewSubscriber(client, local, handler, receivePool, relayMetrics),
		receivePool: receivePool,
		publishPool: publishPool,
	}
}

type shutdownDeps struct {
	srv           *httpserver.Server
	registry      *broadcast.Registry
	pools         []*workerpool.Pool
	stopRelay     context.CancelFunc
	stopTelemetry telemetry.ShutdownFunc
}

func runGracefulShutdown(deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		deps.stopRelay()

		// Reject new streams first so none registers after CloseAll.
		deps.srv.BeginShutdown()

		// Open streams only return once their channels are closed.
		closed := deps.registry.CloseAll()
		slog.Info("Closed open streams", "count", closed)

		if err := deps.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		for _, p := range deps.pools {
			if err := p.Stop(shutdownCtx); err != nil {
				slog.Error("Worker pool did not drain", "error", err)
			}
		}

		if err := deps.stopTelemetry(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	instanceID, err := instance.New()
	if err != nil {
		slog.Error("Failed to generate instance id", "error", err)
		os.Exit(1)
	}
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", version.Get().String(),
		"instance_id", instanceID.String(),
		"relay_enabled", cfg.RelayEnabled,
	)

	stopTelemetry, err := telemetry.Init(context.Background(), cfg.ServiceName, version.Version, cfg.OTelEndpoint)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()

	db := setupDB(cfg, reg, clock)
	defer db.Close()

	rooms := postgres.NewRoomRepo(db)
	stamps := postgres.NewStampRepo(db)
	messages := postgres.NewMessageRepo(db)
	summaries := postgres.NewSummaryRepo(db)
	txManager := postgres.NewTxManager(db)

	broadcastMetrics := metrics.NewBroadcastMetrics(reg)
	registry := broadcast.NewRegistry(broadcastMetrics)
	broadcastPool := workerpool.New("broadcast", cfg.BroadcastWorkers, cfg.BroadcastBacklog, metrics.NewPoolMetrics(reg, "broadcast"))
	pools := []*workerpool.Pool{broadcastPool}

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: db.Ping},
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	// The broadcast service and the relay reference each other, so the
	// subscriber handler is bound once the service exists.
	var broadcastSvc *app.BroadcastService
	if cfg.RelayEnabled {
		relay := setupRelay(cfg, reg, instanceID, relayHandlerFunc(func(ctx context.Context, roomID int64) {
			broadcastSvc.OnRelayedRoomChanged(ctx, roomID)
		}))
		defer func() { _ = relay.client.Close() }()

		broadcastSvc = app.NewBroadcastService(summaries, registry, relay.publisher, relay.publishPool, broadcastMetrics, clock, cfg.AggregateTimeout)
		pools = append(pools, relay.receivePool, relay.publishPool)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return relay.client.Ping(ctx).Err() },
		})

		go relay.subscriber.Run(relayCtx)
	} else {
		broadcastSvc = app.NewBroadcastService(summaries, registry, nil, nil, broadcastMetrics, clock, cfg.AggregateTimeout)
	}

	bridge := app.NewCommitBridge(txManager, broadcastSvc, broadcastPool)
	appSvc := app.NewService(rooms, stamps, messages, summaries, txManager, bridge, metrics.NewStampMetrics(reg))

	srv := httpserver.NewServer(cfg, appSvc, registry, reg, instanceID.String(), healthChecks)

	done := runGracefulShutdown(shutdownDeps{
		srv:           srv,
		registry:      registry,
		pools:         pools,
		stopRelay:     stopRelay,
		stopTelemetry: stopTelemetry,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

// relayHandlerFunc adapts a function to domain.RelayHandler.
type relayHandlerFunc func(ctx context.Context, roomID int64)

func (f relayHandlerFunc) OnRelayedRoomChanged(ctx context.Context, roomID int64) {
	f(ctx, roomID)
}
