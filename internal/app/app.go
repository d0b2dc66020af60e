package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/config"
	"github.com/kirinyoku/salonq/internal/postgres"
	"github.com/kirinyoku/salonq/internal/realtime"
	"github.com/kirinyoku/salonq/internal/redis"
	postgresrepo "github.com/kirinyoku/salonq/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service"
	"github.com/kirinyoku/salonq/internal/service/query"
	"github.com/kirinyoku/salonq/internal/service/queue"
	"github.com/kirinyoku/salonq/internal/telemetry"
	httpgin "github.com/kirinyoku/salonq/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "salonq"

// relayRetryDelay is how long the relay waits before resubscribing after
// the pub/sub connection fails.
const relayRetryDelay = time.Second

type Options struct {
	// Migrate applies the embedded schema before serving.
	Migrate bool
}

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server

	pool      *pgxpool.Pool
	rdb       *goredis.Client
	pubsub    *redisrepo.RoomPubSub
	hub       *realtime.Hub
	telemetry func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize dependencies
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if opts.Migrate {
		if err := postgres.Migrate(ctx, pgxPool); err != nil {
			pgxPool.Close()
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("schema migrated")
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		pgxPool.Close()
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewRoomPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb,
		redisrepo.PrefixRateLimit("join"),
		cfg.Queue.JoinRateLimit,
		cfg.Queue.JoinRateWindow,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Queue.IdempotencyTTL)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, logger, service.Config{
		Queue: queue.Config{
			MaxExtendMinutes: cfg.Queue.MaxExtendMinutes,
		},
		Query: query.Config{
			Location:     cfg.Queue.Location,
			SalonListTTL: cfg.Queue.SalonListTTL,
		},
	})

	hub := realtime.NewHub(logger, realtime.Options{
		SendBuffer:   cfg.WS.SendBuffer,
		PingInterval: cfg.WS.PingInterval,
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, httpgin.Deps{
		Idempotency: idempotencyStore,
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret),
		Hub:         hub,
		Logger:      logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           otelhttp.NewHandler(router, serviceName),
			ReadHeaderTimeout: 10 * time.Second,
		},
		pool:      pgxPool,
		rdb:       rdb,
		pubsub:    pubsub,
		hub:       hub,
		telemetry: shutdownTracing,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Relay room events from every instance to local websocket clients
	g.Go(func() error {
		a.relay(gCtx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.httpServer.Shutdown(ctx)
		a.hub.Close()
		return err
	})

	return g.Wait()
}

func (a *App) relay(ctx context.Context) {
	for {
		err := a.pubsub.Subscribe(ctx, func() {
			a.logger.Info("room relay subscribed")
		}, a.hub.Deliver)
		if ctx.Err() != nil {
			return
		}

		a.logger.Error("room relay stopped", slog.Any("error", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}

func (a *App) close() {
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("failed to close redis", slog.Any("error", err))
	}

	a.pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.telemetry(ctx); err != nil {
		a.logger.Warn("failed to flush traces", slog.Any("error", err))
	}
}
