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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/fairtix/internal/config"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/metrics"
	"github.com/kirinyoku/fairtix/internal/notify"
	"github.com/kirinyoku/fairtix/internal/postgres"
	redisx "github.com/kirinyoku/fairtix/internal/redis"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/fairtix/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/service"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/service/emergency"
	"github.com/kirinyoku/fairtix/internal/service/lottery"
	"github.com/kirinyoku/fairtix/internal/service/query"
	"github.com/kirinyoku/fairtix/internal/service/tickets"
	"github.com/kirinyoku/fairtix/internal/signature"
	httpgin "github.com/kirinyoku/fairtix/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	pubsub     *redisx.NotificationsPubSub
	closers    []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var (
		rdb     *redis.Client
		cache   *redisrepo.Cache
		idem    *redisrepo.IdempotencyStore
		limiter tickets.Limiter
	)
	if cfg.Redis.Enabled() {
		rdb, err = redisx.New(ctx, redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		cache = redisrepo.New(rdb)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Tickets.IdempotencyTTL)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, redisx.KeyRateLimit("purchase"), cfg.Tickets.RateLimit, cfg.Tickets.RateWindow)
		a.pubsub = redisx.NewNotificationsPubSub(rdb)
	} else {
		logger.Info("redis disabled: running without cache, rate limit and idempotency keys")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	var publisher notify.Publisher = notify.Fanout{rec, notify.Log{Logger: logger}}
	if a.pubsub != nil {
		publisher = notify.Fanout{a.pubsub, rec, notify.Log{Logger: logger}}
	}

	services := service.NewServices(common.Deps{
		Store:     store,
		Cache:     cache,
		Publisher: publisher,
		Logger:    logger,
	}, signature.Ed25519Verifier{}, limiter, lottery.CryptoEntropy{}, service.Config{
		Tickets: tickets.Config{PurchaseLimit: cfg.Tickets.PurchaseLimit},
		Query:   query.Config{EventSummaryTTL: cfg.Tickets.EventSummaryTTL},
	})

	if err := services.Emergency.Bootstrap(ctx, emergency.BootstrapParams{
		Owner:        cfg.Bootstrap.Admin,
		FeeRecipient: cfg.Bootstrap.FeeRecipient,
		RefundFeeBps: cfg.Bootstrap.RefundFeeBps,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to bootstrap system: %w", err)
	}

	router := httpgin.NewRouter(services, idem, httpgin.Authenticator{
		Verifier: signature.Ed25519Verifier{},
		MaxSkew:  cfg.Server.SignatureMaxSkew,
	}, httpgin.Observability{
		Recorder: rec,
		Gatherer: reg,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		store, err := OpenPostgres(ctx, a.cfg.Postgres, a.cfg.Store.LockTimeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		a.logger.Warn("using in-memory store: state is lost on restart")
		return memory.NewStore(memory.WithLockTimeout(a.cfg.Store.LockTimeout)), nil
	}
}

// OpenPostgres connects to the authoritative store.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, lockTimeout time.Duration) (*postgresrepo.Store, error) {
	pool, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DSN(),
		MaxConns:        cfg.MaxConns,
		ConnectAttempts: cfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	return postgresrepo.NewStore(pool, lockTimeout), nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Cross-instance notification feed
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(_ context.Context, n domain.Notification) {
				a.logger.Debug("notification received", "type", n.Type, "ticket_id", n.TicketID, "event_id", n.EventID)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("notification subscriber: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
