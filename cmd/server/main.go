package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	donationfeed "feedra/internal/donation/feed"
	donationhandler "feedra/internal/donation/handler"
	donationmetrics "feedra/internal/donation/metrics"
	donationservice "feedra/internal/donation/service"
	donationstore "feedra/internal/donation/store"
	"feedra/internal/events"
	"feedra/internal/events/kafka"
	httpapi "feedra/internal/http"
	"feedra/internal/identity"
	"feedra/internal/notify"
	"feedra/internal/outbound"
	"feedra/internal/platform/config"
	"feedra/internal/platform/firebase"
	"feedra/internal/platform/httpserver"
	"feedra/internal/platform/logger"
	"feedra/internal/platform/metrics"
	"feedra/internal/platform/middleware"
	"feedra/internal/platform/postgres"
	"feedra/internal/platform/ratelimit"
	platformredis "feedra/internal/platform/redis"
	"feedra/internal/prediction"
)

type donationStore interface {
	donationservice.Store
	donationfeed.Source
}

// app holds what main builds and must release on exit.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	firebase *firebase.App
	store    donationStore
	redis    *platformredis.Client
	checks   map[string]httpapi.HealthCheck
	closers  []func()
}

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("feedra exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log, checks: map[string]httpapi.HealthCheck{}}
	defer a.close()

	if cfg.Firestore.ProjectID != "" {
		a.firebase, err = firebase.New(ctx, cfg.Firestore)
		if err != nil {
			return err
		}
	}
	if err := a.openStore(ctx); err != nil {
		return err
	}
	if a.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return err
	}
	if a.redis != nil {
		a.onClose(func() { _ = a.redis.Close() })
		a.checks["redis"] = a.redis.Health
	}
	validator, err := a.tokenValidator(ctx)
	if err != nil {
		return err
	}

	platformMetrics := metrics.New()
	donationMetrics := donationmetrics.New()

	group, ctx := errgroup.WithContext(ctx)

	publisher, err := a.startEvents(ctx, group, platformMetrics)
	if err != nil {
		return err
	}

	service := donationservice.New(a.store,
		donationservice.WithLogger(log),
		donationservice.WithPublisher(publisher),
		donationservice.WithMetrics(donationMetrics),
	)
	feed := donationfeed.New(a.store,
		donationfeed.WithLogger(log),
		donationfeed.WithMetrics(donationMetrics),
	)
	predictor := prediction.New(cfg.Prediction, prediction.WithMetrics(platformMetrics))

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:  log,
		Metrics: platformMetrics,
		Checks:  a.checks,
		Handlers: []httpapi.Registrar{
			donationhandler.New(service, feed, validator, log,
				donationhandler.WithTimeout(cfg.Server.RequestTimeout),
				donationhandler.WithWriteLimiter(a.writeLimiter().Middleware),
			),
			notify.NewHandler(publisher, log),
			outbound.NewHandler(cfg.Support.WhatsAppNumber),
			prediction.NewHandler(predictor, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	group.Go(func() error {
		log.InfoContext(ctx, "starting feedra", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout)
	})

	err = group.Wait()
	feed.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("feedra stopped")
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := a.firebase.Firestore(ctx)
		if err != nil {
			return err
		}
		a.onClose(func() { _ = client.Close() })
		a.store = donationstore.NewFirestore(client)

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, a.cfg.Postgres)
		if err != nil {
			return err
		}
		a.onClose(pool.Close)
		pg := donationstore.NewPostgres(pool, a.cfg.Postgres.URL, donationstore.WithLogger(a.log))
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		a.checks["postgres"] = pool.Ping
		a.store = pg

	default:
		a.log.Warn("using in-memory donation store; data is lost on restart")
		a.store = donationstore.NewInMemory()
	}
	return nil
}

// writeLimiter shares counters through Redis when one is configured.
func (a *app) writeLimiter() *ratelimit.Limiter {
	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	if a.redis != nil {
		store = ratelimit.NewRedisStore(a.redis)
	}
	return ratelimit.NewLimiter(store, a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window, a.log)
}

// tokenValidator prefers Firebase ID tokens and falls back to HS256 dev tokens.
func (a *app) tokenValidator(ctx context.Context) (middleware.TokenValidator, error) {
	if a.firebase == nil || a.cfg.Auth.FirebaseProjectID == "" {
		a.log.Warn("firebase auth not configured, accepting HS256 development tokens")
		return identity.NewJWTService(a.cfg.Auth.JWTSigningKey, "feedra-dev"), nil
	}
	client, err := a.firebase.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return identity.NewFirebaseValidator(client), nil
}

// startEvents wires the notifier behind Kafka when brokers are configured, or
// behind the in-process bus otherwise, and returns the publisher services use.
func (a *app) startEvents(ctx context.Context, group *errgroup.Group, m *metrics.Metrics) (events.Publisher, error) {
	router := events.NewRouter(a.log, nil)

	if a.cfg.EmailJS.Enabled() {
		opts := []notify.Option{notify.WithLogger(a.log)}
		if a.redis != nil {
			opts = append(opts, notify.WithDeduper(notify.NewRedisDeduper(a.redis, a.cfg.Redis.DedupeTTL)))
		}
		sender := notify.NewEmailJSSender(a.cfg.EmailJS, notify.WithSenderMetrics(m))
		notify.New(sender, a.cfg.EmailJS.FromName, opts...).Register(router)
	} else {
		a.log.Warn("EmailJS not configured, notifications disabled")
	}

	if !a.cfg.Kafka.Enabled() {
		bus := events.NewBus(0)
		a.onClose(bus.Close)
		worker := events.NewWorker(router, bus.Inbox(), a.log)
		group.Go(func() error { return worker.Run(ctx) })
		return bus, nil
	}

	kc := a.cfg.Kafka
	if err := kafka.EnsureTopic(ctx, kc.Brokers, kc.Topic, 3, 1); err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(kc.Brokers, kc.Topic)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		producer.Close(flushCtx)
	})
	consumer, err := kafka.NewConsumer(kc.Brokers, kc.GroupID, kc.Topic, router, kafka.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	group.Go(func() error { return consumer.Run(ctx) })
	return producer, nil
}
