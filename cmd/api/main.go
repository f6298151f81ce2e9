package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/apiwatcher/internal/cache"
	"github.com/hamed0406/apiwatcher/internal/config"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/history"
	"github.com/hamed0406/apiwatcher/internal/httpapi"
	apimw "github.com/hamed0406/apiwatcher/internal/httpapi/middleware"
	"github.com/hamed0406/apiwatcher/internal/logging"
	"github.com/hamed0406/apiwatcher/internal/metrics"
	"github.com/hamed0406/apiwatcher/internal/monitoring"
	"github.com/hamed0406/apiwatcher/internal/probe"
	"github.com/hamed0406/apiwatcher/internal/repo"
	"github.com/hamed0406/apiwatcher/internal/repo/memory"
	"github.com/hamed0406/apiwatcher/internal/repo/postgres"
	"github.com/hamed0406/apiwatcher/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// components holds everything run needs to start, plus what must be closed.
type components struct {
	registry   repo.RegistryStore
	history    repo.HistoryStore
	backend    cache.Backend
	publisher  events.Publisher
	subscriber events.Subscriber
	closers    []func() error
}

func (c *components) close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	return err
}

// build picks the postgres, redis and kafka adapters when configured and
// the in-process ones otherwise.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger, m metrics.Collector, topics events.Topics) (*components, error) {
	c := &components{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, 10, logger)
		if err != nil {
			return c, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return c, err
		}
		c.closers = append(c.closers, sqlDB.Close)
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return c, err
		}
		c.registry = postgres.NewRegistryStore(db)

		pool, err := postgres.OpenPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return c, err
		}
		hs := postgres.NewHistoryStore(pool, logger)
		c.closers = append(c.closers, func() error { hs.Close(); return nil })
		c.history = hs
		logger.Info("storage_postgres")
	} else {
		c.registry = memory.NewRegistry()
		c.history = memory.NewHistory()
		logger.Warn("storage_memory", zap.String("reason", "DATABASE_URL not set"))
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return c, err
		}
		c.closers = append(c.closers, client.Close)
		c.backend = cache.NewRedisBackend(client)
		logger.Info("cache_redis")
	} else {
		c.backend = cache.NewMemoryBackend()
		logger.Info("cache_memory")
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, topics, logger, m)
		if err != nil {
			return c, err
		}
		c.closers = append(c.closers, pub.Close)
		sub, err := events.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.KafkaGroupID, topics.All(), cfg.ConsumerConcurrency, logger)
		if err != nil {
			return c, err
		}
		c.publisher, c.subscriber = pub, sub
		logger.Info("events_kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.Strings("topics", topics.All()))
	} else {
		bus := events.NewMemoryBus(topics, 1024, cfg.ConsumerConcurrency, logger, m)
		c.publisher, c.subscriber = bus, bus
		logger.Warn("events_memory", zap.String("reason", "KAFKA_BROKERS not set"))
	}
	return c, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	m := metrics.NewPrometheusCollector()
	topics := events.Topics{
		HealthCheck:  cfg.TopicHealthCheck,
		Registration: cfg.TopicAPIRegistered,
		Fallback:     cfg.TopicFallback,
	}

	c, err := build(ctx, cfg, logger, m, topics)
	defer func() { err = multierr.Append(err, c.close()) }()
	if err != nil {
		return err
	}

	registry := cache.NewRegistry(c.registry, c.backend, cache.TTLs{
		Active: cfg.CacheTTLActive,
		ByID:   cfg.CacheTTLByID,
		All:    cfg.CacheTTLAll,
	}, logger, m)

	checker := probe.NewHTTPChecker(cfg.ProbeTimeout)
	checker.HonorMethod = cfg.ProbeHonorMethod
	checker.DNSDiagnostics = cfg.ProbeDNSDiagnostics

	health := monitoring.NewHealthChecker(logger, registry, checker, c.publisher, m, cfg.ProbeTimeout, cfg.ProbeConcurrency)
	registrar := monitoring.NewRegistrar(logger, registry, checker, c.publisher, cfg.ProbeTimeout)
	registrar.HonorMethod = cfg.ProbeHonorMethod
	consumer := history.NewConsumer(c.history, topics, logger, m)
	sched := scheduler.New(logger, health, cfg.CheckInterval, cfg.CheckInitialDelay)

	api := httpapi.NewServer(logger, registry, registrar, health, c.history, m)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.subscriber.Run(gctx, consumer.HandleMessage)
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("api_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
