package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"approval-ledger/pkg/api"
	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/cache/memory"
	"approval-ledger/pkg/cache/redis"
	"approval-ledger/pkg/chain"
	"approval-ledger/pkg/config"
	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
	promMetrics "approval-ledger/pkg/metrics/prometheus"
	"approval-ledger/pkg/resilience"
	"approval-ledger/pkg/store"
	storemem "approval-ledger/pkg/store/memory"
	"approval-ledger/pkg/store/mongo"
	"approval-ledger/pkg/store/postgres"
	"approval-ledger/pkg/upload"
	"approval-ledger/pkg/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("approval-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *logging.Logger) error {
	logger.Info("Starting approval-api",
		zap.String("store", cfg.Store.Backend),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.String("uploads", cfg.Upload.Backend),
	)

	// Private registry: /metrics serves only what is registered here
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := promMetrics.NewPrometheusCollector("approval_ledger")
	if err := metricsCollector.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var checks []api.Option

	backing, ping, err := openStore(cfg)
	if err != nil {
		return err
	}
	if ping != nil {
		checks = append(checks, api.WithHealthCheck(backing.Name(), ping))
	}
	logger.Info("✓ Record store initialized", zap.String("backend", backing.Name()))

	resilientConfig := resilience.DefaultResilientConfig().WithTimeout(cfg.Store.Timeout)
	resilient := resilience.NewResilientStore(backing, resilientConfig, metricsCollector)
	checks = append(checks, api.WithHealthCheck("circuit", func(ctx context.Context) error {
		if state := resilient.State(); state == metrics.CircuitOpen {
			return fmt.Errorf("circuit %s", state)
		}
		return nil
	}))

	var records store.RecordStore = resilient
	if cfg.Cache.Enabled {
		cached, redisPing, err := openCache(cfg, resilient, metricsCollector)
		if err != nil {
			resilient.Close()
			return err
		}
		if redisPing != nil {
			checks = append(checks, api.WithHealthCheck("redis", redisPing))
		}
		records = cached
		logger.Info("✓ Read cache enabled", zap.String("chain", cached.String()))
	}
	defer func() {
		if err := records.Close(); err != nil {
			logger.Error("Failed to close record store", zap.Error(err))
		}
	}()

	sink, err := openSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	opts := []workflow.Option{
		workflow.WithStrictTransitions(cfg.StrictTransitions),
		workflow.WithMetrics(metricsCollector),
		workflow.WithLogger(logger),
	}
	services := api.Services{
		Transactions: workflow.NewTransactionService(records, opts...),
		Credentials:  workflow.NewCredentialService(records, opts...),
		Balances:     workflow.NewBalanceAccessor(records, opts...),
		Uploads:      sink,
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Address = ":" + cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.CORSOrigins = cfg.HTTP.CORSOrigins

	serverOpts := append([]api.Option{
		api.WithMetrics(metricsCollector),
		api.WithGatherer(registry),
		api.WithLogger(logger),
	}, checks...)
	server := api.NewServer(services, serverConfig, serverOpts...)

	serveErr, err := server.Start()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", serverConfig.Address, err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("✓ Server stopped gracefully")
	return nil
}

// openStore connects the configured backend. The returned probe is nil
// for the in-memory store.
func openStore(cfg config.Config) (store.RecordStore, func(context.Context) error, error) {
	collections := workflow.DefaultCollections()

	switch cfg.Store.Backend {
	case config.StorePostgres:
		pgConfig := postgres.DefaultConfig()
		pgConfig.Host = cfg.Postgres.Host
		pgConfig.Port = cfg.Postgres.Port
		pgConfig.User = cfg.Postgres.User
		pgConfig.Password = cfg.Postgres.Password
		pgConfig.Database = cfg.Postgres.Database
		pgConfig.SSLMode = cfg.Postgres.SSLMode

		s, err := postgres.NewPostgresStore(pgConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		return s, s.Ping, nil

	case config.StoreMongo:
		mongoConfig := mongo.DefaultConfig()
		mongoConfig.URI = cfg.Mongo.URI
		mongoConfig.Database = cfg.Mongo.Database

		s, err := mongo.NewMongoStore(mongoConfig, collections.Transactions, collections.Credentials)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		return s, s.Ping, nil

	default:
		return storemem.NewMemoryStore(), nil, nil
	}
}

// openCache puts the configured cache layers in front of backing.
func openCache(cfg config.Config, backing store.RecordStore, collector metrics.MetricsCollector) (*chain.Chain, func(context.Context) error, error) {
	var (
		layers []cache.CacheLayer
		ping   func(context.Context) error
	)
	closeAll := func() {
		for _, l := range layers {
			l.Close()
		}
	}

	for i, kind := range cfg.Cache.Layers() {
		name := fmt.Sprintf("L%d-%s", i+1, kind)

		switch kind {
		case config.CacheMemory:
			memCache, err := memory.NewMemoryCache(memory.MemoryCacheConfig{
				Name:            name,
				MaxSize:         cfg.Cache.MemoryMaxSize,
				DefaultTTL:      cfg.Cache.TTL,
				CleanupInterval: time.Minute,
			})
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("memory cache: %w", err)
			}
			layers = append(layers, memCache)

		case config.CacheRedis:
			redisConfig := redis.DefaultRedisCacheConfig()
			redisConfig.Name = name
			redisConfig.Addr = cfg.Cache.RedisAddr
			redisConfig.Password = cfg.Cache.RedisPassword
			redisConfig.DefaultTTL = cfg.Cache.TTL
			if redisConfig.MaxTTL < cfg.Cache.TTL {
				redisConfig.MaxTTL = cfg.Cache.TTL
			}

			redisCache, err := redis.NewRedisCache(redisConfig)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("connect to Redis: %w", err)
			}
			layers = append(layers, redisCache)
			ping = redisCache.Ping
		}
	}

	chainConfig := chain.DefaultChainConfig()
	chainConfig.BaseTTL = cfg.Cache.TTL
	chainConfig.Metrics = collector

	c, err := chain.NewWithConfig(backing, chainConfig, layers...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return c, ping, nil
}

func openSink(cfg config.Config) (upload.Sink, error) {
	if cfg.Upload.Backend == config.UploadGCS {
		sink, err := upload.NewGCSSink(context.Background(), upload.GCSConfig{
			Bucket: cfg.Upload.GCSBucket,
			Prefix: cfg.Upload.GCSPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open GCS bucket: %w", err)
		}
		return sink, nil
	}

	sink, err := upload.NewLocalSink(cfg.Upload.Dir)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return sink, nil
}
