package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/clock"
	"github.com/example/delivery-dispatch/internal/config"
	"github.com/example/delivery-dispatch/internal/delivery"
	"github.com/example/delivery-dispatch/internal/dispatch"
	"github.com/example/delivery-dispatch/internal/geo"
	httpapi "github.com/example/delivery-dispatch/internal/http"
	"github.com/example/delivery-dispatch/internal/ingest"
	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/notify"
	"github.com/example/delivery-dispatch/internal/restaurants"
	"github.com/example/delivery-dispatch/internal/stats"
	"github.com/example/delivery-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) error {
	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rc.Close() }()
	}

	backend, closeBackend, err := openBackend(cfg, rc)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := stats.Open(ctx, backend, stats.Options{
		Clock:  clock.Real{},
		Logger: logger.Named("stats"),
		OnRecover: func(err error) {
			logger.Warn("stats document replaced with fresh state", zap.String("backend", cfg.StoreBackend), zap.Error(err))
		},
	})

	provider, err := geoProvider(cfg, logger.Named("geo"))
	if err != nil {
		return err
	}
	resolver := geo.NewResolver(provider, geo.NewRouteCache(cfg.RouteCacheTTL, clock.Real{}), logger.Named("geo"))

	var locator geo.Locator = geo.NewIndex()
	if rc != nil {
		locator = geo.NewRedisLocator(rc, cfg.RedisGeoKey)
	}

	var events ingest.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaLocationTopic, cfg.KafkaOrderTopic)
		defer func() { _ = producer.Close() }()
		events = producer
	}

	notifier := notify.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.PlatformName, logger.Named("notify"))
	if !notifier.Enabled() {
		logger.Warn("twilio credentials missing, customer SMS disabled")
	}

	wsReg := dispatch.NewWSRegistry(logger.Named("dispatch"))
	catalog := restaurants.Default()
	svc := &delivery.Service{
		Store:            store,
		Catalog:          catalog,
		Trips:            resolver,
		Notifier:         notifier,
		Locator:          locator,
		Dispatch:         wsReg,
		Events:           events,
		Clock:            clock.Real{},
		Log:              logger.Named("delivery"),
		SubscriptionDays: cfg.SubscriptionDays,
		DeliveryRadiusKm: cfg.DeliveryRadiusKm,
		OfferTopN:        cfg.OfferTopN,
	}

	api := httpapi.NewServer(httpapi.Deps{
		Delivery:    svc,
		Store:       store,
		Catalog:     catalog,
		Locator:     locator,
		WSReg:       wsReg,
		MapboxToken: cfg.MapboxToken,
		Logger:      logger.Named("http"),
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("delivery-dispatch listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreBackend),
			zap.String("geo", cfg.GeoProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(cfg config.ServerConfig, rc *redis.Client) (storage.Backend, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendFile:
		return storage.NewFileBackend(cfg.DBFile), noop, nil
	case config.BackendPostgres:
		pg, err := storage.NewPostgresBackend(cfg.PGDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres backend: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.BackendRedis:
		if rc == nil {
			return nil, noop, errors.New("redis backend requires REDIS_ADDR")
		}
		return storage.NewRedisBackend(rc, cfg.RedisStateKey), noop, nil
	case config.BackendMemory:
		return storage.NewMemoryBackend(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// geoProvider returns nil for GEO_PROVIDER=none; the resolver then answers
// every trip from the straight-line estimate.
func geoProvider(cfg config.ServerConfig, logger *zap.Logger) (geo.Provider, error) {
	switch cfg.GeoProvider {
	case config.GeoMapbox:
		return geo.NewMapboxProvider(cfg.MapboxToken, cfg.GeoRatePerSec, logger), nil
	case config.GeoGoogle:
		p, err := geo.NewGoogleProvider(cfg.GoogleMapsKey, cfg.GeoRatePerSec, logger)
		if err != nil {
			return nil, fmt.Errorf("google maps client: %w", err)
		}
		return p, nil
	case config.GeoOSRM:
		return geo.NewOSRMProvider(cfg.OSRMURL, cfg.GeoRatePerSec, logger), nil
	default:
		logger.Warn("no geo provider configured, using straight-line estimates")
		return nil, nil
	}
}
