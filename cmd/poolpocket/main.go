package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/poolpocket-venues/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/poolpocket-venues/internal/adapter/kafka"
	"github.com/couchcryptid/poolpocket-venues/internal/adapter/places"
	redisadapter "github.com/couchcryptid/poolpocket-venues/internal/adapter/redis"
	"github.com/couchcryptid/poolpocket-venues/internal/config"
	"github.com/couchcryptid/poolpocket-venues/internal/discovery"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/favorites"
	"github.com/couchcryptid/poolpocket-venues/internal/identity"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PlacesAPIKey == "" {
		logger.Warn("PLACES_API_KEY is empty; venue discovery will fail")
	}
	client := places.NewClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.PlacesTimeout, metrics, logger)
	searcher := places.NewCachedSearcher(client, cfg.PlacesCacheSize, cfg.PlacesCacheTTL, metrics)
	svc := discovery.New(searcher, clock, logger, metrics,
		discovery.WithPageDelay(cfg.DiscoveryPageDelay),
		discovery.WithPlaceType(cfg.DiscoveryPlaceType),
	)

	// Favorites backend (FAVORITES_BACKEND), optionally publishing change
	// events to Kafka (KAFKA_ENABLED).
	var store domain.FavoritesStore
	var checks []sharedobs.ReadinessChecker
	var closers []func() error
	switch cfg.FavoritesBackend {
	case config.BackendRedis:
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		redisStore := redisadapter.NewFavoritesStore(rdb, logger)
		store = redisStore
		checks = append(checks, redisStore)
		closers = append(closers, rdb.Close)
		logger.Info("favorites backend: redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	default:
		store = favorites.NewMemoryStore()
		logger.Info("favorites backend: memory")
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewEventWriter(cfg, logger)
		store = favorites.NewPublishing(store, writer, clock, logger, metrics)
		closers = append(closers, writer.Close)
		logger.Info("favorite events enabled", "topic", cfg.KafkaFavoritesTopic, "brokers", cfg.KafkaBrokers)
	}
	store = favorites.NewInstrumented(store, logger, metrics)

	api, err := httpadapter.NewAPI(httpadapter.APIConfig{
		Discovery:      svc,
		Favorites:      store,
		Identity:       identity.NewHeaderProvider(),
		DefaultRadius:  cfg.DiscoveryRadiusMeters,
		DefaultKeyword: cfg.DiscoveryKeyword,
	}, logger)
	if err != nil {
		logger.Error("failed to build api", "error", err)
		os.Exit(1)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(checks...), api, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
