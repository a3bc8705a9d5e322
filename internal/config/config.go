package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MinPageDelay is the shortest wait the places provider accepts between
// issuing a pagination token and honouring it.
const MinPageDelay = 2 * time.Second

// Favorites store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Places search provider.
	PlacesAPIKey    string
	PlacesBaseURL   string
	PlacesTimeout   time.Duration
	PlacesCacheSize int
	PlacesCacheTTL  time.Duration

	// Discovery defaults applied when a request leaves them unset.
	DiscoveryRadiusMeters int
	DiscoveryKeyword      string
	DiscoveryPlaceType    string
	DiscoveryPageDelay    time.Duration

	FavoritesBackend string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Favorite change events.
	KafkaEnabled        bool
	KafkaBrokers        []string
	KafkaFavoritesTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	placesTimeout, err := parseDuration("PLACES_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("PLACES_CACHE_TTL", "2m")
	if err != nil {
		return nil, err
	}
	pageDelay, err := parseDuration("DISCOVERY_PAGE_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	if pageDelay < MinPageDelay {
		return nil, fmt.Errorf("DISCOVERY_PAGE_DELAY must be at least %s", MinPageDelay)
	}
	radius, err := parsePositiveInt("DISCOVERY_RADIUS_METERS", 7500)
	if err != nil {
		return nil, err
	}
	if radius > 50000 {
		return nil, errors.New("DISCOVERY_RADIUS_METERS must be at most 50000")
	}
	cacheSize, err := parsePositiveInt("PLACES_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	brokers := sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092"))
	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PlacesAPIKey:    os.Getenv("PLACES_API_KEY"),
		PlacesBaseURL:   sharedcfg.EnvOrDefault("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place/nearbysearch/json"),
		PlacesTimeout:   placesTimeout,
		PlacesCacheSize: cacheSize,
		PlacesCacheTTL:  cacheTTL,

		DiscoveryRadiusMeters: radius,
		DiscoveryKeyword:      sharedcfg.EnvOrDefault("DISCOVERY_KEYWORD", "billiard"),
		DiscoveryPlaceType:    sharedcfg.EnvOrDefault("DISCOVERY_PLACE_TYPE", "establishment"),
		DiscoveryPageDelay:    pageDelay,

		FavoritesBackend: sharedcfg.EnvOrDefault("FAVORITES_BACKEND", BackendMemory),
		RedisAddr:        sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,

		KafkaEnabled:        kafkaEnabled,
		KafkaBrokers:        brokers,
		KafkaFavoritesTopic: sharedcfg.EnvOrDefault("KAFKA_FAVORITES_TOPIC", "favorite-events"),
	}

	switch cfg.FavoritesBackend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("FAVORITES_BACKEND must be %q or %q", BackendMemory, BackendRedis)
	}
	if cfg.FavoritesBackend == BackendRedis && cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required when FAVORITES_BACKEND is redis")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaFavoritesTopic == "" {
		return nil, errors.New("KAFKA_FAVORITES_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
