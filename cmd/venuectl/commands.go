package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "github.com/couchcryptid/poolpocket-venues/internal/adapter/kafka"
	"github.com/couchcryptid/poolpocket-venues/internal/adapter/places"
	redisadapter "github.com/couchcryptid/poolpocket-venues/internal/adapter/redis"
	"github.com/couchcryptid/poolpocket-venues/internal/config"
	"github.com/couchcryptid/poolpocket-venues/internal/discovery"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/couchcryptid/poolpocket-venues/internal/position"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

type discoverOptions struct {
	lat, lng  float64
	radius    int
	keyword   string
	placesURL string
}

type discoverOutput struct {
	Venues  []domain.VenuePlace `json:"venues"`
	Pages   int                 `json:"pages"`
	Partial bool                `json:"partial"`
	Error   string              `json:"error,omitempty"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "venuectl",
		Short:         "Discover pool venues and inspect favorites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDiscoverCmd(), newFavoritesCmd(), newEventsCmd())
	return root
}

func newDiscoverCmd() *cobra.Command {
	var opts discoverOptions
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run paginated venue discovery around a point",
		Long: `Query the places provider around --lat/--lng, following pagination tokens,
and print the deduplicated venues as JSON. A failing page stops pagination and
the output is flagged "partial".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Center latitude")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "Center longitude")
	cmd.Flags().IntVarP(&opts.radius, "radius", "r", 0, "Search radius in meters (default DISCOVERY_RADIUS_METERS)")
	cmd.Flags().StringVarP(&opts.keyword, "keyword", "k", "", "Search keyword (default DISCOVERY_KEYWORD)")
	cmd.Flags().StringVar(&opts.placesURL, "places-url", "", "Override PLACES_BASE_URL")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func runDiscover(ctx context.Context, stdout, stderr io.Writer, opts discoverOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	requested := domain.GeoCoordinates{Latitude: opts.lat, Longitude: opts.lng}
	center, err := position.NewProvider(position.Granted(), position.Fixed(requested), logger).Acquire(ctx)
	if err != nil {
		return err
	}
	if opts.radius <= 0 {
		opts.radius = cfg.DiscoveryRadiusMeters
	}
	if opts.keyword == "" {
		opts.keyword = cfg.DiscoveryKeyword
	}
	if opts.placesURL != "" {
		cfg.PlacesBaseURL = opts.placesURL
	}

	metrics := observability.NewUnregisteredMetrics()
	client := places.NewClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.PlacesTimeout, metrics, logger)
	svc := discovery.New(client, clockwork.NewRealClock(), logger, metrics,
		discovery.WithPageDelay(cfg.DiscoveryPageDelay),
		discovery.WithPlaceType(cfg.DiscoveryPlaceType),
	)

	res := svc.Discover(ctx, discovery.Query{Center: center, RadiusMeters: opts.radius, Keyword: opts.keyword})
	out := discoverOutput{Venues: res.Venues, Pages: res.Pages, Partial: res.Partial}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newFavoritesCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Inspect a user's favorites in the Redis store",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User id")
	_ = cmd.MarkPersistentFlagRequired("user")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the user's favorites in insertion order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRedisStore(cmd.Context(), func(store *redisadapter.FavoritesStore) error {
				entries, err := store.List(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}

	var entryID string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Delete one favorite by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRedisStore(cmd.Context(), func(store *redisadapter.FavoritesStore) error {
				removed, err := store.Remove(cmd.Context(), userID, entryID)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.ErrOrStderr(), "favorite %s not found\n", entryID)
				}
				return nil
			})
		},
	}
	remove.Flags().StringVar(&entryID, "id", "", "Favorite id")
	_ = remove.MarkFlagRequired("id")

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print every favorites snapshot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withRedisStore(ctx, func(store *redisadapter.FavoritesStore) error {
				out := cmd.OutOrStdout()
				unsubscribe, err := store.Subscribe(ctx, userID, func(entries []domain.FavoriteEntry) {
					_ = printJSON(out, entries)
				})
				if err != nil {
					return err
				}
				defer unsubscribe()
				<-ctx.Done()
				return nil
			})
		},
	}

	cmd.AddCommand(list, remove, watch)
	return cmd
}

func withRedisStore(ctx context.Context, fn func(*redisadapter.FavoritesStore) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	return fn(redisadapter.NewFavoritesStore(rdb, slog.New(slog.NewTextHandler(os.Stderr, nil))))
}

func newEventsCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail favorite change events from Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			reader := kafkaadapter.NewEventReader(cfg.KafkaBrokers, cfg.KafkaFavoritesTopic, group, logger)
			defer reader.Close()

			return tailEvents(ctx, reader, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Consumer group id (empty reads from the beginning without committing)")
	return cmd
}

const (
	readBackoffMin = 200 * time.Millisecond
	readBackoffMax = 5 * time.Second
)

type eventSource interface {
	ReadEvent(ctx context.Context) (domain.FavoriteEvent, error)
}

// tailEvents prints events until ctx is cancelled. Broker errors are retried
// with capped exponential backoff.
func tailEvents(ctx context.Context, src eventSource, out io.Writer, logger *slog.Logger) error {
	backoff := readBackoffMin
	for {
		event, err := src.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("read event failed, retrying", "error", err, "backoff", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, readBackoffMax)
			continue
		}
		backoff = readBackoffMin
		if err := printJSON(out, event); err != nil {
			return err
		}
	}
}

func printJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
