// Package discovery aggregates venues from the paginated places search
// provider.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultPageDelay is how long a pagination token must age before the
// provider accepts it.
const DefaultPageDelay = 2 * time.Second

// Query is one discovery request.
type Query struct {
	Center       domain.GeoCoordinates
	RadiusMeters int
	Keyword      string
}

// Result is the outcome of a discovery run. When Partial is set, Venues holds
// the pages completed before Err stopped pagination.
type Result struct {
	Venues  []domain.VenuePlace
	Pages   int
	Partial bool
	Err     error
}

// Option configures a Service.
type Option func(*Service)

// WithPageDelay overrides the wait between pages. Values below
// DefaultPageDelay are raised to it.
func WithPageDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > DefaultPageDelay {
			s.pageDelay = d
		}
	}
}

// WithPlaceType sets the provider place type filter.
func WithPlaceType(t string) Option {
	return func(s *Service) { s.placeType = t }
}

// Service runs paginated venue discovery.
type Service struct {
	searcher  domain.PlacesSearcher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	pageDelay time.Duration
	placeType string
}

// New creates a Service.
func New(searcher domain.PlacesSearcher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		searcher:  searcher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		pageDelay: DefaultPageDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover fetches pages strictly in sequence, waiting the page delay before
// every token, and returns the venues deduplicated by place id. A failed page
// or a cancelled ctx ends pagination; venues from completed pages are kept
// and the result is marked partial.
func (s *Service) Discover(ctx context.Context, q Query) Result {
	start := s.clock.Now()
	agg := newAggregator()
	res := Result{}

	pq := domain.PageQuery{
		Center:       q.Center,
		RadiusMeters: q.RadiusMeters,
		PlaceType:    s.placeType,
		Keyword:      q.Keyword,
	}

	for {
		page, err := s.searcher.SearchPage(ctx, pq)
		if err == nil && ctx.Err() != nil {
			// The page raced with cancellation; the caller has gone away.
			err = ctx.Err()
		}
		if err != nil {
			res.Partial = true
			res.Err = err
			s.logFailure(q, res.Pages, err)
			break
		}

		res.Pages++
		s.metrics.DiscoveryPages.Inc()
		agg.add(page.Venues)

		if page.NextPageToken == "" {
			break
		}
		if err := s.wait(ctx); err != nil {
			res.Partial = true
			res.Err = err
			s.logFailure(q, res.Pages, err)
			break
		}
		pq.PageToken = page.NextPageToken
	}

	res.Venues = agg.venues
	s.record(res, start)
	return res
}

func (s *Service) wait(ctx context.Context) error {
	s.metrics.DiscoveryDelays.Inc()
	timer := s.clock.NewTimer(s.pageDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func (s *Service) logFailure(q Query, pages int, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("discovery cancelled", "completed_pages", pages)
		return
	}
	s.logger.Warn("discovery stopped early, keeping partial results",
		"lat", q.Center.Latitude,
		"lng", q.Center.Longitude,
		"keyword", q.Keyword,
		"completed_pages", pages,
		"error", err,
	)
}

func (s *Service) record(res Result, start time.Time) {
	outcome := "complete"
	if res.Partial {
		outcome = "partial"
	}
	s.metrics.DiscoveryRuns.WithLabelValues(outcome).Inc()
	s.metrics.DiscoveryVenues.Observe(float64(len(res.Venues)))
	s.metrics.DiscoveryDuration.Observe(s.clock.Since(start).Seconds())
}

// aggregator accumulates venues in provider order, keeping the first
// occurrence of each place id.
type aggregator struct {
	seen   map[string]struct{}
	venues []domain.VenuePlace
}

func newAggregator() *aggregator {
	return &aggregator{seen: make(map[string]struct{}), venues: []domain.VenuePlace{}}
}

func (a *aggregator) add(venues []domain.VenuePlace) {
	for _, v := range venues {
		if v.PlaceID == "" {
			continue
		}
		if _, ok := a.seen[v.PlaceID]; ok {
			continue
		}
		a.seen[v.PlaceID] = struct{}{}
		a.venues = append(a.venues, v)
	}
}
