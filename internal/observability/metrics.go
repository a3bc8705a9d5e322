package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "poolpocket"

// Metrics holds the Prometheus counters, histograms, and gauges for venue
// discovery, the places provider, and favorites sync.
type Metrics struct {
	// Discovery metrics.
	DiscoveryRuns     *prometheus.CounterVec // labels: outcome={complete,partial,superseded}
	DiscoveryPages    prometheus.Counter
	DiscoveryDelays   prometheus.Counter
	DiscoveryVenues   prometheus.Histogram
	DiscoveryDuration prometheus.Histogram

	// Places provider metrics.
	PlacesRequests    *prometheus.CounterVec // labels: outcome={success,error}
	PlacesCache       *prometheus.CounterVec // labels: result={hit,miss}
	PlacesAPIDuration prometheus.Histogram

	// Favorites metrics.
	FavoritesWrites      *prometheus.CounterVec // labels: op={add,remove}, outcome={success,error}
	FavoritesSubscribers prometheus.Gauge
	FavoriteEventErrors  prometheus.Counter

	// Map focus metrics.
	FocusRequests *prometheus.CounterVec // labels: outcome={animating,ignored}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DiscoveryRuns,
		m.DiscoveryPages,
		m.DiscoveryDelays,
		m.DiscoveryVenues,
		m.DiscoveryDuration,
		m.PlacesRequests,
		m.PlacesCache,
		m.PlacesAPIDuration,
		m.FavoritesWrites,
		m.FavoritesSubscribers,
		m.FavoriteEventErrors,
		m.FocusRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics for one-shot tools that never serve
// /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DiscoveryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Venue discovery runs by outcome.",
		}, []string{"outcome"}),
		DiscoveryPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_pages_total",
			Help:      "Result pages fetched successfully during discovery.",
		}),
		DiscoveryDelays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_page_delays_total",
			Help:      "Inter-page waits honoured before using a pagination token.",
		}),
		DiscoveryVenues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_venues",
			Help:      "Deduplicated venues returned per discovery run.",
			Buckets:   []float64{0, 5, 10, 20, 40, 60},
		}),
		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Wall time of a complete discovery run including page delays.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10, 15},
		}),
		PlacesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_requests_total",
			Help:      "Places search API requests by outcome.",
		}, []string{"outcome"}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_cache_total",
			Help:      "Places page cache lookups by result.",
		}, []string{"result"}),
		PlacesAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "places_api_duration_seconds",
			Help:      "Places search API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FavoritesWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorites_writes_total",
			Help:      "Favorites writes by operation and outcome.",
		}, []string{"op", "outcome"}),
		FavoritesSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "favorites_subscribers",
			Help:      "Active favorites subscriptions.",
		}),
		FavoriteEventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorite_event_errors_total",
			Help:      "Favorite change events that could not be published.",
		}),
		FocusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_requests_total",
			Help:      "Map focus requests by outcome.",
		}, []string{"outcome"}),
	}
}
