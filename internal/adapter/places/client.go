// Package places talks to the places Nearby Search provider.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
)

// Provider status values that carry a usable page.
const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// Client implements domain.PlacesSearcher using the Places Nearby Search API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a places search client.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// SearchPage fetches one page of nearby venues. Transport errors and
// non-200 responses wrap domain.ErrNetworkFailure; undecodable payloads and
// provider error statuses wrap domain.ErrMalformedResponse.
func (c *Client) SearchPage(ctx context.Context, q domain.PageQuery) (domain.Page, error) {
	params := url.Values{
		"location": {fmt.Sprintf("%.6f,%.6f", q.Center.Latitude, q.Center.Longitude)},
		"radius":   {strconv.Itoa(q.RadiusMeters)},
		"key":      {c.apiKey},
	}
	if q.PlaceType != "" {
		params.Set("type", q.PlaceType)
	}
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}
	if q.PageToken != "" {
		params.Set("pagetoken", q.PageToken)
	}

	start := time.Now()
	page, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.PlacesAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PlacesRequests.WithLabelValues("error").Inc()
		return domain.Page{}, err
	}
	c.metrics.PlacesRequests.WithLabelValues("success").Inc()
	c.logger.Debug("places page fetched",
		"results", len(page.Venues),
		"has_next", page.NextPageToken != "",
		"paged", q.PageToken != "",
	)
	return page, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: places request: %w", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Page{}, fmt.Errorf("%w: places API status %d: %s", domain.ErrNetworkFailure, resp.StatusCode, body)
	}

	var placesResp response
	if err := json.NewDecoder(resp.Body).Decode(&placesResp); err != nil {
		return domain.Page{}, fmt.Errorf("%w: decode response: %w", domain.ErrMalformedResponse, err)
	}

	switch placesResp.Status {
	case statusOK, statusZeroResults, "":
	default:
		return domain.Page{}, fmt.Errorf("%w: provider status %s: %s",
			domain.ErrMalformedResponse, placesResp.Status, placesResp.ErrorMessage)
	}

	page := domain.Page{
		Venues:        make([]domain.VenuePlace, 0, len(placesResp.Results)),
		NextPageToken: placesResp.NextPageToken,
	}
	for _, r := range placesResp.Results {
		page.Venues = append(page.Venues, r.toVenue())
	}
	return page, nil
}

// Places API response types.

type response struct {
	Results       []result `json:"results"`
	NextPageToken string   `json:"next_page_token"`
	Status        string   `json:"status"`
	ErrorMessage  string   `json:"error_message"`
}

type result struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Rating   *float64 `json:"rating"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func (r result) toVenue() domain.VenuePlace {
	return domain.VenuePlace{
		PlaceID: r.PlaceID,
		Name:    r.Name,
		Address: r.Vicinity,
		Coordinates: domain.GeoCoordinates{
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		},
		Rating: r.Rating,
	}
}
