package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-bff/internal/resilience"
	"storefront-bff/internal/telemetry"
)

// ErrNoMatch means the geocoder answered but knew no such address.
var ErrNoMatch = errors.New("address not found")

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Cache is the subset of the redis cache client used for geocode results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// HTTPGeocoder queries a Nominatim-compatible /search endpoint.
type HTTPGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	breaker   *resilience.CircuitBreaker
	cache     Cache
	cacheTTL  time.Duration
	attempts  int
	delay     time.Duration
}

type GeocoderOption func(*HTTPGeocoder)

func WithCache(c Cache, ttl time.Duration) GeocoderOption {
	return func(g *HTTPGeocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

func WithRetry(attempts int, delay time.Duration) GeocoderOption {
	return func(g *HTTPGeocoder) {
		g.attempts = attempts
		g.delay = delay
	}
}

func WithHTTPClient(c *http.Client) GeocoderOption {
	return func(g *HTTPGeocoder) { g.client = c }
}

func NewHTTPGeocoder(baseURL string, opts ...GeocoderOption) *HTTPGeocoder {
	g := &HTTPGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "storefront-bff/1.0",
		client:    &http.Client{Timeout: 5 * time.Second, Transport: telemetry.Transport(nil)},
		breaker:   resilience.NewCircuitBreaker("geocoder", 3, 30*time.Second),
		attempts:  2,
		delay:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type cached struct {
	Point Point `json:"point"`
	Found bool  `json:"found"`
}

func cacheKey(address string) string {
	return "geocode:" + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Point{}, ErrNoMatch
	}

	if g.cache != nil {
		if data, err := g.cache.Get(ctx, cacheKey(address)); err == nil {
			var c cached
			if json.Unmarshal(data, &c) == nil {
				if !c.Found {
					return Point{}, ErrNoMatch
				}
				return c.Point, nil
			}
		}
	}

	res, err := resilience.ExecuteContext(ctx, g.breaker, func() (cached, error) {
		var out cached
		err := resilience.Retry(ctx, g.attempts, g.delay, func() error {
			var err error
			out, err = g.lookup(ctx, address)
			return err
		})
		return out, err
	})
	telemetry.RecordBreakerState("geocoder", int(g.breaker.State()))
	if err != nil {
		return Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}

	if g.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			if err := g.cache.Set(ctx, cacheKey(address), data, g.cacheTTL); err != nil {
				slog.Warn("Geocode cache write failed", "error", err)
			}
		}
	}

	if !res.Found {
		return Point{}, ErrNoMatch
	}
	return res.Point, nil
}

// lookup performs one request. An empty result set is a successful lookup
// with Found false, so unknown addresses do not trip the breaker.
func (g *HTTPGeocoder) lookup(ctx context.Context, address string) (cached, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return cached{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return cached{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cached{}, fmt.Errorf("geocoder status: %d", resp.StatusCode)
	}

	var hits []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return cached{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(hits) == 0 {
		return cached{}, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return cached{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return cached{}, fmt.Errorf("parse longitude: %w", err)
	}
	return cached{Point: Point{Lat: lat, Lon: lon}, Found: true}, nil
}
