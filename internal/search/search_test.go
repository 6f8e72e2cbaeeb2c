package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/apperr"
	"storefront-bff/internal/backendstub"
	"storefront-bff/internal/models"
	"storefront-bff/internal/resilience"
	"storefront-bff/internal/tokenstore"
)

var (
	berlin     = Point{Lat: 52.5200, Lon: 13.4050}
	luxembourg = Point{Lat: 49.6116, Lon: 6.1319}
	paris      = Point{Lat: 48.8566, Lon: 2.3522}
)

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(berlin, berlin), 1e-9)
	assert.InDelta(t, 878, Haversine(berlin, paris), 5)
	assert.InDelta(t, Haversine(paris, berlin), Haversine(berlin, paris), 1e-9)
	// Quarter of the equator.
	assert.InDelta(t, 10007.5, Haversine(Point{0, 0}, Point{0, 90}), 1)
	assert.Equal(t, "878.5 km", FormatKm(878.46))
}

func TestPointValid(t *testing.T) {
	assert.True(t, berlin.Valid())
	assert.False(t, Point{Lat: 91}.Valid())
	assert.False(t, Point{Lon: -181}.Valid())
}

type mapGeocoder map[string]Point

func (m mapGeocoder) Geocode(_ context.Context, address string) (Point, error) {
	if p, ok := m[address]; ok {
		return p, nil
	}
	return Point{}, ErrNoMatch
}

func stubSearcher(t *testing.T, geo Geocoder) *Searcher {
	t.Helper()
	srv := httptest.NewServer(backendstub.New(backendstub.Options{}).Handler())
	t.Cleanup(srv.Close)
	api := apiclient.New(srv.URL, tokenstore.NewMemoryStore(tokenstore.Tokens{}))
	return NewSearcher(api, geo)
}

func TestSearch_Products(t *testing.T) {
	s := stubSearcher(t, nil)
	res, err := s.Search(context.Background(), "  show me wireless earbuds ", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IntentProducts, res.Intent)
	assert.Equal(t, "show me wireless earbuds", res.Query)
	require.NotEmpty(t, res.Products)
	assert.Equal(t, "Zen Buds", res.Products[0].Name)
	assert.Empty(t, res.Sellers)
}

func TestSearch_SellersWithDistance(t *testing.T) {
	geo := mapGeocoder{
		"Alexanderplatz 1, Berlin":       berlin,
		"Place Guillaume II, Luxembourg": luxembourg,
	}
	s := stubSearcher(t, geo)

	res, err := s.Search(context.Background(), "gadget stores near me", &paris)
	require.NoError(t, err)
	assert.Equal(t, models.IntentSellers, res.Intent)
	require.Len(t, res.Sellers, 2)
	for _, sd := range res.Sellers {
		require.NotNil(t, sd.Km)
		assert.Equal(t, FormatKm(*sd.Km), sd.Display)
	}
	assert.Less(t, *res.Sellers[1].Km, *res.Sellers[0].Km, "Luxembourg is closer to Paris than Berlin")
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := stubSearcher(t, nil)
	_, err := s.Search(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestEnrich_FallsBackWhenUnknown(t *testing.T) {
	sellers := []models.Seller{
		{ID: "a", Address: "Alexanderplatz 1, Berlin"},
		{ID: "b", Address: "Nowhere 0"},
	}
	geo := mapGeocoder{"Alexanderplatz 1, Berlin": berlin}

	t.Run("no geolocation", func(t *testing.T) {
		out := NewSearcher(nil, geo).Enrich(context.Background(), nil, sellers)
		for _, sd := range out {
			assert.Nil(t, sd.Km)
			assert.Equal(t, CannotCompute, sd.Display)
		}
	})

	t.Run("no geocoder", func(t *testing.T) {
		out := NewSearcher(nil, nil).Enrich(context.Background(), &paris, sellers)
		assert.Equal(t, CannotCompute, out[0].Display)
	})

	t.Run("invalid origin", func(t *testing.T) {
		out := NewSearcher(nil, geo).Enrich(context.Background(), &Point{Lat: 200}, sellers)
		assert.Equal(t, CannotCompute, out[0].Display)
	})

	t.Run("address not geocoded", func(t *testing.T) {
		out := NewSearcher(nil, geo).Enrich(context.Background(), &paris, sellers)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].ID)
		assert.NotEqual(t, CannotCompute, out[0].Display)
		assert.Equal(t, "b", out[1].ID)
		assert.Equal(t, CannotCompute, out[1].Display)
	})
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.data[key]; ok {
		return d, nil
	}
	return nil, errors.New("miss")
}

func (m *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func TestHTTPGeocoder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "Nowhere 0" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"52.52","lon":"13.405"}]`))
	}))
	defer srv.Close()

	cache := &memCache{data: map[string][]byte{}}
	g := NewHTTPGeocoder(srv.URL, WithCache(cache, time.Hour), WithRetry(1, 0))

	p, err := g.Geocode(context.Background(), "Alexanderplatz 1, Berlin")
	require.NoError(t, err)
	assert.InDelta(t, 52.52, p.Lat, 1e-9)

	// Same address, different spacing and case, served from cache.
	p, err = g.Geocode(context.Background(), "  alexanderplatz 1,   berlin ")
	require.NoError(t, err)
	assert.InDelta(t, 13.405, p.Lon, 1e-9)
	assert.Equal(t, int32(1), calls.Load())

	_, err = g.Geocode(context.Background(), "Nowhere 0")
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = g.Geocode(context.Background(), "Nowhere 0")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.StateClosed, g.breaker.State())
}

func TestHTTPGeocoder_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTPGeocoder(srv.URL, WithRetry(2, time.Millisecond))
	for i := 0; i < 3; i++ {
		_, err := g.Geocode(context.Background(), "Somewhere 1")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, resilience.StateOpen, g.breaker.State())

	_, err := g.Geocode(context.Background(), "Somewhere 1")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, int32(6), calls.Load())
}

func TestHTTPGeocoder_CancelledCallersKeepBreakerClosed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"52.52","lon":"13.405"}]`))
	}))
	defer srv.Close()
	defer close(release)

	g := NewHTTPGeocoder(srv.URL, WithRetry(2, time.Millisecond))
	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := g.Geocode(ctx, "Somewhere 1")
		cancel()
		assert.Error(t, err)
	}
	assert.Equal(t, resilience.StateClosed, g.breaker.State())
}
