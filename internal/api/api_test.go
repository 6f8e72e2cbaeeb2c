package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/backendstub"
	"storefront-bff/internal/models"
	"storefront-bff/internal/notify"
	"storefront-bff/internal/search"
)

const secret = "gateway-test-secret"

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	limited bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) IsRateLimited(context.Context, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limited
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.data[key]; ok {
		return d, nil
	}
	return nil, errors.New("miss")
}

func (f *fakeCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type gateway struct {
	stub   *backendstub.Server
	cache  *fakeCache
	broker *notify.Broker
	router http.Handler
}

type mapGeocoder map[string]search.Point

func (m mapGeocoder) Geocode(_ context.Context, address string) (search.Point, error) {
	if p, ok := m[address]; ok {
		return p, nil
	}
	return search.Point{}, search.ErrNoMatch
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	stub := backendstub.New(backendstub.Options{Secret: secret})
	backend := httptest.NewServer(stub.Handler())
	t.Cleanup(backend.Close)

	g := &gateway{stub: stub, cache: newFakeCache(), broker: notify.NewBroker()}
	t.Cleanup(g.broker.Close)

	geo := mapGeocoder{
		"Alexanderplatz 1, Berlin":       {Lat: 52.52, Lon: 13.405},
		"Place Guillaume II, Luxembourg": {Lat: 49.6116, Lon: 6.1319},
	}
	h := NewHandler(backend.URL, g.cache, g.broker, WithGeocoder(geo))
	g.router = NewRouter(h, auth.NewMiddleware(secret))
	return g
}

func (g *gateway) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := g.stub.IssueFor(email, time.Hour)
	require.NoError(t, err)
	return tok
}

func (g *gateway) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func decodeDashboard(t *testing.T, w *httptest.ResponseRecorder) models.Dashboard {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d models.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func TestLive(t *testing.T) {
	g := newGateway(t)
	w := g.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIP(t *testing.T) {
	cases := map[string]string{
		"192.0.2.7:51234":   "192.0.2.7",
		"192.0.2.7":         "192.0.2.7",
		"[2001:db8::1]:443": "2001:db8::1",
		"2001:db8::1":       "2001:db8::1",
		"2001:db8:ffff::2":  "2001:db8:ffff::2",
	}
	for addr, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		assert.Equal(t, want, clientIP(r), addr)
	}
}

func TestDashboard_RequiresToken(t *testing.T) {
	g := newGateway(t)
	assert.Equal(t, http.StatusUnauthorized, g.do(t, http.MethodGet, "/api/dashboard", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, g.do(t, http.MethodGet, "/api/dashboard", "not-a-jwt", "").Code)

	wrong, err := auth.Issue("other-secret", "u-ann", models.RoleCustomer, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, g.do(t, http.MethodGet, "/api/dashboard", wrong, "").Code)
}

func TestDashboard_ByRole(t *testing.T) {
	g := newGateway(t)

	t.Run("customer", func(t *testing.T) {
		d := decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", g.token(t, "ann@shop.test"), ""))
		assert.Equal(t, models.RoleCustomer, d.Role)
		require.NotNil(t, d.User)
		assert.Equal(t, "u-ann", d.User.ID)
		assert.Len(t, d.Orders, 3)
		require.NotNil(t, d.Wallet)
		assert.Equal(t, 250.0, d.Wallet.Balance)
		assert.Empty(t, d.Categories)
		assert.Empty(t, d.Sellers)
	})

	t.Run("seller", func(t *testing.T) {
		d := decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", g.token(t, "sam@shop.test"), ""))
		assert.Equal(t, models.RoleSeller, d.Role)
		assert.Len(t, d.Orders, 3)
		assert.NotNil(t, d.Wallet)
		require.Len(t, d.Notifications, 1)
		assert.Equal(t, "Welcome", d.Notifications[0].Title)
		assert.Empty(t, d.Favorites)
	})

	t.Run("manager", func(t *testing.T) {
		d := decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", g.token(t, "mia@shop.test"), ""))
		assert.Len(t, d.Orders, 3)
		assert.Len(t, d.Categories, 3)
		assert.Len(t, d.Brands, 2)
		assert.Nil(t, d.Wallet)
	})

	t.Run("admin", func(t *testing.T) {
		d := decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", g.token(t, "root@shop.test"), ""))
		assert.Len(t, d.Categories, 3)
		assert.Len(t, d.Brands, 2)
		assert.Len(t, d.Sellers, 2)
		assert.Len(t, d.Notifications, 1)
		assert.Empty(t, d.Orders)
	})
}

func TestDashboard_CachedPerSubject(t *testing.T) {
	g := newGateway(t)
	tok := g.token(t, "ann@shop.test")

	decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", tok, ""))
	key := "dashboard:customer:u-ann"
	require.Eventually(t, func() bool { return g.cache.has(key) }, time.Second, 10*time.Millisecond)

	g.cache.Set(context.Background(), key, []byte(`{"role":"customer","user":{"id":"cached"}}`), time.Minute)
	d := decodeDashboard(t, g.do(t, http.MethodGet, "/api/dashboard", tok, ""))
	assert.Equal(t, "cached", d.User.ID)

	assert.False(t, g.cache.has("dashboard:seller:u-sam"))
}

func TestDashboard_RateLimited(t *testing.T) {
	g := newGateway(t)
	g.cache.limited = true
	w := g.do(t, http.MethodGet, "/api/dashboard", g.token(t, "ann@shop.test"), "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestDashboard_BackendDown(t *testing.T) {
	stub := backendstub.New(backendstub.Options{Secret: secret})
	backend := httptest.NewServer(stub.Handler())
	backend.Close()

	broker := notify.NewBroker()
	defer broker.Close()
	router := NewRouter(NewHandler(backend.URL, newFakeCache(), broker), auth.NewMiddleware(secret))

	tok, err := stub.IssueFor("ann@shop.test", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSearch(t *testing.T) {
	g := newGateway(t)
	tok := g.token(t, "ann@shop.test")

	t.Run("sellers with distance", func(t *testing.T) {
		w := g.do(t, http.MethodPost, "/api/search?lat=48.8566&lon=2.3522", tok, `{"query":"gadget stores near me"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res search.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, models.IntentSellers, res.Intent)
		require.Len(t, res.Sellers, 2)
		for _, s := range res.Sellers {
			assert.True(t, strings.HasSuffix(s.Display, " km"), s.Display)
		}
	})

	t.Run("no location", func(t *testing.T) {
		w := g.do(t, http.MethodPost, "/api/search", tok, `{"query":"stores"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var res search.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res.Sellers, 2)
		for _, s := range res.Sellers {
			assert.Equal(t, search.CannotCompute, s.Display)
		}
	})

	t.Run("products", func(t *testing.T) {
		w := g.do(t, http.MethodPost, "/api/search", tok, `{"query":"wireless earbuds"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var res search.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, models.IntentProducts, res.Intent)
		assert.NotEmpty(t, res.Products)
	})

	t.Run("bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, g.do(t, http.MethodPost, "/api/search?lat=x&lon=1", tok, `{"query":"stores"}`).Code)
		assert.Equal(t, http.StatusBadRequest, g.do(t, http.MethodPost, "/api/search", tok, `{"query":"  "}`).Code)
		assert.Equal(t, http.StatusBadRequest, g.do(t, http.MethodPost, "/api/search", tok, `{`).Code)
	})
}

func TestPush(t *testing.T) {
	g := newGateway(t)
	tab := g.broker.Subscribe()
	defer g.broker.Unsubscribe(tab)

	w := g.do(t, http.MethodPost, "/api/push", g.token(t, "ann@shop.test"), `{"title":"hi"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(t, http.MethodPost, "/api/push", g.token(t, "mia@shop.test"), `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.do(t, http.MethodPost, "/api/push", g.token(t, "mia@shop.test"), `{"title":"Flash sale","body":"20% off audio"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	select {
	case msg := <-tab.C:
		assert.Equal(t, "Flash sale", msg.Notification.Title)
	case <-time.After(time.Second):
		t.Fatal("push not delivered")
	}
}
