package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/apperr"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
	"storefront-bff/internal/notify"
	"storefront-bff/internal/pagination"
	"storefront-bff/internal/search"
	"storefront-bff/internal/services"
	"storefront-bff/internal/telemetry"
	"storefront-bff/internal/tokenstore"
)

// Cache is the subset of the redis client the gateway needs.
type Cache interface {
	IsRateLimited(ctx context.Context, ip string) bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type Handler struct {
	backendURL string
	authCode   string
	http       *http.Client
	cache      Cache
	cacheTTL   time.Duration
	geocoder   search.Geocoder
	broker     *notify.Broker
}

type Option func(*Handler)

func WithGeocoder(g search.Geocoder) Option {
	return func(h *Handler) { h.geocoder = g }
}

func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.http = c }
}

func WithAuthExpiredCode(code string) Option {
	return func(h *Handler) { h.authCode = code }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(h *Handler) { h.cacheTTL = ttl }
}

func NewHandler(backendURL string, cache Cache, broker *notify.Broker, opts ...Option) *Handler {
	h := &Handler{
		backendURL: backendURL,
		authCode:   "TOKEN_EXPIRED",
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: telemetry.Transport(nil),
		},
		cache:    cache,
		cacheTTL: 30 * time.Second,
		broker:   broker,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// backend returns a client that calls the storefront API as the caller,
// forwarding the bearer token this request was authenticated with.
func (h *Handler) backend(ctx context.Context) *apiclient.Client {
	store := tokenstore.NewMemoryStore(tokenstore.Tokens{Token: auth.TokenFrom(ctx)})
	return apiclient.New(h.backendURL, store,
		apiclient.WithHTTPClient(h.http),
		apiclient.WithAuthExpiredCode(h.authCode),
	)
}

// clientIP strips the port when there is one; RealIP leaves a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Dashboard aggregates the sections the caller's role sees on its landing
// screen. Sections that fail are returned empty.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := clientIP(r)
	if h.cache.IsRateLimited(ctx, ip) {
		slog.Warn("Rate limit exceeded", "ip", ip)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		return
	}

	userID := auth.UserIDFrom(ctx)
	role := auth.RoleFrom(ctx)
	if role == "" {
		role = models.RoleCustomer
	}
	cacheKey := fmt.Sprintf("dashboard:%s:%s", role, userID)
	start := time.Now()

	if cached, err := h.cache.Get(ctx, cacheKey); err == nil {
		slog.Info("Cache HIT", "user_id", userID, "duration", time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}

	svc := services.NewServiceClient(h.backend(ctx))

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		writeError(w, err)
		return
	}

	dash := models.Dashboard{User: user, Role: role}
	firstPage := services.ListParams{Page: 1, PageSize: pagination.DefaultPageSize}

	var wg sync.WaitGroup
	section := func(name string, fetch func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(); err != nil {
				slog.Warn("Dashboard section fallback", "section", name, "user_id", userID, "error", err)
			}
		}()
	}

	orders := func(seller bool) func() error {
		return func() error {
			var (
				page *models.Page[models.Order]
				err  error
			)
			if seller {
				page, err = svc.ListSellerOrders(ctx, firstPage)
			} else {
				page, err = svc.ListMyOrders(ctx, firstPage)
			}
			if err != nil {
				dash.Orders = []models.Order{}
				return err
			}
			dash.Orders = page.Items
			return nil
		}
	}
	wallet := func() error {
		res, err := svc.GetWallet(ctx)
		if err != nil {
			return err
		}
		dash.Wallet = res
		return nil
	}
	notifications := func() error {
		res, err := svc.ListNotifications(ctx)
		if err != nil {
			dash.Notifications = []models.Notification{}
			return err
		}
		dash.Notifications = res
		return nil
	}
	catalog := func() {
		section("categories", func() error {
			res, err := svc.ListCategories(ctx)
			if err != nil {
				dash.Categories = []models.Category{}
				return err
			}
			dash.Categories = res
			return nil
		})
		section("brands", func() error {
			res, err := svc.ListBrands(ctx)
			if err != nil {
				dash.Brands = []models.Brand{}
				return err
			}
			dash.Brands = res
			return nil
		})
	}

	switch role {
	case models.RoleSeller:
		section("orders", orders(true))
		section("wallet", wallet)
		section("notifications", notifications)
	case models.RoleManager:
		section("orders", orders(true))
		catalog()
	case models.RoleAdmin:
		catalog()
		section("notifications", notifications)
		section("sellers", func() error {
			res, err := svc.ListSellers(ctx)
			if err != nil {
				dash.Sellers = []models.Seller{}
				return err
			}
			dash.Sellers = res
			return nil
		})
	default:
		section("orders", orders(false))
		section("wallet", wallet)
		section("favorites", func() error {
			res, err := svc.ListFavorites(ctx)
			if err != nil {
				dash.Favorites = []models.Gadget{}
				return err
			}
			dash.Favorites = res
			return nil
		})
	}

	wg.Wait()

	body, err := json.Marshal(dash)
	if err != nil {
		slog.Error("JSON marshal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}

	go func() {
		_ = h.cache.Set(context.Background(), cacheKey, body, h.cacheTTL)
	}()

	slog.Info("Request processed", "user_id", userID, "role", role, "duration", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search interprets a free-text query and, for seller results, adds the
// distance from the lat/lon query parameters when both are given.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	origin, err := originFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := search.NewSearcher(h.backend(r.Context()), h.geocoder).Search(r.Context(), req.Query, origin)
	if err != nil {
		slog.Warn("Search failed", "query", req.Query, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func originFrom(r *http.Request) (*search.Point, error) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" || lonStr == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lat: %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lon: %q", lonStr)
	}
	return &search.Point{Lat: lat, Lon: lon}, nil
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	slog.Info("Event stream opened", "user_id", auth.UserIDFrom(r.Context()))
	h.broker.ServeHTTP(w, r)
}

// Push broadcasts a notification to every open event stream.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var n models.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	n.Title = strings.TrimSpace(n.Title)
	err := validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&n.Body, validation.Length(0, 2000)),
	)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	msg := h.broker.Publish(n)
	slog.Info("Notification pushed", "id", msg.ID, "by", auth.UserIDFrom(r.Context()))
	writeJSON(w, http.StatusAccepted, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, apperr.ErrSessionExpired), errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": apperr.Reason(err)})
}
