// Package backendstub is an in-memory storefront REST backend for local
// development and tests. It speaks the same paths, envelopes and error codes
// as the production backend.
package backendstub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
)

// ExpiredCode is the application error code sent for a rejected bearer token.
const ExpiredCode = "TOKEN_EXPIRED"

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password"

type Options struct {
	Secret    string
	AccessTTL time.Duration
}

type account struct {
	models.User
	password    string
	deviceToken string
}

type Server struct {
	secret    string
	accessTTL time.Duration
	verifier  *auth.Middleware

	mu            sync.Mutex
	accounts      map[string]*account // by email
	refresh       map[string]string   // refresh token -> user id
	gadgets       map[string]*models.Gadget
	favorites     map[string]map[string]bool // user id -> gadget ids
	carts         map[string]map[string]int  // user id -> gadget id -> qty
	orders        map[string]*models.Order
	reviews       []models.Review
	wallets       map[string]*models.Wallet
	notifications map[string][]models.Notification
	categories    map[string]models.Category
	brands        map[string]models.Brand
	sellers       []models.Seller

	refreshCount int
}

func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "dev-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	s := &Server{
		secret:        opts.Secret,
		accessTTL:     opts.AccessTTL,
		verifier:      auth.NewMiddleware(opts.Secret),
		accounts:      map[string]*account{},
		refresh:       map[string]string{},
		gadgets:       map[string]*models.Gadget{},
		favorites:     map[string]map[string]bool{},
		carts:         map[string]map[string]int{},
		orders:        map[string]*models.Order{},
		wallets:       map[string]*models.Wallet{},
		notifications: map[string][]models.Notification{},
		categories:    map[string]models.Category{},
		brands:        map[string]models.Brand{},
	}
	s.seed()
	return s
}

// Handler returns the backend router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh-token", s.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuth)
			r.Get("/gadgets", s.listGadgets)
			r.Get("/gadgets/{id}", s.getGadget)
			r.Get("/categories", s.listCategories)
			r.Get("/brands", s.listBrands)
			r.Get("/reviews/gadget/{id}", s.listReviews)
			r.Get("/sellers", s.listSellers)
			r.Post("/search/interpret", s.interpret)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/auth/logout", s.logout)
			r.Get("/users/current", s.currentUser)
			r.Post("/users/device-token", s.deviceToken)
			r.Post("/gadgets/{id}/favorite", s.toggleFavorite)
			r.Get("/favorites", s.listFavorites)
			r.Get("/cart", s.getCart)
			r.Post("/cart/items", s.addCartItem)
			r.Put("/cart/items/{id}", s.updateCartItem)
			r.Delete("/cart/items/{id}", s.removeCartItem)
			r.Get("/orders", s.listMyOrders)
			r.Post("/orders/{id}/cancel", s.cancelOrder)
			r.Post("/reviews", s.createReview)
			r.Get("/wallet", s.getWallet)
			r.Get("/notifications", s.listNotifications)
			r.Put("/notifications/{id}/read", s.markRead)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleSeller, models.RoleManager, models.RoleAdmin))
				r.Get("/seller-orders", s.listSellerOrders)
				r.Put("/seller-orders/{id}/status", s.updateOrderStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleManager, models.RoleAdmin))
				r.Post("/categories", s.createCategory)
				r.Put("/categories/{id}", s.updateCategory)
				r.Delete("/categories/{id}", s.deleteCategory)
				r.Post("/brands", s.createBrand)
				r.Put("/brands/{id}", s.updateBrand)
				r.Delete("/brands/{id}", s.deleteBrand)
			})
		})
	})

	return r
}

// RefreshCount reports how many refresh exchanges succeeded.
func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCount
}

// DeviceToken returns the device token registered for email.
func (s *Server) DeviceToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[email]; ok {
		return a.deviceToken
	}
	return ""
}

// IssueFor signs an access token for a seeded account, for tests that need
// a token with a particular lifetime.
func (s *Server) IssueFor(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	a, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown account %s", email)
	}
	return auth.Issue(s.secret, a.ID, a.Role, ttl)
}

func (s *Server) seed() {
	for _, u := range []models.User{
		{ID: "u-ann", Name: "Ann Customer", Email: "ann@shop.test", Role: models.RoleCustomer},
		{ID: "u-sam", Name: "Sam Seller", Email: "sam@shop.test", Role: models.RoleSeller},
		{ID: "u-mia", Name: "Mia Manager", Email: "mia@shop.test", Role: models.RoleManager},
		{ID: "u-root", Name: "Root Admin", Email: "root@shop.test", Role: models.RoleAdmin},
	} {
		s.accounts[u.Email] = &account{User: u, password: DefaultPassword}
		s.wallets[u.ID] = &models.Wallet{Balance: 250, Currency: "USD", Transactions: []models.WalletTransaction{
			{ID: uuid.NewString(), Amount: 250, Kind: "topup", CreatedAt: time.Now().Add(-48 * time.Hour)},
		}}
		s.notifications[u.ID] = []models.Notification{
			{ID: uuid.NewString(), Title: "Welcome", Body: "Thanks for joining, " + u.Name, CreatedAt: time.Now()},
		}
	}

	s.categories["c-phones"] = models.Category{ID: "c-phones", Name: "Phones"}
	s.categories["c-audio"] = models.Category{ID: "c-audio", Name: "Audio"}
	s.categories["c-laptops"] = models.Category{ID: "c-laptops", Name: "Laptops"}
	s.brands["b-acme"] = models.Brand{ID: "b-acme", Name: "Acme"}
	s.brands["b-zen"] = models.Brand{ID: "b-zen", Name: "Zen"}

	s.sellers = []models.Seller{
		{ID: "u-sam", Name: "Sam's Gadgets", Address: "Alexanderplatz 1, Berlin"},
		{ID: "s-lux", Name: "Lux Electronics", Address: "Place Guillaume II, Luxembourg"},
	}

	gadgets := []models.Gadget{
		{ID: "g-1", Name: "Acme Phone X", Description: "Flagship phone with great camera", Price: 799, Stock: 12, CategoryID: "c-phones", BrandID: "b-acme", SellerID: "u-sam", Rating: 4.5},
		{ID: "g-2", Name: "Zen Buds", Description: "Wireless noise cancelling earbuds", Price: 149, Stock: 40, CategoryID: "c-audio", BrandID: "b-zen", SellerID: "u-sam", Rating: 4.2},
		{ID: "g-3", Name: "Acme Book Pro", Description: "Lightweight laptop for travel", Price: 1299, Stock: 5, CategoryID: "c-laptops", BrandID: "b-acme", SellerID: "s-lux", Rating: 4.7},
		{ID: "g-4", Name: "Zen Speaker", Description: "Portable bluetooth speaker", Price: 89, Stock: 2, CategoryID: "c-audio", BrandID: "b-zen", SellerID: "s-lux", Rating: 3.9},
		{ID: "g-5", Name: "Acme Phone Mini", Description: "Compact phone with long battery", Price: 499, Stock: 20, CategoryID: "c-phones", BrandID: "b-acme", SellerID: "u-sam", Rating: 4.0},
	}
	for i := range gadgets {
		g := gadgets[i]
		s.gadgets[g.ID] = &g
	}

	for i, status := range []string{models.OrderPending, models.OrderShipped, models.OrderDelivered} {
		id := fmt.Sprintf("o-%d", i+1)
		s.orders[id] = &models.Order{
			ID: id, UserID: "u-ann", SellerID: "u-sam", Amount: 149 * float64(i+1), Status: status,
			Items:     []models.OrderItem{{GadgetID: "g-2", Name: "Zen Buds", Quantity: i + 1, Price: 149}},
			CreatedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
}

func (s *Server) sortedGadgets() []models.Gadget {
	out := make([]models.Gadget, 0, len(s.gadgets))
	for _, g := range s.gadgets {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}
