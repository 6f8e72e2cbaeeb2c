package backendstub

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
)

func (s *Server) identify(r *http.Request) (*http.Request, bool) {
	tok, ok := auth.BearerToken(r)
	if !ok {
		return r, false
	}
	claims, err := s.verifier.Verify(tok)
	if err != nil {
		return r, false
	}
	return r.WithContext(auth.WithIdentity(r.Context(), claims, tok)), true
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := s.identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, ExpiredCode, "Session token is invalid or expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// optionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through. A present but rejected token still fails so
// the client refreshes.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		s.requireAuth(next).ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request body")
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return page, size
}

func paginate[T any](items []T, page, size int) models.Page[T] {
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return models.Page[T]{Items: items[start:end], Total: len(items), Page: page, PageSize: size}
}

func (s *Server) issuePair(u models.User) (models.TokenPair, error) {
	tok, err := auth.Issue(s.secret, u.ID, u.Role, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	rt := uuid.NewString()
	s.refresh[rt] = u.ID
	return models.TokenPair{Token: tok, RefreshToken: rt}, nil
}

func (s *Server) userByID(id string) *account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.ToLower(in.Email)]
	if !ok || a.password != in.Password {
		writeError(w, http.StatusUnauthorized, "BAD_CREDENTIALS", "Invalid email or password")
		return
	}
	pair, err := s.issuePair(a.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Could not sign in")
		return
	}
	u := a.User
	writeJSON(w, http.StatusOK, models.LoginResponse{TokenPair: pair, User: &u})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[in.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "REFRESH_INVALID", "Refresh token is invalid")
		return
	}
	a := s.userByID(userID)
	if a == nil {
		writeError(w, http.StatusUnauthorized, "REFRESH_INVALID", "Account no longer exists")
		return
	}
	delete(s.refresh, in.RefreshToken)
	pair, err := s.issuePair(a.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Could not refresh session")
		return
	}
	s.refreshCount++
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	delete(s.refresh, in.RefreshToken)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.userByID(auth.UserIDFrom(r.Context()))
	if a == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, a.User)
}

func (s *Server) deviceToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DeviceToken string `json:"deviceToken"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Device token is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.userByID(auth.UserIDFrom(r.Context())); a != nil {
		a.deviceToken = in.DeviceToken
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGadgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.ToLower(q.Get("q"))
	page, size := pageParams(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	favs := s.favorites[auth.UserIDFrom(r.Context())]
	var items []models.Gadget
	for _, g := range s.sortedGadgets() {
		if query != "" && !strings.Contains(strings.ToLower(g.Name+" "+g.Description), query) {
			continue
		}
		if c := q.Get("categoryId"); c != "" && g.CategoryID != c {
			continue
		}
		if b := q.Get("brandId"); b != "" && g.BrandID != b {
			continue
		}
		g.Favorited = favs[g.ID]
		items = append(items, g)
	}
	if items == nil {
		items = []models.Gadget{}
	}
	writeJSON(w, http.StatusOK, paginate(items, page, size))
}

func (s *Server) getGadget(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gadgets[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Gadget not found")
		return
	}
	out := *g
	out.Favorited = s.favorites[auth.UserIDFrom(r.Context())][g.ID]
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := auth.UserIDFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gadgets[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Gadget not found")
		return
	}
	if s.favorites[userID] == nil {
		s.favorites[userID] = map[string]bool{}
	}
	now := !s.favorites[userID][id]
	if now {
		s.favorites[userID][id] = true
	} else {
		delete(s.favorites[userID], id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorited": now})
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	favs := s.favorites[auth.UserIDFrom(r.Context())]
	out := []models.Gadget{}
	for _, g := range s.sortedGadgets() {
		if favs[g.ID] {
			g.Favorited = true
			out = append(out, g)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cartLocked(userID string) models.Cart {
	cart := models.Cart{Items: []models.CartItem{}}
	ids := make([]string, 0, len(s.carts[userID]))
	for id := range s.carts[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g := s.gadgets[id]
		qty := s.carts[userID][id]
		cart.Items = append(cart.Items, models.CartItem{GadgetID: id, Name: g.Name, Price: g.Price, Quantity: qty})
		cart.Total += g.Price * float64(qty)
	}
	return cart
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.cartLocked(auth.UserIDFrom(r.Context())))
}

func (s *Server) setCartQty(w http.ResponseWriter, userID, gadgetID string, qty int, add bool) {
	g, ok := s.gadgets[gadgetID]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Gadget not found")
		return
	}
	if s.carts[userID] == nil {
		s.carts[userID] = map[string]int{}
	}
	if add {
		qty += s.carts[userID][gadgetID]
	}
	if qty < 1 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Quantity must be at least 1")
		return
	}
	if qty > g.Stock {
		writeError(w, http.StatusBadRequest, "OUT_OF_STOCK", "Only "+strconv.Itoa(g.Stock)+" left in stock")
		return
	}
	s.carts[userID][gadgetID] = qty
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		GadgetID string `json:"gadgetId"`
		Quantity int    `json:"quantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCartQty(w, auth.UserIDFrom(r.Context()), in.GadgetID, in.Quantity, true)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCartQty(w, auth.UserIDFrom(r.Context()), chi.URLParam(r, "id"), in.Quantity, false)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[auth.UserIDFrom(r.Context())], chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ordersWhere(keep func(*models.Order) bool, status string) []models.Order {
	out := []models.Order{}
	for _, o := range s.orders {
		if keep(o) && (status == "" || o.Status == status) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFrom(r.Context())
	page, size := pageParams(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.ordersWhere(func(o *models.Order) bool { return o.UserID == userID }, r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, paginate(orders, page, size))
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok || o.UserID != auth.UserIDFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if o.Status != models.OrderPending {
		writeError(w, http.StatusConflict, "NOT_CANCELLABLE", "Only pending orders can be cancelled")
		return
	}
	o.Status = models.OrderCancelled
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFrom(r.Context())
	role := auth.RoleFrom(r.Context())
	page, size := pageParams(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.ordersWhere(func(o *models.Order) bool {
		return role != models.RoleSeller || o.SellerID == userID
	}, r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, paginate(orders, page, size))
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok || (auth.RoleFrom(r.Context()) == models.RoleSeller && o.SellerID != auth.UserIDFrom(r.Context())) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	o.Status = in.Status
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, rv := range s.reviews {
		if rv.GadgetID == id {
			out = append(out, rv)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var in struct {
		GadgetID string `json:"gadgetId"`
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Rating must be between 1 and 5")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gadgets[in.GadgetID]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Gadget not found")
		return
	}
	userID := auth.UserIDFrom(r.Context())
	for _, rv := range s.reviews {
		if rv.GadgetID == in.GadgetID && rv.UserID == userID {
			writeError(w, http.StatusConflict, "ALREADY_REVIEWED", "You have already reviewed this product")
			return
		}
	}
	rv := models.Review{
		ID: uuid.NewString(), GadgetID: in.GadgetID, UserID: userID,
		Rating: in.Rating, Comment: in.Comment, CreatedAt: time.Now(),
	}
	if a := s.userByID(userID); a != nil {
		rv.UserName = a.Name
	}
	s.reviews = append(s.reviews, rv)
	writeJSON(w, http.StatusCreated, rv)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[auth.UserIDFrom(r.Context())]
	if !ok {
		writeJSON(w, http.StatusOK, models.Wallet{Currency: "USD", Transactions: []models.WalletTransaction{}})
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.notifications[auth.UserIDFrom(r.Context())]
	if ns == nil {
		ns = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.notifications[auth.UserIDFrom(r.Context())]
	for i := range ns {
		if ns[i].ID == id {
			ns[i].Read = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
}

func (s *Server) listSellers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sellers)
}
