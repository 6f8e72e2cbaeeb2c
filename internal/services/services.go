package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/models"
)

// Backend is the request surface of apiclient.Client.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// ServiceClient exposes one method per storefront REST call.
type ServiceClient struct {
	api Backend
}

func NewServiceClient(api Backend) *ServiceClient {
	return &ServiceClient{api: api}
}

type ListParams struct {
	Page       int
	PageSize   int
	Query      string
	CategoryID string
	BrandID    string
	Status     string
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.CategoryID != "" {
		q.Set("categoryId", p.CategoryID)
	}
	if p.BrandID != "" {
		q.Set("brandId", p.BrandID)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	return q
}

func (s *ServiceClient) ListGadgets(ctx context.Context, p ListParams) (*models.Page[models.Gadget], error) {
	var page models.Page[models.Gadget]
	if err := s.api.Get(ctx, "/api/gadgets", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ServiceClient) GetGadget(ctx context.Context, id string) (*models.Gadget, error) {
	var g models.Gadget
	if err := s.api.Get(ctx, "/api/gadgets/"+url.PathEscape(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ToggleFavorite flips the favorite flag server-side and returns the
// resulting state.
func (s *ServiceClient) ToggleFavorite(ctx context.Context, gadgetID string) (bool, error) {
	var resp struct {
		Favorited bool `json:"favorited"`
	}
	if err := s.api.Post(ctx, "/api/gadgets/"+url.PathEscape(gadgetID)+"/favorite", nil, &resp); err != nil {
		return false, err
	}
	return resp.Favorited, nil
}

func (s *ServiceClient) ListFavorites(ctx context.Context) ([]models.Gadget, error) {
	var gadgets []models.Gadget
	if err := s.api.Get(ctx, "/api/favorites", nil, &gadgets); err != nil {
		return nil, err
	}
	return gadgets, nil
}

func (s *ServiceClient) GetCart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	if err := s.api.Get(ctx, "/api/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *ServiceClient) AddToCart(ctx context.Context, gadgetID string, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}
	var cart models.Cart
	body := map[string]any{"gadgetId": gadgetID, "quantity": quantity}
	if err := s.api.Post(ctx, "/api/cart/items", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *ServiceClient) UpdateCartItem(ctx context.Context, gadgetID string, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}
	var cart models.Cart
	if err := s.api.Put(ctx, "/api/cart/items/"+url.PathEscape(gadgetID), map[string]int{"quantity": quantity}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *ServiceClient) RemoveFromCart(ctx context.Context, gadgetID string) error {
	return s.api.Delete(ctx, "/api/cart/items/"+url.PathEscape(gadgetID))
}

func (s *ServiceClient) ListMyOrders(ctx context.Context, p ListParams) (*models.Page[models.Order], error) {
	var page models.Page[models.Order]
	if err := s.api.Get(ctx, "/api/orders", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ServiceClient) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	if err := s.api.Post(ctx, "/api/orders/"+url.PathEscape(orderID)+"/cancel", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *ServiceClient) ListSellerOrders(ctx context.Context, p ListParams) (*models.Page[models.Order], error) {
	var page models.Page[models.Order]
	if err := s.api.Get(ctx, "/api/seller-orders", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ServiceClient) UpdateSellerOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if err := validation.Validate(status, validation.Required,
		validation.In(models.OrderPending, models.OrderShipped, models.OrderDelivered, models.OrderCancelled)); err != nil {
		return nil, fmt.Errorf("%w: status %v", apperr.ErrInvalidInput, err)
	}
	var o models.Order
	if err := s.api.Put(ctx, "/api/seller-orders/"+url.PathEscape(orderID)+"/status", map[string]string{"status": status}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *ServiceClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := s.api.Get(ctx, "/api/users/current", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *ServiceClient) RegisterDeviceToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty device token", apperr.ErrInvalidInput)
	}
	return s.api.Post(ctx, "/api/users/device-token", map[string]string{"deviceToken": token}, nil)
}

func (s *ServiceClient) GetWallet(ctx context.Context) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.api.Get(ctx, "/api/wallet", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *ServiceClient) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var ns []models.Notification
	if err := s.api.Get(ctx, "/api/notifications", nil, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

func (s *ServiceClient) MarkNotificationRead(ctx context.Context, id string) error {
	return s.api.Put(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (s *ServiceClient) ListSellers(ctx context.Context) ([]models.Seller, error) {
	var sellers []models.Seller
	if err := s.api.Get(ctx, "/api/sellers", nil, &sellers); err != nil {
		return nil, err
	}
	return sellers, nil
}
