package models

import "time"

// Roles carried in the bearer token.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResponse struct {
	TokenPair
	User *User `json:"user,omitempty"`
}

type Gadget struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	CategoryID  string   `json:"categoryId,omitempty"`
	BrandID     string   `json:"brandId,omitempty"`
	SellerID    string   `json:"sellerId,omitempty"`
	Rating      float64  `json:"rating"`
	Images      []string `json:"images,omitempty"`
	Favorited   bool     `json:"favorited"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CartItem struct {
	GadgetID string  `json:"gadgetId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// Order statuses.
const (
	OrderPending   = "pending"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

type OrderItem struct {
	GadgetID string  `json:"gadgetId"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	SellerID  string      `json:"sellerId,omitempty"`
	Amount    float64     `json:"amount"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Review struct {
	ID        string    `json:"id"`
	GadgetID  string    `json:"gadgetId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type WalletTransaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

type Wallet struct {
	Balance      float64             `json:"balance"`
	Currency     string              `json:"currency"`
	Transactions []WalletTransaction `json:"transactions"`
}

type Seller struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Page is the backend's paginated list envelope.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Search intents returned by the interpret endpoint.
const (
	IntentProducts = "products"
	IntentSellers  = "sellers"
)

type SearchResult struct {
	Intent   string   `json:"intent"`
	Products []Gadget `json:"products"`
	Sellers  []Seller `json:"sellers"`
}

type Dashboard struct {
	User          *User          `json:"user"`
	Role          string         `json:"role"`
	Orders        []Order        `json:"orders,omitempty"`
	Favorites     []Gadget       `json:"favorites,omitempty"`
	Wallet        *Wallet        `json:"wallet,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	Categories    []Category     `json:"categories,omitempty"`
	Brands        []Brand        `json:"brands,omitempty"`
	Sellers       []Seller       `json:"sellers,omitempty"`
}
