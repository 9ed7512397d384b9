// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
)

// CatalogStore persists categories and items.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, updates map[string]any) error
	DeleteCategory(ctx context.Context, id string) error

	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, id string, updates map[string]any) error
	DeleteItem(ctx context.Context, id string) error
}

// OrderStore persists orders and exposes the read-only transaction view the
// rule engine consumes.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, orderID string, updates map[string]any) error
	DeleteOrder(ctx context.Context, orderID string) error

	// ListAllTransactions returns every historical order reduced to its
	// item IDs, plus an itemID -> display name index built from the same
	// scan. Both are finite and restartable.
	ListAllTransactions(ctx context.Context) ([]domain.Transaction, map[string]string, error)
}

// AnalyticsStore persists per-customer analytics summaries.
// Get returns (nil, nil) when no summary exists yet.
type AnalyticsStore interface {
	GetAnalytics(ctx context.Context, customerID string) (*domain.CustomerAnalytics, error)
	PutAnalytics(ctx context.Context, summary *domain.CustomerAnalytics) error
	ListAnalytics(ctx context.Context) ([]domain.CustomerAnalytics, error)
}

// UserStore persists POS user accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
}

// Suggester is the external generative recommender. It returns ranked item
// IDs; any failure or malformed output surfaces as an error and the caller
// falls back to statistical ranking.
type Suggester interface {
	Suggest(ctx context.Context, catalog []domain.Item, cart, history []domain.CartItem) ([]string, error)
}

// GCashGateway is the PayMongo boundary for GCash redirect payments.
type GCashGateway interface {
	CreateSource(ctx context.Context, orderID string, amount float64, customerName, customerEmail string, itemCount int) (*domain.CheckoutSession, error)
	GetSourceStatus(ctx context.Context, sourceID string) (*domain.PaymentSourceStatus, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// PayPalGateway is the PayPal Checkout boundary.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, orderID string, amount float64, description string) (*domain.CheckoutSession, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*domain.PayPalCapture, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
