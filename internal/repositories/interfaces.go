package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/vendormart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Carts() CartRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders and answers lookups and filtered listings.
type OrderRepository interface {
	// Insert stores a new order. A duplicate order number is reported as a conflict.
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.OffsetPage[domain.Order], error)
	// Scan streams every order matching the filter without paging. Sort and pagination are ignored.
	Scan(ctx context.Context, filter OrderListFilter, fn func(domain.Order) error) error
	// Update loads the order, applies mutate, re-validates and writes it back atomically.
	// mutate may run more than once when the transaction retries and must not have side effects.
	Update(ctx context.Context, orderID string, mutate func(*domain.Order) error) (domain.Order, error)
}

// ErrInvalidSort is wrapped by List when the requested sort field or order is not supported.
var ErrInvalidSort = errors.New("unsupported sort")

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID        string
	OrderStatus   []domain.OrderStatus
	PaymentStatus []domain.PaymentStatus
	CreatedAt     domain.RangeQuery[time.Time]
	SortBy        string
	SortOrder     domain.SortOrder
	Pagination    domain.Pagination
}

// ProductRepository is the product catalog lookup plus the per-product stock ledger.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// AdjustStock applies a stock movement atomically. Subtractions fail with
	// InventoryErrorInsufficientStock when the current stock is lower than the quantity.
	// A movement whose reference was already applied is returned without being applied again.
	AdjustStock(ctx context.Context, adj StockAdjustment) (domain.StockMovement, bool, error)
}

// StockAdjustment is a single stock movement request.
type StockAdjustment struct {
	ProductID string
	Quantity  int
	Direction domain.StockDirection
	Reference string
	Now       time.Time
}

// CartRepository reads and converts customer carts.
type CartRepository interface {
	// FindActive returns the user's active cart or a not-found error.
	FindActive(ctx context.Context, userID string) (domain.Cart, error)
	// SetStatus moves the user's cart into status on behalf of orderID. A move
	// that domain.Cart.CanMoveTo rejects is a conflict.
	SetStatus(ctx context.Context, userID string, status domain.CartStatus, orderID string, now time.Time) error
}

// HealthRepository evaluates backing dependencies for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
