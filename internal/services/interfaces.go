package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
)

// OrderService runs the order lifecycle: checkout, status changes, cancellation and reporting.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (domain.Order, error)
	// UpdateOrderStatus returns nil, nil when the order does not exist.
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error)
	// UpdatePaymentStatus returns nil, nil when the order does not exist.
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (*domain.Order, error)
	// CancelOrder scopes the lookup to userID when it is non-empty.
	CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error)
	GetOrderStats(ctx context.Context, start, end *time.Time) (domain.OrderStats, error)
	GetOrders(ctx context.Context, query OrderQuery) (OrderPage, error)
	GetOrderByID(ctx context.Context, orderID, userID string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber, userID string) (*domain.Order, error)
}

// CartValidator checks a user's active cart against live product data and converts it.
type CartValidator interface {
	ValidateCartItems(ctx context.Context, userID string) (CartValidation, error)
	ConvertCartToOrder(ctx context.Context, userID, orderID string) error
	RestoreCart(ctx context.Context, userID, orderID string) error
}

// StockLedger applies idempotent stock movements.
type StockLedger interface {
	// AdjustStock applies the movement unless its reference was already recorded.
	AdjustStock(ctx context.Context, cmd StockAdjustCommand) (domain.StockMovement, error)
}

// ProductCatalog resolves product details needed to freeze line items.
type ProductCatalog interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// EventPublisher delivers domain events to the configured transport.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event DomainEvent) error
}

// Metrics receives business counters.
type Metrics interface {
	OrderEvent(event string)
	StockMovement(direction domain.StockDirection, applied bool)
}

// CreateOrderInput is the checkout payload. Line items come from the cart, not the caller.
type CreateOrderInput struct {
	PaymentMethod   string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	Notes           *string
}

// UpdateOrderStatusCommand moves an order along its fulfilment lifecycle.
type UpdateOrderStatusCommand struct {
	OrderID        string
	Status         domain.OrderStatus
	TrackingNumber *string
	ActorID        string
}

// UpdatePaymentStatusCommand records a payment outcome.
type UpdatePaymentStatusCommand struct {
	OrderID         string
	Status          domain.PaymentStatus
	PaymentIntentID *string
	ActorID         string

	// ForwardOnly rejects updates that would move the payment backwards with
	// ErrStalePaymentUpdate. Set by sources that may deliver out of order.
	ForwardOnly bool
}

// OrderQuery filters order listings. UserID empty means every user (admin listing).
type OrderQuery struct {
	UserID        string
	OrderStatus   []domain.OrderStatus
	PaymentStatus []domain.PaymentStatus
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string
	SortOrder     domain.SortOrder
	Page          int
	Limit         int
}

// OrderPage is one page of orders plus totals.
type OrderPage struct {
	Orders     []domain.Order
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// CartValidation is a point-in-time view of the cart. Cart is nil when the user has no active cart.
type CartValidation struct {
	Cart   *domain.Cart
	Valid  bool
	Issues []string
}

// StockAdjustCommand requests one stock movement.
type StockAdjustCommand struct {
	ProductID string
	Quantity  int
	Direction domain.StockDirection
	Reference string
	ActorID   string
}

// OrderTotals holds the computed money fields of an order.
type OrderTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// DomainEvent is published after a state change is committed.
type DomainEvent struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregateId"`
	UserID      string         `json:"userId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Data        map[string]any `json:"data,omitempty"`
}

const (
	EventOrderCreated              = "order.created"
	EventOrderStatusChanged        = "order.status_changed"
	EventOrderPaymentStatusChanged = "order.payment_status_changed"
	EventOrderCancelled            = "order.cancelled"
	EventStockAdjusted             = "stock.adjusted"
)
