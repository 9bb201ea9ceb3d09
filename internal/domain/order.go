package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxOrderNotesLength bounds the free-form notes stored on an order.
const MaxOrderNotesLength = 500

// OrderStatus enumerates fulfilment states for orders.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus enumerates the recorded payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// OrderSortFields lists the fields order listings may be sorted by.
var OrderSortFields = []string{
	"createdAt",
	"updatedAt",
	"totalAmount",
	"subtotal",
	"orderNumber",
	"orderStatus",
	"paymentStatus",
}

// ParseOrderStatus normalises raw input into a known OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Valid reports whether the status is a known order status.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether target is a permitted next state.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderStatusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// ParsePaymentStatus normalises raw input into a known PaymentStatus.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Valid reports whether the status is a known payment status.
func (s PaymentStatus) Valid() bool {
	for _, candidate := range PaymentStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

var paymentProgress = map[PaymentStatus]int{
	PaymentStatusPending:  0,
	PaymentStatusFailed:   1,
	PaymentStatusPaid:     2,
	PaymentStatusRefunded: 3,
}

// Advances reports whether moving from current to s is forward progress.
// A failed attempt can still be followed by a successful one, but a paid
// payment never reverts to failed and a refund is final.
func (s PaymentStatus) Advances(current PaymentStatus) bool {
	return paymentProgress[s] > paymentProgress[current]
}

// Order is a placed purchase. Line items are a snapshot taken at checkout.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Products        []OrderLineItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	TotalAmount     decimal.Decimal
	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	PaymentMethod   string
	PaymentIntentID *string
	TrackingNumber  *string
	Notes           *string
	ShippingAddress Address
	BillingAddress  Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLineItem freezes the product data the customer actually bought.
type OrderLineItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	SKU       string
}

// LineTotal returns price multiplied by quantity.
func (i OrderLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ValidationError lists every problem found while validating an entity.
type ValidationError struct {
	Entity   string
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(e.Problems, "; "))
}

// Validate checks the order invariants and returns a *ValidationError listing violations.
func (o Order) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(o.ID) == "" {
		add("id is required")
	}
	if strings.TrimSpace(o.OrderNumber) == "" {
		add("orderNumber is required")
	}
	if strings.TrimSpace(o.UserID) == "" {
		add("userId is required")
	}
	if len(o.Products) == 0 {
		add("products must not be empty")
	}
	for idx, item := range o.Products {
		if strings.TrimSpace(item.ProductID) == "" {
			add("products[%d].productId is required", idx)
		}
		if item.Quantity < 1 {
			add("products[%d].quantity must be >= 1", idx)
		}
		if item.Price.IsNegative() {
			add("products[%d].price must be >= 0", idx)
		}
	}
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", o.Subtotal},
		{"tax", o.Tax},
		{"shipping", o.Shipping},
		{"totalAmount", o.TotalAmount},
	}
	for _, amount := range amounts {
		if amount.value.IsNegative() {
			add("%s must be >= 0", amount.name)
		}
	}
	if !o.TotalAmount.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)) {
		add("totalAmount must equal subtotal + tax + shipping")
	}
	if !o.OrderStatus.Valid() {
		add("orderStatus %q is invalid", o.OrderStatus)
	}
	if !o.PaymentStatus.Valid() {
		add("paymentStatus %q is invalid", o.PaymentStatus)
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		add("paymentMethod is required")
	}
	if o.Notes != nil && utf8.RuneCountInString(*o.Notes) > MaxOrderNotesLength {
		add("notes must be at most %d characters", MaxOrderNotesLength)
	}
	problems = append(problems, o.ShippingAddress.Problems("shippingAddress")...)
	problems = append(problems, o.BillingAddress.Problems("billingAddress")...)

	if len(problems) > 0 {
		return &ValidationError{Entity: "order", Problems: problems}
	}
	return nil
}

// Problems lists missing address fields, each prefixed with prefix.
func (a Address) Problems(prefix string) []string {
	var out []string
	fields := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"province", a.Province},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			out = append(out, fmt.Sprintf("%s.%s is required", prefix, field.name))
		}
	}
	return out
}

// OrderStats aggregates order counts and revenue over a time window.
type OrderStats struct {
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	OrdersByStatus    map[OrderStatus]int
	PaymentsByStatus  map[PaymentStatus]int
}
