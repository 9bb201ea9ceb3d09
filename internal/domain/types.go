package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines page/limit paging inputs for list operations.
type Pagination struct {
	Page  int
	Limit int
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OffsetPage packages list results together with total counts for page based navigation.
type OffsetPage[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Address is a postal address captured on an order. All fields are required.
type Address struct {
	Street     string
	City       string
	Province   string
	PostalCode string
	Country    string
}

// CartStatus enumerates cart lifecycle states owned by the cart collaborator.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

// Cart is the customer's shopping cart. The order core reads it and asks for conversion.
type Cart struct {
	UserID     string
	Items      []CartItem
	TotalPrice decimal.Decimal
	Status     CartStatus
	OrderID    string
	UpdatedAt  time.Time
}

// CanMoveTo reports whether the cart may move to next on behalf of orderID.
// Conversion needs an active cart, or one already converted for the same
// order so retries succeed. Reactivation only undoes this order's conversion;
// an already active cart is left active.
func (c Cart) CanMoveTo(next CartStatus, orderID string) bool {
	switch next {
	case CartStatusConverted:
		return c.Status == CartStatusActive || (c.Status == CartStatusConverted && c.OrderID == orderID)
	case CartStatusActive:
		return c.Status == CartStatusActive || (c.Status == CartStatusConverted && orderID != "" && c.OrderID == orderID)
	}
	return false
}

// CartItem is a single line in the cart with the price recorded when it was added.
type CartItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Product holds the catalog fields the order core relies on.
type Product struct {
	ID        string
	VendorID  string
	Name      string
	SKU       string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	UpdatedAt time.Time
}

// StockDirection selects whether an adjustment adds to or subtracts from stock.
type StockDirection string

const (
	StockAdd      StockDirection = "add"
	StockSubtract StockDirection = "subtract"
)

// Valid reports whether the direction is one of the supported values.
func (d StockDirection) Valid() bool {
	return d == StockAdd || d == StockSubtract
}

// StockMovement is the ledger record written for every applied stock adjustment.
type StockMovement struct {
	Reference  string
	ProductID  string
	Quantity   int
	Direction  StockDirection
	StockAfter int
	CreatedAt  time.Time
}
