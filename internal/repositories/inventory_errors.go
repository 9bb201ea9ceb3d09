package repositories

import "fmt"

// InventoryErrorCode says why a stock adjustment was refused.
type InventoryErrorCode string

const (
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	InventoryErrorProductNotFound   InventoryErrorCode = "inventory_product_not_found"
	InventoryErrorInvalidAdjustment InventoryErrorCode = "inventory_invalid_adjustment"
)

// InventoryError is returned by ProductRepository.AdjustStock when the ledger
// refuses a movement. Nothing was written when it is returned.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	Message   string
	ProductID string
	// Available and Requested are set for InventoryErrorInsufficientStock.
	Available int
	Requested int
	Err       error
}

func (e *InventoryError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *InventoryError) Unwrap() error { return e.Err }

// NewInventoryError builds an error whose message defaults to the code.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{Code: code, Message: message, Err: err}
}

// InsufficientStock reports a subtraction larger than the product's stock.
func InsufficientStock(productID string, available, requested int) *InventoryError {
	e := NewInventoryError(InventoryErrorInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: available %d, requested %d", productID, available, requested), nil)
	e.ProductID, e.Available, e.Requested = productID, available, requested
	return e
}

// ProductNotFound reports an adjustment against a product that does not exist.
func ProductNotFound(productID string, cause error) *InventoryError {
	e := NewInventoryError(InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), cause)
	e.ProductID = productID
	return e
}
