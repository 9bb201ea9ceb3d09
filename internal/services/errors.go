package services

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller supplied invalid order data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent modification or duplicate order number.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrCartEmpty is returned when checkout finds no active cart or no items.
	ErrCartEmpty = errors.New("order: cart is empty")
	// ErrCartInvalid is wrapped by *CartInvalidError.
	ErrCartInvalid = errors.New("order: cart validation failed")
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrNotCancellable rejects cancelling an order that has shipped or been delivered.
	ErrNotCancellable = fmt.Errorf("%w: order has been shipped or delivered", ErrInvalidTransition)
	// ErrAlreadyCancelled rejects cancelling an order twice.
	ErrAlreadyCancelled = errors.New("order: already cancelled")
	// ErrStalePaymentUpdate rejects a forward-only payment update that the order has moved past.
	ErrStalePaymentUpdate = errors.New("order: payment update superseded")
	// ErrInsufficientStock indicates a subtraction would drive stock negative.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrProductNotFound indicates a referenced product does not exist.
	ErrProductNotFound = errors.New("stock: product not found")
	// ErrStockInvalidInput signals a malformed stock adjustment.
	ErrStockInvalidInput = errors.New("stock: invalid input")
)

// CartInvalidError carries the validator issues that blocked checkout.
type CartInvalidError struct {
	Issues []string
}

func (e *CartInvalidError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrCartInvalid.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCartInvalid.Error(), strings.Join(e.Issues, "; "))
}

func (e *CartInvalidError) Unwrap() error { return ErrCartInvalid }

// StockReservationError reports the line that could not be reserved during checkout.
// The order has already been voided and earlier lines compensated when it is returned.
type StockReservationError struct {
	ProductID string
	Err       error
}

func (e *StockReservationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("reserve stock for %s: %v", e.ProductID, e.Err)
}

func (e *StockReservationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// mapRepositoryError translates persistence failures into service sentinels.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInsufficientStock, invErr.Message)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidAdjustment:
			return fmt.Errorf("%w: %s", ErrStockInvalidInput, invErr.Message)
		}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%w: %s", ErrOrderInvalidInput, verr.Error())
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order repository unavailable: %w", err)
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
