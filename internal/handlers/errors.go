package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/services"
)

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var cartErr *services.CartInvalidError
	var stockErr *services.StockReservationError

	switch {
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "Cart is empty", http.StatusBadRequest))
	case errors.As(err, &cartErr):
		httpx.WriteError(ctx, w, httpx.NewError("cart_invalid", "Cart validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"issues": cartErr.Issues}))
	case errors.As(err, &stockErr), errors.Is(err, services.ErrInsufficientStock):
		e := httpx.NewError("insufficient_stock", "Insufficient stock for one or more items", http.StatusConflict)
		if stockErr != nil {
			e = e.WithDetails(map[string]any{"productId": stockErr.ProductID})
		}
		httpx.WriteError(ctx, w, e)
	case errors.Is(err, services.ErrAlreadyCancelled):
		httpx.WriteError(ctx, w, httpx.NewError("already_cancelled", "Order is already cancelled", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", transitionMessage(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrStockInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrStalePaymentUpdate):
		httpx.WriteError(ctx, w, httpx.NewError("stale_payment_update", "payment has already moved past this status", http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently, retry the request", http.StatusConflict))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

// transitionMessage keeps the customer facing wording for cancellation of shipped orders.
func transitionMessage(err error) string {
	if errors.Is(err, services.ErrNotCancellable) {
		return "Cannot cancel order that has been shipped or delivered"
	}
	return err.Error()
}

func writeOrderNotFound(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
}
