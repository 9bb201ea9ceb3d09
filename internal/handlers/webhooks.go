package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendormart/api/internal/payments"
	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/services"
)

const (
	maxWebhookBodySize = 64 * 1024
	stripeActorID      = "psp:stripe"
)

// PaymentEventParser verifies a provider delivery and extracts the payment update.
type PaymentEventParser interface {
	Parse(ctx context.Context, payload []byte, signature string) (payments.PaymentUpdate, bool, error)
}

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	stripe PaymentEventParser
	orders services.OrderService
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewWebhookHandlers constructs WebhookHandlers. A nil parser leaves the Stripe route unregistered.
func NewWebhookHandlers(stripe PaymentEventParser, orders services.OrderService, logger func(context.Context, string, map[string]any)) *WebhookHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &WebhookHandlers{stripe: stripe, orders: orders, logger: logger}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil || h.stripe == nil {
		return
	}
	r.Post("/payments/stripe", h.stripeWebhook)
}

// stripeWebhook acknowledges unknown orders and irrelevant events with 200 so Stripe stops
// retrying them; storage failures return 5xx so the delivery is retried.
func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readBody(r, maxWebhookBodySize)
	if err != nil {
		status := http.StatusBadRequest
		var apiErr httpx.Error
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid webhook payload", status))
		return
	}

	update, relevant, err := h.stripe.Parse(ctx, body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed webhook event", http.StatusBadRequest))
		return
	}
	if !relevant {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "applied": false})
		return
	}

	cmd := services.UpdatePaymentStatusCommand{
		OrderID: update.OrderID,
		Status:  update.Status,
		ActorID: stripeActorID,

		// Stripe does not guarantee delivery order.
		ForwardOnly: true,
	}
	if update.PaymentIntentID != "" {
		cmd.PaymentIntentID = &update.PaymentIntentID
	}
	order, err := h.orders.UpdatePaymentStatus(ctx, cmd)
	if err != nil {
		if errors.Is(err, services.ErrStalePaymentUpdate) {
			h.logger(ctx, "webhook.payment_stale", map[string]any{"eventId": update.EventID, "eventType": update.EventType, "orderId": update.OrderID})
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "applied": false})
			return
		}
		if errors.Is(err, services.ErrOrderInvalidInput) {
			h.logger(ctx, "webhook.payment_rejected", map[string]any{"eventId": update.EventID, "orderId": update.OrderID, "error": err.Error()})
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "applied": false})
			return
		}
		writeOrderError(ctx, w, err)
		return
	}
	if order == nil {
		h.logger(ctx, "webhook.order_missing", map[string]any{"eventId": update.EventID, "orderId": update.OrderID})
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "applied": false})
		return
	}
	h.logger(ctx, "webhook.payment_applied", map[string]any{
		"eventId":       update.EventID,
		"eventType":     update.EventType,
		"orderId":       order.ID,
		"paymentStatus": string(order.PaymentStatus),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "applied": true})
}
