package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/payments"
	"github.com/vendormart/api/internal/services"
)

type stubPaymentParser struct {
	update   payments.PaymentUpdate
	relevant bool
	err      error
}

func (s stubPaymentParser) Parse(context.Context, []byte, string) (payments.PaymentUpdate, bool, error) {
	return s.update, s.relevant, s.err
}

type webhookAck struct {
	Received bool `json:"received"`
	Applied  bool `json:"applied"`
}

func postStripeWebhook(t *testing.T, h *WebhookHandlers) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Route("/webhooks", h.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandlersAppliesPaymentUpdate(t *testing.T) {
	var captured services.UpdatePaymentStatusCommand
	var events []string
	service := &stubOrderService{
		updatePaymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (*domain.Order, error) {
			captured = cmd
			order := sampleOrder(cmd.OrderID)
			order.PaymentStatus = cmd.Status
			return &order, nil
		},
	}
	parser := stubPaymentParser{
		update: payments.PaymentUpdate{
			EventID:         "evt_1",
			EventType:       "payment_intent.succeeded",
			OrderID:         "ord_1",
			Status:          domain.PaymentStatusPaid,
			PaymentIntentID: "pi_1",
		},
		relevant: true,
	}
	logger := func(_ context.Context, event string, _ map[string]any) { events = append(events, event) }

	rr := postStripeWebhook(t, NewWebhookHandlers(parser, service, logger))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var ack webhookAck
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	assert.True(t, ack.Applied)
	assert.Equal(t, "ord_1", captured.OrderID)
	assert.Equal(t, domain.PaymentStatusPaid, captured.Status)
	assert.Equal(t, "psp:stripe", captured.ActorID)
	require.NotNil(t, captured.PaymentIntentID)
	assert.Equal(t, "pi_1", *captured.PaymentIntentID)
	assert.Contains(t, events, "webhook.payment_applied")
}

func TestWebhookHandlersAcknowledgesWithoutApplying(t *testing.T) {
	relevantUpdate := payments.PaymentUpdate{EventID: "evt_2", OrderID: "ord_gone", Status: domain.PaymentStatusFailed}

	tests := []struct {
		name    string
		parser  stubPaymentParser
		service *stubOrderService
	}{
		{
			name:    "irrelevant event",
			parser:  stubPaymentParser{update: payments.PaymentUpdate{EventType: "customer.created"}},
			service: &stubOrderService{},
		},
		{
			name:   "unknown order",
			parser: stubPaymentParser{update: relevantUpdate, relevant: true},
			service: &stubOrderService{
				updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (*domain.Order, error) {
					return nil, nil
				},
			},
		},
		{
			name:   "rejected update",
			parser: stubPaymentParser{update: relevantUpdate, relevant: true},
			service: &stubOrderService{
				updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (*domain.Order, error) {
					return nil, fmt.Errorf("%w: payment already refunded", services.ErrOrderInvalidInput)
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postStripeWebhook(t, NewWebhookHandlers(tc.parser, tc.service, nil))

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			var ack webhookAck
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
			assert.True(t, ack.Received)
			assert.False(t, ack.Applied)
		})
	}
}

func TestWebhookHandlersIgnoresOutOfOrderDowngrade(t *testing.T) {
	order := sampleOrder("ord_1")
	order.PaymentStatus = domain.PaymentStatusPending
	var forwardOnly []bool
	service := &stubOrderService{
		updatePaymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (*domain.Order, error) {
			forwardOnly = append(forwardOnly, cmd.ForwardOnly)
			if cmd.ForwardOnly && !cmd.Status.Advances(order.PaymentStatus) {
				return nil, fmt.Errorf("%w: payment is %s", services.ErrStalePaymentUpdate, order.PaymentStatus)
			}
			order.PaymentStatus = cmd.Status
			updated := order
			return &updated, nil
		},
	}
	var events []string
	logger := func(_ context.Context, event string, _ map[string]any) { events = append(events, event) }

	deliveries := []struct {
		update  payments.PaymentUpdate
		applied bool
	}{
		{update: payments.PaymentUpdate{EventID: "evt_ok", EventType: "payment_intent.succeeded", OrderID: "ord_1", Status: domain.PaymentStatusPaid}, applied: true},
		{update: payments.PaymentUpdate{EventID: "evt_late", EventType: "payment_intent.payment_failed", OrderID: "ord_1", Status: domain.PaymentStatusFailed}, applied: false},
	}
	for _, d := range deliveries {
		rr := postStripeWebhook(t, NewWebhookHandlers(stubPaymentParser{update: d.update, relevant: true}, service, logger))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var ack webhookAck
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
		assert.True(t, ack.Received)
		assert.Equal(t, d.applied, ack.Applied, d.update.EventID)
	}
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, []bool{true, true}, forwardOnly)
	assert.Contains(t, events, "webhook.payment_stale")
}

func TestWebhookHandlersErrors(t *testing.T) {
	t.Run("invalid signature", func(t *testing.T) {
		parser := stubPaymentParser{err: fmt.Errorf("%w: bad header", payments.ErrInvalidSignature)}
		rr := postStripeWebhook(t, NewWebhookHandlers(parser, &stubOrderService{}, nil))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_signature", decodeError(t, rr).Error)
	})

	t.Run("malformed event", func(t *testing.T) {
		parser := stubPaymentParser{err: fmt.Errorf("%w: evt_1 has no data", payments.ErrMalformedEvent)}
		rr := postStripeWebhook(t, NewWebhookHandlers(parser, &stubOrderService{}, nil))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rr).Error)
	})

	t.Run("storage failure is retried", func(t *testing.T) {
		parser := stubPaymentParser{update: payments.PaymentUpdate{OrderID: "ord_1", Status: domain.PaymentStatusPaid}, relevant: true}
		service := &stubOrderService{
			updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (*domain.Order, error) {
				return nil, errors.New("firestore unavailable")
			},
		}
		rr := postStripeWebhook(t, NewWebhookHandlers(parser, service, nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestWebhookHandlersWithoutParserRegistersNothing(t *testing.T) {
	rr := postStripeWebhook(t, NewWebhookHandlers(nil, &stubOrderService{}, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
