package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/vendormart/api/internal/domain"
)

const (
	orderIDMetadataKey      = "order_id"
	defaultWebhookTolerance = 5 * time.Minute
)

var (
	// ErrInvalidSignature is returned when the Stripe-Signature header does not verify.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrMalformedEvent is returned when a verified event cannot be decoded.
	ErrMalformedEvent = errors.New("payments: malformed webhook event")
)

// StripeLogger matches the service logger signature.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

// PaymentUpdate is the order payment change carried by a provider event.
type PaymentUpdate struct {
	EventID         string
	EventType       string
	OrderID         string
	Status          domain.PaymentStatus
	PaymentIntentID string
}

// StripeWebhookConfig configures StripeWebhook.
type StripeWebhookConfig struct {
	Secret    string
	Tolerance time.Duration
	Logger    StripeLogger
}

// StripeWebhook verifies Stripe webhook deliveries and maps them to payment updates.
type StripeWebhook struct {
	secret    string
	tolerance time.Duration
	logger    StripeLogger
}

// NewStripeWebhook constructs a verifier for the endpoint signing secret.
func NewStripeWebhook(cfg StripeWebhookConfig) (*StripeWebhook, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeWebhook{secret: secret, tolerance: tolerance, logger: logger}, nil
}

// Parse verifies the payload and returns the payment update it carries. The boolean is false
// for event types that do not affect order payment status, or events without an order id.
func (w *StripeWebhook) Parse(ctx context.Context, payload []byte, signature string) (PaymentUpdate, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		Tolerance:                w.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return PaymentUpdate{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	update := PaymentUpdate{EventID: event.ID, EventType: string(event.Type)}
	var metadata map[string]string

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := decodeEventObject(event, &intent); err != nil {
			return PaymentUpdate{}, false, err
		}
		update.Status = domain.PaymentStatusPaid
		if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
			update.Status = domain.PaymentStatusFailed
		}
		update.PaymentIntentID = intent.ID
		metadata = intent.Metadata
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := decodeEventObject(event, &charge); err != nil {
			return PaymentUpdate{}, false, err
		}
		update.Status = domain.PaymentStatusRefunded
		if charge.PaymentIntent != nil {
			update.PaymentIntentID = charge.PaymentIntent.ID
		}
		metadata = charge.Metadata
	default:
		w.logger(ctx, "stripe.webhook_ignored", map[string]any{"eventId": event.ID, "eventType": string(event.Type)})
		return update, false, nil
	}

	update.OrderID = strings.TrimSpace(metadata[orderIDMetadataKey])
	if update.OrderID == "" {
		w.logger(ctx, "stripe.webhook_missing_order", map[string]any{"eventId": event.ID, "eventType": string(event.Type)})
		return update, false, nil
	}
	return update, true, nil
}

func decodeEventObject(event stripe.Event, target any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedEvent, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, event.ID, err)
	}
	return nil
}
