package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validOrder() Order {
	addr := Address{Street: "1 King St", City: "Toronto", Province: "ON", PostalCode: "M5H 1A1", Country: "Canada"}
	order := Order{
		ID:          "01J0ORDER",
		OrderNumber: "ORD-1700000000000-ABC123",
		UserID:      "user-1",
		Products: []OrderLineItem{
			{ProductID: "p1", Name: "Mug", Price: decimal.RequireFromString("25.00"), Quantity: 2, SKU: "MUG-1"},
		},
		Subtotal:        decimal.RequireFromString("50.00"),
		Tax:             decimal.RequireFromString("4.00"),
		Shipping:        decimal.Zero,
		TotalAmount:     decimal.RequireFromString("54.00"),
		PaymentStatus:   PaymentStatusPending,
		OrderStatus:     OrderStatusPending,
		PaymentMethod:   "card",
		ShippingAddress: addr,
		BillingAddress:  addr,
	}
	return order
}

func TestOrderValidate(t *testing.T) {
	if err := validOrder().Validate(); err != nil {
		t.Fatalf("expected valid order, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Order)
		want   string
	}{
		{"empty products", func(o *Order) { o.Products = nil }, "products must not be empty"},
		{"zero quantity", func(o *Order) { o.Products[0].Quantity = 0 }, "quantity must be >= 1"},
		{"negative price", func(o *Order) { o.Products[0].Price = decimal.NewFromInt(-1) }, "price must be >= 0"},
		{"total mismatch", func(o *Order) { o.TotalAmount = decimal.NewFromInt(1) }, "totalAmount must equal"},
		{"bad status", func(o *Order) { o.OrderStatus = "lost" }, "orderStatus"},
		{"notes too long", func(o *Order) {
			notes := strings.Repeat("x", MaxOrderNotesLength+1)
			o.Notes = &notes
		}, "notes must be at most"},
		{"missing country", func(o *Order) { o.BillingAddress.Country = "" }, "billingAddress.country is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := validOrder()
			tc.mutate(&order)
			err := order.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(verr.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, verr.Error())
			}
		})
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
	}
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}

	for _, final := range []OrderStatus{OrderStatusCancelled, OrderStatusDelivered} {
		for _, to := range OrderStatuses {
			if final.CanTransitionTo(to) {
				t.Fatalf("%s must be final, but allows %s", final, to)
			}
		}
	}
	if OrderStatusShipped.Cancellable() || OrderStatusDelivered.Cancellable() {
		t.Fatalf("shipped and delivered orders must not be cancellable")
	}
}

func TestParseStatuses(t *testing.T) {
	if status, ok := ParseOrderStatus(" Shipped "); !ok || status != OrderStatusShipped {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := ParseOrderStatus("completed"); ok {
		t.Fatalf("expected completed to be rejected")
	}
	if status, ok := ParsePaymentStatus("PAID"); !ok || status != PaymentStatusPaid {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
}

func TestCartCanMoveTo(t *testing.T) {
	active := Cart{Status: CartStatusActive}
	converted := Cart{Status: CartStatusConverted, OrderID: "order-1"}
	cases := []struct {
		name    string
		cart    Cart
		next    CartStatus
		orderID string
		want    bool
	}{
		{"convert active", active, CartStatusConverted, "order-1", true},
		{"convert retry same order", converted, CartStatusConverted, "order-1", true},
		{"convert taken by other order", converted, CartStatusConverted, "order-2", false},
		{"restore own conversion", converted, CartStatusActive, "order-1", true},
		{"restore other conversion", converted, CartStatusActive, "order-2", false},
		{"restore already active", active, CartStatusActive, "order-1", true},
		{"convert abandoned", Cart{Status: CartStatusAbandoned}, CartStatusConverted, "order-1", false},
	}
	for _, tc := range cases {
		if got := tc.cart.CanMoveTo(tc.next, tc.orderID); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPaymentStatusAdvances(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusFailed, PaymentStatusPaid, true},
		{PaymentStatusPaid, PaymentStatusRefunded, true},
		{PaymentStatusPaid, PaymentStatusFailed, false},
		{PaymentStatusPaid, PaymentStatusPaid, false},
		{PaymentStatusRefunded, PaymentStatusPaid, false},
		{PaymentStatusRefunded, PaymentStatusFailed, false},
	}
	for _, tc := range cases {
		if got := tc.to.Advances(tc.from); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
