package services

import "github.com/shopspring/decimal"

// Pricing computes tax and shipping for a subtotal. Amounts are rounded to cents.
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// DefaultPricing is 8% tax with free shipping from 50.00 and a 10.00 flat fee below that.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(50),
		FlatShippingFee:       decimal.NewFromInt(10),
	}
}

// Totals derives tax, shipping and total from subtotal.
func (p Pricing) Totals(subtotal decimal.Decimal) OrderTotals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)
	shipping := p.FlatShippingFee.Round(2)
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
