package firestore

import "github.com/shopspring/decimal"

// Firestore has no decimal type. Amounts are stored as doubles and rounded back to cents on read.
func moneyToDoc(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func moneyFromDoc(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
