package domain

import "github.com/shopspring/decimal"

// Quantity is the fixed-precision decimal type used for every price, weight
// and ratio in the journal. Float64 is never used for money math.
type Quantity = decimal.Decimal

// ZeroQty is the zero value for price and ratio math.
var ZeroQty = decimal.Zero

// Qty parses a decimal literal and panics on malformed input.
// Use it for trusted constants and test fixtures only; parse external
// input with QtyFromString.
func Qty(value string) Quantity {
	return decimal.RequireFromString(value)
}

// QtyFromString parses a decimal from untrusted input.
func QtyFromString(value string) (Quantity, error) {
	return decimal.NewFromString(value)
}

// QtyFromInt converts a whole number of units into a Quantity.
func QtyFromInt(value int64) Quantity {
	return decimal.NewFromInt(value)
}

// QtyFromFloat converts a float into a Quantity. Prefer the string
// constructors wherever the source value is already textual.
func QtyFromFloat(value float64) Quantity {
	return decimal.NewFromFloat(value)
}

// QtyPtr returns a pointer to q. Optional prices and metrics are modelled
// as *Quantity, so this shows up wherever a literal needs an address.
func QtyPtr(q Quantity) *Quantity {
	return &q
}
