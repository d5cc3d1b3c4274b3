package domain

import "time"

// Quote is a point-in-time price observation for one symbol. Live feeds
// usually populate a day range alongside the last price; replayed daily
// bars always do. A quote with Valid=false, or without a positive price,
// is unobservable and must be skipped rather than read as zero.
type Quote struct {
	Symbol string
	Price  *Quantity
	High   *Quantity
	Low    *Quantity
	Valid  bool
	AsOf   time.Time
}

// Observable reports whether the quote carries a usable price.
func (q *Quote) Observable() bool {
	return q != nil && q.Valid && q.Price != nil && q.Price.IsPositive()
}

// RangeHigh is the upper bound used for touch checks: the day high when
// present, otherwise the last price.
func (q *Quote) RangeHigh() Quantity {
	if q.High != nil {
		return *q.High
	}
	return *q.Price
}

// RangeLow is the lower bound used for touch checks.
func (q *Quote) RangeLow() Quantity {
	if q.Low != nil {
		return *q.Low
	}
	return *q.Price
}

// InvalidQuote builds the unobservable placeholder for a symbol the
// provider could not resolve.
func InvalidQuote(symbol string) *Quote {
	return &Quote{Symbol: symbol, Valid: false, AsOf: time.Now().UTC()}
}
