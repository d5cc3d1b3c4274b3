package domain

import "time"

// DailyBar is one day of OHLCV history for a symbol, as stored by the
// market data backfill.
type DailyBar struct {
	ID     int64
	Ticker string
	Date   time.Time
	Open   Quantity
	High   Quantity
	Low    Quantity
	Close  Quantity
	Volume int64
}

// Quote converts the bar into a range quote dated at the bar itself, so
// historical bars replay through the same detection path as live prices.
func (b *DailyBar) Quote() *Quote {
	c := b.Close
	h := b.High
	l := b.Low
	return &Quote{
		Symbol: b.Ticker,
		Price:  &c,
		High:   &h,
		Low:    &l,
		Valid:  true,
		AsOf:   b.Date,
	}
}
