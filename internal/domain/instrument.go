package domain

import "time"

// Instrument is a tradeable symbol known to the journal, typically added
// from a provider search.
type Instrument struct {
	Symbol    string
	Name      string
	Exchange  string
	QuoteType string // e.g. EQUITY, ETF
	AddedAt   time.Time
}
