package ports

import (
	"context"
	"time"

	"tradeSentinel/internal/domain"
)

// QuoteSource defines the interface for fetching current prices.
type QuoteSource interface {
	// FetchQuotes resolves quotes for the given symbols in one batched
	// call. A symbol the provider cannot resolve yields an invalid quote
	// in the result rather than an error; FetchQuotes only returns an
	// error when the provider is unreachable as a whole.
	FetchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error)
}

// HistorySource defines the interface for fetching daily OHLCV history.
type HistorySource interface {
	// FetchDailyBars retrieves daily bars for a symbol in [from, to],
	// oldest first.
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DailyBar, error)
}

// InstrumentSearcher defines the interface for looking up tradeable
// symbols by free-text query.
type InstrumentSearcher interface {
	// Search returns up to limit instruments matching the query.
	Search(ctx context.Context, query string, limit int) ([]*domain.Instrument, error)
}
