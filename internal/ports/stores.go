package ports

import (
	"context"
	"time"

	"tradeSentinel/internal/domain"
)

// TradeStore defines the interface for storing and retrieving trades
// together with their exit levels.
type TradeStore interface {
	// CreateTrade saves a new trade and its levels, returning the assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// GetTrade retrieves a trade with its levels.
	// Returns nil, nil if not found.
	GetTrade(ctx context.Context, id int64) (*domain.Trade, error)
	// ListTrades retrieves trades in the given statuses, newest first.
	// An empty status list means all trades.
	ListTrades(ctx context.Context, statuses ...domain.TradeStatus) ([]*domain.Trade, error)
	// ListActiveTrades retrieves every trade still watched by detection,
	// i.e. in plan or open status.
	ListActiveTrades(ctx context.Context) ([]*domain.Trade, error)
	// SaveTradeWithLevels persists the trade and its full level set in one
	// transaction: level rows are updated, inserted or removed so the
	// stored set matches trade.Levels exactly. When the trade is closing
	// and has no sequence number yet, the next one is assigned and written
	// back to the trade.
	SaveTradeWithLevels(ctx context.Context, trade *domain.Trade) error
	// DeleteTrade removes a trade and its levels.
	DeleteTrade(ctx context.Context, id int64) error
	// CountTradesByStrategy counts trades referencing a strategy.
	CountTradesByStrategy(ctx context.Context, strategyID int64) (int, error)
}

// StrategyStore defines the interface for strategy bookkeeping.
type StrategyStore interface {
	// CreateStrategy saves a new strategy and returns its assigned ID.
	// Duplicate names are rejected with ErrStrategyNameExists.
	CreateStrategy(ctx context.Context, strategy *domain.Strategy) (int64, error)
	// GetStrategy retrieves a strategy by ID.
	// Returns nil, nil if not found.
	GetStrategy(ctx context.Context, id int64) (*domain.Strategy, error)
	// ListStrategies retrieves all strategies ordered by name.
	ListStrategies(ctx context.Context) ([]*domain.Strategy, error)
	// UpdateStrategy modifies an existing strategy.
	UpdateStrategy(ctx context.Context, strategy *domain.Strategy) error
	// DeleteStrategy removes a strategy by ID.
	DeleteStrategy(ctx context.Context, id int64) error
}

// InstrumentStore defines the interface for the symbol watchlist.
type InstrumentStore interface {
	// UpsertInstrument inserts or refreshes an instrument keyed by symbol.
	UpsertInstrument(ctx context.Context, inst *domain.Instrument) error
	// GetInstrument retrieves an instrument by symbol.
	// Returns nil, nil if not found.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	// ListInstruments retrieves all instruments ordered by symbol.
	ListInstruments(ctx context.Context) ([]*domain.Instrument, error)
	// DeleteInstrument removes an instrument by symbol.
	DeleteInstrument(ctx context.Context, symbol string) error
}

// MarketDataStore defines the interface for stored daily bars.
type MarketDataStore interface {
	// UpsertBars inserts or replaces daily bars in one transaction.
	// Re-ingesting the same day for a ticker overwrites the old row.
	UpsertBars(ctx context.Context, bars []*domain.DailyBar) error
	// BarsSince retrieves bars for a ticker from a date onward, oldest first.
	BarsSince(ctx context.Context, ticker string, from time.Time) ([]*domain.DailyBar, error)
	// LatestBar retrieves the most recent bar for a ticker.
	// Returns nil, nil if no bars are stored.
	LatestBar(ctx context.Context, ticker string) (*domain.DailyBar, error)
}

// Store aggregates every persistence concern of the journal. The sqlite
// adapter satisfies it with a single handle.
type Store interface {
	TradeStore
	StrategyStore
	InstrumentStore
	MarketDataStore
}
