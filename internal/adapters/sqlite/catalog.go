package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"
)

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// --- StrategyStore Implementation ---

// CreateStrategy saves a new strategy and returns its assigned ID.
func (s *Store) CreateStrategy(ctx context.Context, strategy *domain.Strategy) (int64, error) {
	const query = `INSERT INTO strategies (name, description) VALUES (?, ?)`

	result, err := s.db.ExecContext(ctx, query, strategy.Name, strategy.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("strategy name %q already exists: %w", strategy.Name, ports.ErrStrategyNameExists)
		}
		return 0, fmt.Errorf("failed to insert strategy %q: %w", strategy.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for strategy %q: %w", strategy.Name, err)
	}
	strategy.ID = id

	s.logger.Debug(ctx, "Strategy created", map[string]interface{}{"strategyID": id, "name": strategy.Name})
	return id, nil
}

// GetStrategy retrieves a strategy by ID.
func (s *Store) GetStrategy(ctx context.Context, id int64) (*domain.Strategy, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM strategies WHERE id = ?`

	strategy, err := scanStrategy(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query strategy by ID %d: %w", id, err)
	}
	return strategy, nil
}

// ListStrategies retrieves all strategies ordered by name.
func (s *Store) ListStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM strategies ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	strategies := make([]*domain.Strategy, 0)
	for rows.Next() {
		strategy, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy during ListStrategies: %w", err)
		}
		strategies = append(strategies, strategy)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return strategies, nil
}

// UpdateStrategy modifies an existing strategy.
func (s *Store) UpdateStrategy(ctx context.Context, strategy *domain.Strategy) error {
	const query = `UPDATE strategies SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, strategy.Name, strategy.Description, strategy.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("strategy name %q already exists: %w", strategy.Name, ports.ErrStrategyNameExists)
		}
		return fmt.Errorf("failed to update strategy ID %d: %w", strategy.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for strategy ID %d: %w", strategy.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("strategy ID %d not found for update: %w", strategy.ID, ports.ErrStrategyNotFound)
	}
	return nil
}

// DeleteStrategy removes a strategy by ID.
func (s *Store) DeleteStrategy(ctx context.Context, id int64) error {
	const query = `DELETE FROM strategies WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete strategy ID %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete strategy ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("strategy ID %d not found for delete: %w", id, ports.ErrStrategyNotFound)
	}
	s.logger.Debug(ctx, "Strategy deleted", map[string]interface{}{"strategyID": id})
	return nil
}

// --- InstrumentStore Implementation ---

// UpsertInstrument inserts or refreshes an instrument keyed by symbol.
func (s *Store) UpsertInstrument(ctx context.Context, inst *domain.Instrument) error {
	if inst.AddedAt.IsZero() {
		inst.AddedAt = time.Now().UTC()
	}
	const query = `
	INSERT INTO instruments (symbol, name, exchange, quote_type, added_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, exchange = excluded.exchange, quote_type = excluded.quote_type`

	_, err := s.db.ExecContext(ctx, query, inst.Symbol, inst.Name, inst.Exchange, inst.QuoteType, inst.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Symbol, err)
	}
	s.logger.Debug(ctx, "Instrument upserted", map[string]interface{}{"symbol": inst.Symbol})
	return nil
}

// GetInstrument retrieves an instrument by symbol.
func (s *Store) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	const query = `SELECT symbol, name, exchange, quote_type, added_at FROM instruments WHERE symbol = ?`

	inst, err := scanInstrument(s.db.QueryRowContext(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// ListInstruments retrieves all instruments ordered by symbol.
func (s *Store) ListInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	const query = `SELECT symbol, name, exchange, quote_type, added_at FROM instruments ORDER BY symbol`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	instruments := make([]*domain.Instrument, 0)
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument during ListInstruments: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instrument rows: %w", err)
	}
	return instruments, nil
}

// DeleteInstrument removes an instrument by symbol.
func (s *Store) DeleteInstrument(ctx context.Context, symbol string) error {
	const query = `DELETE FROM instruments WHERE symbol = ?`

	result, err := s.db.ExecContext(ctx, query, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete instrument %s: %w", symbol, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete instrument %s: %w", symbol, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("instrument %s not found for delete: %w", symbol, ports.ErrInstrumentNotFound)
	}
	s.logger.Debug(ctx, "Instrument deleted", map[string]interface{}{"symbol": symbol})
	return nil
}

// --- MarketDataStore Implementation ---

// UpsertBars inserts or replaces daily bars in one transaction.
func (s *Store) UpsertBars(ctx context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bar upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
	INSERT INTO market_data (ticker, date, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ticker, date) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(ctx, bar.Ticker, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			return fmt.Errorf("failed to upsert bar for %s on %s: %w", bar.Ticker, bar.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	s.logger.Debug(ctx, "Bars upserted", map[string]interface{}{"ticker": bars[0].Ticker, "count": len(bars)})
	return nil
}

const selectBar = `
	SELECT id, ticker, date, open, high, low, close, volume
	FROM market_data`

// BarsSince retrieves bars for a ticker from a date onward, oldest first.
func (s *Store) BarsSince(ctx context.Context, ticker string, from time.Time) ([]*domain.DailyBar, error) {
	rows, err := s.db.QueryContext(ctx, selectBar+` WHERE ticker = ? AND date >= ? ORDER BY date ASC`, ticker, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	bars := make([]*domain.DailyBar, 0)
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s: %w", ticker, err)
		}
		bars = append(bars, bar)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bar rows for %s: %w", ticker, err)
	}
	return bars, nil
}

// LatestBar retrieves the most recent bar for a ticker.
func (s *Store) LatestBar(ctx context.Context, ticker string) (*domain.DailyBar, error) {
	bar, err := scanBar(s.db.QueryRowContext(ctx, selectBar+` WHERE ticker = ? ORDER BY date DESC LIMIT 1`, ticker))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No bars stored yet
		}
		return nil, fmt.Errorf("failed to query latest bar for %s: %w", ticker, err)
	}
	return bar, nil
}

// --- Helper Scan Functions ---

// scanStrategy scans a row into a domain.Strategy struct.
func scanStrategy(s scanner) (*domain.Strategy, error) {
	st := &domain.Strategy{}
	err := s.Scan(&st.ID, &st.Name, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return st, nil
}

// scanInstrument scans a row into a domain.Instrument struct.
func scanInstrument(s scanner) (*domain.Instrument, error) {
	inst := &domain.Instrument{}
	err := s.Scan(&inst.Symbol, &inst.Name, &inst.Exchange, &inst.QuoteType, &inst.AddedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return inst, nil
}

// scanBar scans a row into a domain.DailyBar struct.
func scanBar(s scanner) (*domain.DailyBar, error) {
	b := &domain.DailyBar{}
	err := s.Scan(&b.ID, &b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return b, nil
}
