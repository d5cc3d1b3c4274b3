package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements the ports.Store interfaces using SQLite.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// New creates a new SQLite store instance.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_journal.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	store := &Store{db: db, logger: cfg.Logger}

	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	return store, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq_num INTEGER DEFAULT NULL,
		ticker TEXT NOT NULL,
		strategy_id INTEGER DEFAULT NULL,
		status TEXT NOT NULL DEFAULT 'plan',
		units INTEGER NOT NULL,
		entry_price TEXT NOT NULL,
		stop_loss TEXT NOT NULL,
		take_profit TEXT NOT NULL,
		is_layered INTEGER NOT NULL DEFAULT 0,
		paper_trade INTEGER NOT NULL DEFAULT 0,
		date_planned TIMESTAMP NOT NULL,
		date_actual TIMESTAMP DEFAULT NULL,
		exit_date TIMESTAMP DEFAULT NULL,
		exit_type TEXT DEFAULT NULL,
		exit_price TEXT DEFAULT NULL,
		remaining_units INTEGER DEFAULT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS exit_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id INTEGER NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
		level_type TEXT NOT NULL,
		price TEXT NOT NULL,
		units_pct TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		hit_date TIMESTAMP DEFAULT NULL,
		units_closed INTEGER DEFAULT NULL,
		move_sl_to_breakeven INTEGER NOT NULL DEFAULT 0,
		price_original TEXT DEFAULT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS strategies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS instruments (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL DEFAULT '',
		quote_type TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS market_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		UNIQUE (ticker, date)
	);

	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades (ticker);
	CREATE INDEX IF NOT EXISTS idx_exit_levels_trade_id ON exit_levels (trade_id);
	CREATE INDEX IF NOT EXISTS idx_market_data_ticker_date ON market_data (ticker, date);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite database connection")
		return s.db.Close()
	}
	return nil
}

const selectTrade = `
	SELECT id, seq_num, ticker, strategy_id, status, units, entry_price, stop_loss, take_profit,
	       is_layered, paper_trade, date_planned, date_actual, exit_date, exit_type, exit_price,
	       remaining_units, notes, created_at, updated_at
	FROM trades`

const selectLevel = `
	SELECT id, trade_id, level_type, price, units_pct, order_index, status, hit_date,
	       units_closed, move_sl_to_breakeven, price_original, created_at, updated_at
	FROM exit_levels`

// --- TradeStore Implementation ---

// CreateTrade saves a new trade and its levels, returning the assigned ID.
func (s *Store) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for trade %s: %w", trade.Ticker, err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
	INSERT INTO trades (seq_num, ticker, strategy_id, status, units, entry_price, stop_loss, take_profit,
	                    is_layered, paper_trade, date_planned, date_actual, exit_date, exit_type, exit_price,
	                    remaining_units, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		nullInt64(trade.SeqNum), trade.Ticker, nullInt64(trade.StrategyID), trade.Status, trade.Units,
		trade.EntryPrice, trade.StopLoss, trade.TakeProfit, trade.IsLayered, trade.PaperTrade,
		trade.DatePlanned, nullTime(trade.DateActual), nullTime(trade.ExitDate), nullExitType(trade.ExitType),
		nullDecimal(trade.ExitPrice), nullInt64(trade.RemainingUnits), trade.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for ticker %s: %w", trade.Ticker, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Ticker, err)
	}
	trade.ID = id // Update the domain object with the ID

	for _, lvl := range trade.Levels {
		lvl.TradeID = id
		if err := s.insertLevel(ctx, tx, lvl); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trade %s: %w", trade.Ticker, err)
	}
	s.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "ticker": trade.Ticker, "levels": len(trade.Levels)})
	return id, nil
}

// GetTrade retrieves a trade with its levels.
func (s *Store) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	row := s.db.QueryRowContext(ctx, selectTrade+` WHERE id = ?`, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}

	trade.Levels, err = s.loadLevels(ctx, id)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// ListTrades retrieves trades in the given statuses, newest first.
func (s *Store) ListTrades(ctx context.Context, statuses ...domain.TradeStatus) ([]*domain.Trade, error) {
	query := selectTrade + ` ORDER BY date_planned DESC, id DESC`
	args := make([]interface{}, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query = selectTrade + ` WHERE status IN (` + placeholders + `) ORDER BY date_planned DESC, id DESC`
		for _, st := range statuses {
			args = append(args, st)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during ListTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	for _, trade := range trades {
		trade.Levels, err = s.loadLevels(ctx, trade.ID)
		if err != nil {
			return nil, err
		}
	}
	return trades, nil
}

// ListActiveTrades retrieves every trade still watched by detection.
func (s *Store) ListActiveTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.ListTrades(ctx, domain.StatusPlan, domain.StatusOpen)
}

// SaveTradeWithLevels persists the trade and its full level set in one
// transaction. A closing trade without a sequence number is assigned the
// next one among closed trades.
func (s *Store) SaveTradeWithLevels(ctx context.Context, trade *domain.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for trade ID %d: %w", trade.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if trade.Status == domain.StatusClosed && trade.SeqNum == nil {
		var next int64
		err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq_num), 0) + 1 FROM trades WHERE status = ?`, domain.StatusClosed).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to assign sequence number for trade ID %d: %w", trade.ID, err)
		}
		trade.SeqNum = &next
	}

	const query = `
	UPDATE trades
	SET seq_num = ?, ticker = ?, strategy_id = ?, status = ?, units = ?, entry_price = ?,
	    stop_loss = ?, take_profit = ?, is_layered = ?, paper_trade = ?, date_planned = ?,
	    date_actual = ?, exit_date = ?, exit_type = ?, exit_price = ?, remaining_units = ?,
	    notes = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

	result, err := tx.ExecContext(ctx, query,
		nullInt64(trade.SeqNum), trade.Ticker, nullInt64(trade.StrategyID), trade.Status, trade.Units,
		trade.EntryPrice, trade.StopLoss, trade.TakeProfit, trade.IsLayered, trade.PaperTrade,
		trade.DatePlanned, nullTime(trade.DateActual), nullTime(trade.ExitDate), nullExitType(trade.ExitType),
		nullDecimal(trade.ExitPrice), nullInt64(trade.RemainingUnits), trade.Notes,
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w", trade.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrTradeNotFound)
	}

	// Reconcile level rows with the in-memory set
	existing := make(map[int64]bool)
	rows, err := tx.QueryContext(ctx, `SELECT id FROM exit_levels WHERE trade_id = ?`, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to query level IDs for trade ID %d: %w", trade.ID, err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan level ID for trade ID %d: %w", trade.ID, err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating level ID rows for trade ID %d: %w", trade.ID, err)
	}
	rows.Close()

	keep := make(map[int64]bool, len(trade.Levels))
	for _, lvl := range trade.Levels {
		lvl.TradeID = trade.ID
		if lvl.ID != 0 && existing[lvl.ID] {
			if err := s.updateLevel(ctx, tx, lvl); err != nil {
				return err
			}
		} else {
			if err := s.insertLevel(ctx, tx, lvl); err != nil {
				return err
			}
		}
		keep[lvl.ID] = true
	}
	for id := range existing {
		if !keep[id] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM exit_levels WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete level ID %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade ID %d: %w", trade.ID, err)
	}
	s.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status, "levels": len(trade.Levels)})
	return nil
}

// DeleteTrade removes a trade and its levels.
func (s *Store) DeleteTrade(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for delete trade ID %d: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exit_levels WHERE trade_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete levels for trade ID %d: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trade ID %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete trade ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for delete: %w", id, ports.ErrTradeNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of trade ID %d: %w", id, err)
	}
	s.logger.Debug(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
	return nil
}

// CountTradesByStrategy counts trades referencing a strategy.
func (s *Store) CountTradesByStrategy(ctx context.Context, strategyID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM trades WHERE strategy_id = ?`
	var count int
	if err := s.db.QueryRowContext(ctx, query, strategyID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades for strategy ID %d: %w", strategyID, err)
	}
	return count, nil
}

// --- Level helpers ---

func (s *Store) loadLevels(ctx context.Context, tradeID int64) ([]*domain.ExitLevel, error) {
	rows, err := s.db.QueryContext(ctx, selectLevel+` WHERE trade_id = ? ORDER BY level_type, order_index`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels for trade ID %d: %w", tradeID, err)
	}
	defer rows.Close()

	lvls := make([]*domain.ExitLevel, 0)
	for rows.Next() {
		lvl, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level for trade ID %d: %w", tradeID, err)
		}
		lvls = append(lvls, lvl)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level rows for trade ID %d: %w", tradeID, err)
	}
	return lvls, nil
}

func (s *Store) insertLevel(ctx context.Context, tx *sql.Tx, lvl *domain.ExitLevel) error {
	const query = `
	INSERT INTO exit_levels (trade_id, level_type, price, units_pct, order_index, status,
	                         hit_date, units_closed, move_sl_to_breakeven, price_original)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		lvl.TradeID, lvl.LevelType, lvl.Price, lvl.UnitsPct, lvl.OrderIndex, lvl.Status,
		nullTime(lvl.HitDate), nullInt64(lvl.UnitsClosed), lvl.MoveSLToBreakeven, nullDecimal(lvl.PriceOriginal))
	if err != nil {
		return fmt.Errorf("failed to insert level for trade ID %d: %w", lvl.TradeID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for level of trade ID %d: %w", lvl.TradeID, err)
	}
	lvl.ID = id
	return nil
}

func (s *Store) updateLevel(ctx context.Context, tx *sql.Tx, lvl *domain.ExitLevel) error {
	const query = `
	UPDATE exit_levels
	SET level_type = ?, price = ?, units_pct = ?, order_index = ?, status = ?,
	    hit_date = ?, units_closed = ?, move_sl_to_breakeven = ?, price_original = ?,
	    updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

	result, err := tx.ExecContext(ctx, query,
		lvl.LevelType, lvl.Price, lvl.UnitsPct, lvl.OrderIndex, lvl.Status,
		nullTime(lvl.HitDate), nullInt64(lvl.UnitsClosed), lvl.MoveSLToBreakeven, nullDecimal(lvl.PriceOriginal),
		lvl.ID)
	if err != nil {
		return fmt.Errorf("failed to update level ID %d: %w", lvl.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for level ID %d: %w", lvl.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("level ID %d not found for update: %w", lvl.ID, ports.ErrLevelNotFound)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var seqNum, strategyID, remainingUnits sql.NullInt64
	var dateActual, exitDate sql.NullTime
	var exitType sql.NullString
	var exitPrice decimal.NullDecimal
	err := s.Scan(
		&t.ID, &seqNum, &t.Ticker, &strategyID, &t.Status, &t.Units, &t.EntryPrice, &t.StopLoss, &t.TakeProfit,
		&t.IsLayered, &t.PaperTrade, &t.DatePlanned, &dateActual, &exitDate, &exitType, &exitPrice,
		&remainingUnits, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if seqNum.Valid {
		t.SeqNum = &seqNum.Int64
	}
	if strategyID.Valid {
		t.StrategyID = &strategyID.Int64
	}
	if remainingUnits.Valid {
		t.RemainingUnits = &remainingUnits.Int64
	}
	if dateActual.Valid {
		t.DateActual = &dateActual.Time
	}
	if exitDate.Valid {
		t.ExitDate = &exitDate.Time
	}
	if exitType.Valid {
		et := domain.ExitType(exitType.String)
		t.ExitType = &et
	}
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Decimal
	}
	return t, nil
}

// scanLevel scans a row into a domain.ExitLevel struct.
func scanLevel(s scanner) (*domain.ExitLevel, error) {
	l := &domain.ExitLevel{}
	var hitDate sql.NullTime
	var unitsClosed sql.NullInt64
	var priceOriginal decimal.NullDecimal
	err := s.Scan(
		&l.ID, &l.TradeID, &l.LevelType, &l.Price, &l.UnitsPct, &l.OrderIndex, &l.Status,
		&hitDate, &unitsClosed, &l.MoveSLToBreakeven, &priceOriginal, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if hitDate.Valid {
		l.HitDate = &hitDate.Time
	}
	if unitsClosed.Valid {
		l.UnitsClosed = &unitsClosed.Int64
	}
	if priceOriginal.Valid {
		l.PriceOriginal = &priceOriginal.Decimal
	}
	return l, nil
}

// --- Nullable conversion helpers ---

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullDecimal(q *domain.Quantity) decimal.NullDecimal {
	if q == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *q, Valid: true}
}

func nullExitType(et *domain.ExitType) sql.NullString {
	if et == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*et), Valid: true}
}
