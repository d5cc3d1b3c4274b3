// Package app orchestrates the trade journal: it runs detection passes
// against live quotes, replays stored history, and owns every journal
// mutation so the store and the level ledger stay consistent.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradeSentinel/config"
	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/engine"
	"tradeSentinel/internal/ports"
	"tradeSentinel/internal/report"
)

// Service orchestrates detection runs and journal operations.
type Service struct {
	cfg      *config.Config
	logger   ports.Logger
	store    ports.Store
	quotes   ports.QuoteSource
	history  ports.HistorySource      // Optional, SyncHistory fails without it
	searcher ports.InstrumentSearcher // Optional, SearchInstruments fails without it
	detector *engine.Detector

	mu sync.Mutex // Serializes detection passes against journal edits
}

// New creates a new application service instance.
func New(
	cfg *config.Config,
	logger ports.Logger,
	store ports.Store,
	quotes ports.QuoteSource,
	history ports.HistorySource,
	searcher ports.InstrumentSearcher,
) (*Service, error) {

	// Validate dependencies. The history source and searcher are optional
	// because not every provider offers them.
	if cfg == nil || logger == nil || store == nil || quotes == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	if cfg.QuoteTimeout <= 0 {
		return nil, fmt.Errorf("configuration QuoteTimeout must be positive")
	}

	detector, err := engine.New(engine.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		quotes:   quotes,
		history:  history,
		searcher: searcher,
		detector: detector,
	}, nil
}

// Start begins the periodic detection loop. It blocks until the context is
// canceled or a shutdown signal arrives. A zero CheckInterval runs one pass
// and returns.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting trade journal service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// First pass runs immediately so a restart catches up without waiting
	if _, err := s.RunDetection(ctx); err != nil {
		s.logger.Error(ctx, err, "Initial detection pass failed")
	}

	if s.cfg.CheckInterval <= 0 {
		s.logger.Info(ctx, "Check interval is zero, exiting after a single pass")
		return nil
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Trade journal service stopped.")
			return nil
		case <-ticker.C:
			if _, err := s.RunDetection(ctx); err != nil {
				s.logger.Error(ctx, err, "Detection pass failed")
			}
		}
	}
}

// RunDetection evaluates every active trade against current quotes, applies
// paper-trade transitions, and persists them.
func (s *Service) RunDetection(ctx context.Context) (*engine.Outcome, error) {
	op := "RunDetection"
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.store.ListActiveTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list active trades: %w", op, err)
	}
	if len(trades) == 0 {
		s.logger.Debug(ctx, op+": no active trades to evaluate")
		return &engine.Outcome{AsOf: time.Now().UTC()}, nil
	}

	symbols := collectSymbols(trades)

	quoteCtx, cancelQuotes := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	quotes, err := s.quotes.FetchQuotes(quoteCtx, symbols)
	cancelQuotes()
	if err != nil {
		// Fail open: evaluate with whatever came back. Invalid quotes are
		// skipped per trade, which beats dropping the whole pass.
		s.logger.Warn(ctx, op+": quote fetch degraded", map[string]interface{}{"error": err.Error(), "symbols": len(symbols)})
		if quotes == nil {
			quotes = make(map[string]*domain.Quote, len(symbols))
		}
		for _, symbol := range symbols {
			if quotes[symbol] == nil {
				quotes[symbol] = domain.InvalidQuote(symbol)
			}
		}
	}

	outcome := s.detector.Detect(ctx, trades, quotes)
	s.persistOutcome(ctx, outcome)
	return outcome, nil
}

// SyncHistory pulls daily bars for a ticker from the history source into
// the local store, returning how many bars were written.
func (s *Service) SyncHistory(ctx context.Context, ticker string) (int, error) {
	op := "SyncHistory"
	if s.history == nil {
		return 0, fmt.Errorf("%s: no history source configured: %w", op, ports.ErrConfigurationError)
	}
	if ticker == "" {
		return 0, fmt.Errorf("%s: ticker is required: %w", op, ports.ErrInvalidRequest)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -s.cfg.HistoryDays)
	latest, err := s.store.LatestBar(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if latest != nil && latest.Date.After(from) {
		// Refetch the newest stored day in case it settled late
		from = latest.Date
	}

	bars, err := s.history.FetchDailyBars(ctx, ticker, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.UpsertBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, op+" complete", map[string]interface{}{
		"ticker": ticker, "bars": len(bars), "from": from.Format("2006-01-02"),
	})
	return len(bars), nil
}

// Backfill replays stored daily bars through detection for one trade,
// settling anything that already hit while the service was not running.
// Each bar is a separate pass, so an entry touched on one day is only
// eligible for exits from the next bar onward.
func (s *Service) Backfill(ctx context.Context, tradeID int64) (*engine.Outcome, error) {
	op := "Backfill"
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeNotFound)
	}
	if !trade.Status.IsActive() {
		return nil, fmt.Errorf("%s: trade ID %d is already %s: %w", op, tradeID, trade.Status, ports.ErrTradeClosed)
	}

	from := trade.DatePlanned
	if trade.Status == domain.StatusOpen && trade.DateActual != nil {
		from = *trade.DateActual
	}

	bars, err := s.store.BarsSince(ctx, trade.Ticker, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(bars) == 0 {
		s.logger.Info(ctx, op+": no stored bars to replay", map[string]interface{}{"tradeID": tradeID, "ticker": trade.Ticker})
		return &engine.Outcome{AsOf: time.Now().UTC()}, nil
	}

	merged := &engine.Outcome{AsOf: time.Now().UTC()}
	current := trade
	for _, bar := range bars {
		outcome := s.detector.Detect(ctx, []*domain.Trade{current}, map[string]*domain.Quote{bar.Ticker: bar.Quote()})
		merged.Merge(outcome)
		if len(outcome.Transitions) > 0 {
			current = outcome.Transitions[len(outcome.Transitions)-1].Trade
		}
		if !current.Status.IsActive() {
			break
		}
	}

	// Only the final state needs persisting; intermediate transitions are
	// snapshots of the same trade.
	if current != trade {
		if err := s.store.SaveTradeWithLevels(ctx, current); err != nil {
			return merged, fmt.Errorf("%s: failed to persist replay result for trade ID %d: %w", op, tradeID, err)
		}
	}

	s.logger.Info(ctx, op+" complete", map[string]interface{}{
		"tradeID": tradeID, "bars": len(bars), "alerts": merged.TotalAlerts(), "status": current.Status,
	})
	return merged, nil
}

// BackfillAll replays stored bars for every active trade. A trade whose
// replay fails is logged and skipped so the rest still settle. The lock is
// taken per trade inside Backfill, not held across the whole sweep.
func (s *Service) BackfillAll(ctx context.Context) (*engine.Outcome, error) {
	op := "BackfillAll"
	trades, err := s.store.ListActiveTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list active trades: %w", op, err)
	}

	merged := &engine.Outcome{AsOf: time.Now().UTC()}
	for _, t := range trades {
		outcome, err := s.Backfill(ctx, t.ID)
		if err != nil {
			s.logger.Error(ctx, err, op+": replay failed, skipping trade", map[string]interface{}{
				"tradeID": t.ID, "ticker": t.Ticker,
			})
			continue
		}
		merged.Merge(outcome)
	}

	s.logger.Info(ctx, op+" complete", map[string]interface{}{
		"trades": len(trades), "alerts": merged.TotalAlerts(),
	})
	return merged, nil
}

// Summary aggregates realized performance across all closed trades.
func (s *Service) Summary(ctx context.Context) (*report.Summary, error) {
	trades, err := s.store.ListTrades(ctx, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed trades for summary: %w", err)
	}
	return report.Summarize(trades), nil
}

// persistOutcome saves transitioned trades one by one. A failed save is
// logged and skipped so one bad row cannot block the rest of the pass.
func (s *Service) persistOutcome(ctx context.Context, outcome *engine.Outcome) {
	for _, tr := range outcome.Transitions {
		if err := s.store.SaveTradeWithLevels(ctx, tr.Trade); err != nil {
			s.logger.Error(ctx, err, "Failed to persist trade transition", map[string]interface{}{
				"tradeID": tr.Trade.ID, "from": tr.FromStatus, "to": tr.ToStatus,
			})
			continue
		}
	}

	for _, a := range outcome.EntryAlerts {
		s.logger.Info(ctx, a.Message, map[string]interface{}{"tradeID": a.TradeID, "ticker": a.Ticker})
	}
	for _, a := range outcome.SLTPAlerts {
		s.logger.Info(ctx, a.Message, map[string]interface{}{"tradeID": a.TradeID, "ticker": a.Ticker, "hitType": a.HitType})
	}
	for _, a := range outcome.LayeredAlerts {
		s.logger.Info(ctx, a.Message, map[string]interface{}{"tradeID": a.TradeID, "ticker": a.Ticker, "level": a.Label})
	}
}

// collectSymbols returns the distinct tickers of the given trades,
// preserving first-seen order.
func collectSymbols(trades []*domain.Trade) []string {
	seen := make(map[string]bool, len(trades))
	symbols := make([]string, 0, len(trades))
	for _, t := range trades {
		if !seen[t.Ticker] {
			seen[t.Ticker] = true
			symbols = append(symbols, t.Ticker)
		}
	}
	return symbols
}
