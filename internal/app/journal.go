package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/levels"
	"tradeSentinel/internal/metrics"
	"tradeSentinel/internal/ports"
)

// TradeMetrics bundles a trade with its static risk profile and, for
// active trades with an observable quote, the live distances.
type TradeMetrics struct {
	Trade  *domain.Trade
	Static metrics.Static
	Live   *metrics.Live // Nil for closed trades or when no quote is observable
}

// --- Trades ---

// CreateTrade validates and persists a new planned trade. A trade created
// without explicit levels gets the implicit full-weight stop and target
// pair, so every trade settles through the level ledger.
func (s *Service) CreateTrade(ctx context.Context, trade *domain.Trade) (*domain.Trade, error) {
	op := "CreateTrade"
	s.mu.Lock()
	defer s.mu.Unlock()

	if trade == nil {
		return nil, fmt.Errorf("%s: trade is required: %w", op, ports.ErrInvalidRequest)
	}
	trade.Ticker = strings.ToUpper(strings.TrimSpace(trade.Ticker))
	if trade.Ticker == "" {
		return nil, fmt.Errorf("%s: ticker is required: %w", op, ports.ErrInvalidRequest)
	}
	if trade.Units <= 0 {
		return nil, fmt.Errorf("%s: units must be positive: %w", op, ports.ErrInvalidRequest)
	}
	if !trade.EntryPrice.IsPositive() {
		return nil, fmt.Errorf("%s: entry price must be positive: %w", op, ports.ErrInvalidRequest)
	}

	if trade.StrategyID != nil {
		strategy, err := s.store.GetStrategy(ctx, *trade.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if strategy == nil {
			return nil, fmt.Errorf("%s: strategy ID %d: %w", op, *trade.StrategyID, ports.ErrStrategyNotFound)
		}
	}

	// Every trade is born as a plan; opening and closing go through
	// UpdateTrade or detection.
	trade.Status = domain.StatusPlan
	trade.SeqNum = nil
	trade.DateActual = nil
	trade.ExitDate = nil
	trade.ExitType = nil
	trade.ExitPrice = nil
	if trade.DatePlanned.IsZero() {
		trade.DatePlanned = time.Now().UTC()
	}

	if len(trade.Levels) == 0 {
		if !trade.StopLoss.IsPositive() || !trade.TakeProfit.IsPositive() {
			return nil, fmt.Errorf("%s: stop loss and take profit must be positive: %w", op, ports.ErrInvalidRequest)
		}
		trade.Levels = levels.Synthetic(trade)
	}
	trade.IsLayered = levels.IsLayeredSet(trade.Levels)
	levels.RefreshAggregates(trade)
	if err := levels.Validate(trade, trade.Levels); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	remaining := levels.RemainingUnits(trade)
	trade.RemainingUnits = &remaining

	id, err := s.store.CreateTrade(ctx, trade)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	trade.ID = id

	s.logger.Info(ctx, "Trade planned", map[string]interface{}{
		"tradeID": id, "ticker": trade.Ticker, "units": trade.Units, "layered": trade.IsLayered,
	})
	return trade, nil
}

// UpdateTrade applies edits to an existing trade, enforcing the lifecycle:
// a plan may open, an open trade may close, a closed trade is immutable.
// Level edits go through ReplaceLevels; the stored level set is carried
// over, except that a simple trade repoints its implicit pending levels at
// the edited stop and target.
func (s *Service) UpdateTrade(ctx context.Context, trade *domain.Trade) (*domain.Trade, error) {
	op := "UpdateTrade"
	s.mu.Lock()
	defer s.mu.Unlock()

	if trade == nil {
		return nil, fmt.Errorf("%s: trade is required: %w", op, ports.ErrInvalidRequest)
	}
	existing, err := s.store.GetTrade(ctx, trade.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, trade.ID, ports.ErrTradeNotFound)
	}
	if existing.Status == domain.StatusClosed {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, trade.ID, ports.ErrTradeClosed)
	}

	trade.Ticker = strings.ToUpper(strings.TrimSpace(trade.Ticker))
	if trade.Ticker == "" {
		return nil, fmt.Errorf("%s: ticker is required: %w", op, ports.ErrInvalidRequest)
	}
	if trade.Units <= 0 || !trade.EntryPrice.IsPositive() {
		return nil, fmt.Errorf("%s: units and entry price must be positive: %w", op, ports.ErrInvalidRequest)
	}
	if trade.StrategyID != nil && (existing.StrategyID == nil || *existing.StrategyID != *trade.StrategyID) {
		strategy, err := s.store.GetStrategy(ctx, *trade.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if strategy == nil {
			return nil, fmt.Errorf("%s: strategy ID %d: %w", op, *trade.StrategyID, ports.ErrStrategyNotFound)
		}
	}

	if trade.Status == "" {
		trade.Status = existing.Status
	}
	if err := validateTransition(existing.Status, trade.Status); err != nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, trade.ID, err)
	}
	switch {
	case existing.Status == domain.StatusPlan && trade.Status == domain.StatusOpen:
		if trade.DateActual == nil {
			now := time.Now().UTC()
			trade.DateActual = &now
		}
	case existing.Status == domain.StatusOpen && trade.Status == domain.StatusClosed:
		if trade.ExitPrice == nil || trade.ExitType == nil {
			return nil, fmt.Errorf("%s: closing trade ID %d requires an exit price and exit type: %w", op, trade.ID, ports.ErrInvalidRequest)
		}
		if trade.ExitDate == nil {
			now := time.Now().UTC()
			trade.ExitDate = &now
		}
	}
	if trade.Status != domain.StatusClosed {
		trade.ExitDate = nil
		trade.ExitType = nil
		trade.ExitPrice = nil
	}
	if trade.Status == domain.StatusOpen && trade.DateActual == nil {
		trade.DateActual = existing.DateActual
	}

	// Levels are managed by ReplaceLevels and settlement; carry the
	// stored set over.
	trade.Levels = existing.Levels
	trade.SeqNum = existing.SeqNum

	if !existing.IsLayered {
		for _, lvl := range trade.Levels {
			if !lvl.IsPending() {
				continue
			}
			switch lvl.LevelType {
			case domain.LevelStopLoss:
				lvl.Price = trade.StopLoss
			case domain.LevelTakeProfit:
				lvl.Price = trade.TakeProfit
			}
		}
	}

	trade.IsLayered = levels.IsLayeredSet(trade.Levels)
	levels.RefreshAggregates(trade)
	if err := levels.Validate(trade, trade.Levels); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade.Status == domain.StatusClosed {
		levels.CancelPending(trade.Levels)
	}
	remaining := levels.RemainingUnits(trade)
	trade.RemainingUnits = &remaining

	if err := s.store.SaveTradeWithLevels(ctx, trade); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, "Trade updated", map[string]interface{}{
		"tradeID": trade.ID, "ticker": trade.Ticker, "from": existing.Status, "to": trade.Status,
	})
	return trade, nil
}

// GetTrade retrieves a trade with its levels.
func (s *Service) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade ID %d: %w", id, ports.ErrTradeNotFound)
	}
	return trade, nil
}

// ListTrades retrieves trades in the given statuses, newest first. An
// empty status list means all trades.
func (s *Service) ListTrades(ctx context.Context, statuses ...domain.TradeStatus) ([]*domain.Trade, error) {
	return s.store.ListTrades(ctx, statuses...)
}

// DeleteTrade removes a trade and its levels from the journal.
func (s *Service) DeleteTrade(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteTrade(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
	return nil
}

// --- Exit Levels ---

// ReplaceLevels swaps the editable part of a trade's level ladder. Hit and
// cancelled levels are preserved as settled history; the incoming levels
// replace only the pending ones. The merged set is validated as a whole,
// so the replacement must still cover the position.
func (s *Service) ReplaceLevels(ctx context.Context, tradeID int64, incoming []*domain.ExitLevel) (*domain.Trade, error) {
	op := "ReplaceLevels"
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeNotFound)
	}
	if trade.Status == domain.StatusClosed {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeClosed)
	}

	merged := levels.MergeForReplace(trade.Levels, incoming)
	if err := levels.Validate(trade, merged); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	trade.Levels = merged
	trade.IsLayered = levels.IsLayeredSet(merged)
	levels.RefreshAggregates(trade)
	remaining := levels.RemainingUnits(trade)
	trade.RemainingUnits = &remaining

	if err := s.store.SaveTradeWithLevels(ctx, trade); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, "Exit levels replaced", map[string]interface{}{
		"tradeID": tradeID, "levels": len(merged), "layered": trade.IsLayered,
	})
	return trade, nil
}

// MarkLevelHit settles one pending level manually, as of hitDate (now when
// nil), optionally recording a manual fill price. A breakeven instruction
// from the ledger is applied immediately. When the hit closes the last
// units the trade is closed with its weighted exit.
func (s *Service) MarkLevelHit(ctx context.Context, tradeID, levelID int64, hitDate *time.Time, priceOverride *domain.Quantity) (*domain.Trade, error) {
	op := "MarkLevelHit"
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeNotFound)
	}
	if trade.Status != domain.StatusOpen {
		return nil, fmt.Errorf("%s: trade ID %d is %s, only open trades settle levels: %w", op, tradeID, trade.Status, ports.ErrInvalidTransition)
	}
	lvl := findLevelByID(trade.Levels, levelID)
	if lvl == nil {
		return nil, fmt.Errorf("%s: level ID %d on trade ID %d: %w", op, levelID, tradeID, ports.ErrLevelNotFound)
	}

	when := time.Now().UTC()
	if hitDate != nil {
		when = hitDate.UTC()
	}

	unitsClosed, move, err := levels.MarkHit(trade, lvl, when, priceOverride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if move != nil {
		levels.ApplyBreakeven(trade, move)
		s.logger.Info(ctx, "Pending stops moved to breakeven", map[string]interface{}{
			"tradeID": tradeID, "price": move.Price.String(), "stops": len(move.LevelIDs),
		})
	}
	levels.RefreshAggregates(trade)

	if levels.RemainingUnits(trade) == 0 {
		price, exitDate, exitType, werr := levels.WeightedExit(trade)
		if werr != nil {
			return nil, fmt.Errorf("%s: %w", op, werr)
		}
		levels.CancelPending(trade.Levels)
		trade.Status = domain.StatusClosed
		trade.ExitPrice = &price
		trade.ExitDate = &exitDate
		trade.ExitType = &exitType
	}
	remaining := levels.RemainingUnits(trade)
	trade.RemainingUnits = &remaining

	if err := s.store.SaveTradeWithLevels(ctx, trade); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, "Exit level settled", map[string]interface{}{
		"tradeID": tradeID, "level": lvl.Label(), "unitsClosed": unitsClosed, "remaining": remaining, "status": trade.Status,
	})
	return trade, nil
}

// RevertLevelHit undoes a mistaken settlement, restoring pre-breakeven
// stop prices where the ledger stashed them. Reverting a hit on a trade
// the settlement closed reopens the trade.
func (s *Service) RevertLevelHit(ctx context.Context, tradeID, levelID int64) (*domain.Trade, error) {
	op := "RevertLevelHit"
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeNotFound)
	}
	lvl := findLevelByID(trade.Levels, levelID)
	if lvl == nil {
		return nil, fmt.Errorf("%s: level ID %d on trade ID %d: %w", op, levelID, tradeID, ports.ErrLevelNotFound)
	}

	// Reverting a hit on a trade the settlement closed reopens it: the
	// close bookkeeping is undone and the levels cancelled at close come
	// back armed. A trade closed without any hit has no hit to revert, so
	// it stays immutable.
	if trade.Status == domain.StatusClosed {
		if lvl.Status != domain.LevelHit {
			return nil, fmt.Errorf("%s: %w", op, &levels.InvalidRevertError{LevelID: lvl.ID, Reason: "level is not hit"})
		}
		trade.Status = domain.StatusOpen
		trade.SeqNum = nil
		trade.ExitDate = nil
		trade.ExitType = nil
		trade.ExitPrice = nil
		for _, l := range trade.Levels {
			if l.Status == domain.LevelCancelled {
				l.Status = domain.LevelPending
			}
		}
		s.logger.Info(ctx, "Trade reopened by level revert", map[string]interface{}{
			"tradeID": tradeID, "level": lvl.Label(),
		})
	}

	if err := levels.RevertHit(trade, lvl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	levels.RefreshAggregates(trade)
	remaining := levels.RemainingUnits(trade)
	trade.RemainingUnits = &remaining

	if err := s.store.SaveTradeWithLevels(ctx, trade); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, "Exit level hit reverted", map[string]interface{}{
		"tradeID": tradeID, "level": lvl.Label(), "remaining": remaining,
	})
	return trade, nil
}

// --- Strategies ---

// CreateStrategy registers a named strategy.
func (s *Service) CreateStrategy(ctx context.Context, name, description string) (*domain.Strategy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("strategy name is required: %w", ports.ErrInvalidRequest)
	}
	strategy := &domain.Strategy{Name: name, Description: strings.TrimSpace(description)}
	if _, err := s.store.CreateStrategy(ctx, strategy); err != nil {
		return nil, err
	}
	return strategy, nil
}

// GetStrategy retrieves a strategy by ID.
func (s *Service) GetStrategy(ctx context.Context, id int64) (*domain.Strategy, error) {
	strategy, err := s.store.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("strategy ID %d: %w", id, ports.ErrStrategyNotFound)
	}
	return strategy, nil
}

// ListStrategies retrieves all strategies ordered by name.
func (s *Service) ListStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	return s.store.ListStrategies(ctx)
}

// UpdateStrategy renames or redescribes a strategy.
func (s *Service) UpdateStrategy(ctx context.Context, strategy *domain.Strategy) error {
	if strategy == nil {
		return fmt.Errorf("strategy is required: %w", ports.ErrInvalidRequest)
	}
	strategy.Name = strings.TrimSpace(strategy.Name)
	if strategy.Name == "" {
		return fmt.Errorf("strategy name is required: %w", ports.ErrInvalidRequest)
	}
	return s.store.UpdateStrategy(ctx, strategy)
}

// DeleteStrategy removes a strategy no trade references.
func (s *Service) DeleteStrategy(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.store.CountTradesByStrategy(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("strategy ID %d is referenced by %d trades: %w", id, count, ports.ErrStrategyInUse)
	}
	return s.store.DeleteStrategy(ctx, id)
}

// --- Instruments ---

// SearchInstruments queries the provider for tradeable symbols.
func (s *Service) SearchInstruments(ctx context.Context, query string, limit int) ([]*domain.Instrument, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("no instrument search configured for this provider: %w", ports.ErrConfigurationError)
	}
	return s.searcher.Search(ctx, query, limit)
}

// AddInstrument saves a symbol to the local watchlist.
func (s *Service) AddInstrument(ctx context.Context, inst *domain.Instrument) error {
	if inst == nil || strings.TrimSpace(inst.Symbol) == "" {
		return fmt.Errorf("instrument symbol is required: %w", ports.ErrInvalidRequest)
	}
	inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
	return s.store.UpsertInstrument(ctx, inst)
}

// ListInstruments retrieves the local watchlist.
func (s *Service) ListInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	return s.store.ListInstruments(ctx)
}

// RemoveInstrument drops a symbol from the local watchlist.
func (s *Service) RemoveInstrument(ctx context.Context, symbol string) error {
	return s.store.DeleteInstrument(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// --- Metrics ---

// TradeMetrics computes the stored risk profile of a trade and, for active
// trades, its live distances against a fresh quote. A quote failure only
// costs the live half.
func (s *Service) TradeMetrics(ctx context.Context, tradeID int64) (*TradeMetrics, error) {
	op := "TradeMetrics"
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%s: trade ID %d: %w", op, tradeID, ports.ErrTradeNotFound)
	}

	result := &TradeMetrics{Trade: trade, Static: metrics.ComputeStatic(trade)}
	if !trade.Status.IsActive() {
		return result, nil
	}

	quoteCtx, cancelQuote := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	quotes, err := s.quotes.FetchQuotes(quoteCtx, []string{trade.Ticker})
	cancelQuote()
	if err != nil {
		s.logger.Warn(ctx, op+": live metrics unavailable", map[string]interface{}{
			"tradeID": tradeID, "ticker": trade.Ticker, "error": err.Error(),
		})
		return result, nil
	}
	result.Live = metrics.ComputeLive(trade, quotes[trade.Ticker])
	return result, nil
}

// validateTransition enforces the plan -> open -> close lifecycle.
func validateTransition(from, to domain.TradeStatus) error {
	if from == to {
		return nil
	}
	switch {
	case from == domain.StatusPlan && to == domain.StatusOpen:
		return nil
	case from == domain.StatusOpen && to == domain.StatusClosed:
		return nil
	case from == domain.StatusPlan && to == domain.StatusClosed:
		return fmt.Errorf("cannot close a trade that has not opened: %w", ports.ErrInvalidTransition)
	default:
		return fmt.Errorf("cannot move a trade from %s to %s: %w", from, to, ports.ErrInvalidTransition)
	}
}

func findLevelByID(lvls []*domain.ExitLevel, id int64) *domain.ExitLevel {
	for _, lvl := range lvls {
		if lvl.ID == id {
			return lvl
		}
	}
	return nil
}
