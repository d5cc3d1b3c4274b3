// Package report aggregates closed trades into a realized performance
// summary for the reporting commands.
package report

import (
	"sort"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/levels"
)

// Summary holds the realized performance of a set of closed trades.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	TotalPnL     domain.Quantity
	WinRate      domain.Quantity // fraction of closed trades with positive PnL
	AverageWin   domain.Quantity
	AverageLoss  domain.Quantity
	ProfitFactor domain.Quantity // gross profit over gross loss
	Expectancy   domain.Quantity // average PnL per trade

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int

	// MonthlyPnL is keyed by the exit month, formatted 2006-01.
	MonthlyPnL map[string]domain.Quantity
}

// RealizedPnL computes the profit a closed trade actually took, signed for
// the trade's direction. Layered trades settle over their hit levels;
// simple trades over the recorded exit price. Open and planned trades
// have no realized profit.
func RealizedPnL(t *domain.Trade) domain.Quantity {
	if t.Status != domain.StatusClosed {
		return domain.ZeroQty
	}
	dir := domain.QtyFromInt(1)
	if !t.IsLong() {
		dir = domain.QtyFromInt(-1)
	}

	hits := levels.Hit(t.Levels)
	if len(hits) > 0 {
		pnl := domain.ZeroQty
		for _, lvl := range hits {
			if lvl.UnitsClosed == nil {
				continue
			}
			move := lvl.Price.Sub(t.EntryPrice).Mul(domain.QtyFromInt(*lvl.UnitsClosed))
			pnl = pnl.Add(move)
		}
		return pnl.Mul(dir)
	}

	if t.ExitPrice != nil {
		return t.ExitPrice.Sub(t.EntryPrice).Mul(domain.QtyFromInt(t.Units)).Mul(dir)
	}
	return domain.ZeroQty
}

// Summarize folds the closed trades among the input into a Summary.
// Trades are walked in exit date order so the consecutive win and loss
// streaks follow the journal's actual history.
func Summarize(trades []*domain.Trade) *Summary {
	closed := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == domain.StatusClosed {
			closed = append(closed, t)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		di, dj := closed[i].ExitDate, closed[j].ExitDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	s := &Summary{
		TotalTrades: len(closed),
		MonthlyPnL:  make(map[string]domain.Quantity),
	}
	grossProfit := domain.ZeroQty
	grossLoss := domain.ZeroQty
	consecutiveWins := 0
	consecutiveLosses := 0

	for _, t := range closed {
		pnl := RealizedPnL(t)
		s.TotalPnL = s.TotalPnL.Add(pnl)

		switch {
		case pnl.IsPositive():
			s.WinningTrades++
			grossProfit = grossProfit.Add(pnl)
			consecutiveWins++
			consecutiveLosses = 0
			if consecutiveWins > s.MaxConsecutiveWins {
				s.MaxConsecutiveWins = consecutiveWins
			}
		case pnl.IsNegative():
			s.LosingTrades++
			grossLoss = grossLoss.Add(pnl)
			consecutiveLosses++
			consecutiveWins = 0
			if consecutiveLosses > s.MaxConsecutiveLosses {
				s.MaxConsecutiveLosses = consecutiveLosses
			}
		default:
			consecutiveWins = 0
			consecutiveLosses = 0
		}

		if t.ExitDate != nil {
			month := t.ExitDate.Format("2006-01")
			s.MonthlyPnL[month] = s.MonthlyPnL[month].Add(pnl)
		}
	}

	if s.TotalTrades > 0 {
		total := domain.QtyFromInt(int64(s.TotalTrades))
		s.WinRate = domain.QtyFromInt(int64(s.WinningTrades)).Div(total)
		s.Expectancy = s.TotalPnL.Div(total)
	}
	if s.WinningTrades > 0 {
		s.AverageWin = grossProfit.Div(domain.QtyFromInt(int64(s.WinningTrades)))
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = grossLoss.Div(domain.QtyFromInt(int64(s.LosingTrades)))
	}
	if !grossLoss.IsZero() {
		s.ProfitFactor = grossProfit.Div(grossLoss.Abs())
	}
	return s
}
