// Package metrics derives the planned risk and profit profile of a trade
// and its live distances against a quote. Values are signed along the
// price axis: on a long, risk comes out negative and profit positive.
package metrics

import (
	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/levels"
)

// Static is the quote-independent profile of a trade.
type Static struct {
	Amount    domain.Quantity // notional committed at entry
	RiskAbs   domain.Quantity // (stop - entry) * units
	RiskPct   domain.Quantity
	ProfitAbs domain.Quantity // (target - entry) * units
	ProfitPct domain.Quantity
	Ratio     domain.Quantity // reward per unit of risk
}

// Live is the quote-dependent view of a trade. Fields are nil when they do
// not apply to the trade's status.
type Live struct {
	DistanceToSL     *domain.Quantity
	DistanceToTP     *domain.Quantity
	DistanceToEntry  *domain.Quantity
	UnrealizedPnL    *domain.Quantity
	UnrealizedPnLPct *domain.Quantity
}

// ComputeStatic builds the static profile. For layered trades the stop and
// target are the unit-weighted aggregates of the level ladder. A zero
// notional yields zero percentages rather than an error, and a zero risk
// yields a zero ratio.
func ComputeStatic(t *domain.Trade) Static {
	stop := t.StopLoss
	target := t.TakeProfit
	if t.IsLayered {
		if sl := levels.DeriveAggregatePrice(t.Levels, domain.LevelStopLoss); sl != nil {
			stop = *sl
		}
		if tp := levels.DeriveAggregatePrice(t.Levels, domain.LevelTakeProfit); tp != nil {
			target = *tp
		}
	}

	units := domain.QtyFromInt(t.Units)
	amount := t.EntryPrice.Mul(units)
	riskAbs := stop.Sub(t.EntryPrice).Mul(units)
	profitAbs := target.Sub(t.EntryPrice).Mul(units)

	m := Static{
		Amount:    amount,
		RiskAbs:   riskAbs,
		RiskPct:   safeDiv(riskAbs, amount),
		ProfitAbs: profitAbs,
		ProfitPct: safeDiv(profitAbs, amount),
	}
	if !riskAbs.IsZero() {
		m.Ratio = profitAbs.Neg().Div(riskAbs)
	} else {
		m.Ratio = domain.ZeroQty
	}
	return m
}

// ComputeLive builds the quote-dependent view. An unobservable quote, or a
// trade that is neither planned nor open, yields nil: the metrics are
// unknowable, never zero.
func ComputeLive(t *domain.Trade, q *domain.Quote) *Live {
	if !q.Observable() {
		return nil
	}
	price := *q.Price

	switch t.Status {
	case domain.StatusPlan:
		d := safeDiv(price.Sub(t.EntryPrice), t.EntryPrice)
		return &Live{DistanceToEntry: &d}
	case domain.StatusOpen:
		stop := t.StopLoss
		target := t.TakeProfit
		if t.IsLayered {
			if sl := levels.DeriveAggregatePrice(t.Levels, domain.LevelStopLoss); sl != nil {
				stop = *sl
			}
			if tp := levels.DeriveAggregatePrice(t.Levels, domain.LevelTakeProfit); tp != nil {
				target = *tp
			}
		}
		dsl := price.Sub(stop).Div(price)
		dtp := target.Sub(price).Div(price)
		pnl := price.Sub(t.EntryPrice).Mul(domain.QtyFromInt(t.Units))
		pct := safeDiv(price.Sub(t.EntryPrice), t.EntryPrice)
		return &Live{
			DistanceToSL:     &dsl,
			DistanceToTP:     &dtp,
			UnrealizedPnL:    &pnl,
			UnrealizedPnLPct: &pct,
		}
	default:
		return nil
	}
}

func safeDiv(num, den domain.Quantity) domain.Quantity {
	if den.IsZero() {
		return domain.ZeroQty
	}
	return num.Div(den)
}
