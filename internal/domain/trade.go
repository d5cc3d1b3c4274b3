package domain

import "time"

// Trade is a journal entry moving through plan -> open -> close.
//
// StopLoss and TakeProfit always carry a usable value: the literal prices
// for a simple trade, or the unit-weighted aggregates derived from the
// exit levels for a layered one. SeqNum is assigned once, when the trade
// closes, and orders the closed history.
type Trade struct {
	ID         int64
	SeqNum     *int64 // set at close, nil before
	Ticker     string
	StrategyID *int64
	Status     TradeStatus

	Units      int64
	EntryPrice Quantity
	StopLoss   Quantity
	TakeProfit Quantity

	// IsLayered marks trades whose exits are split across weighted levels.
	// For layered trades StopLoss/TakeProfit are derived aggregates and
	// RemainingUnits tracks the units not yet closed by hit levels.
	IsLayered      bool
	RemainingUnits *int64

	// PaperTrade trades have their detected transitions applied
	// automatically; real trades only produce advisory alerts.
	PaperTrade bool

	DatePlanned time.Time
	DateActual  *time.Time // set when the trade opens
	ExitDate    *time.Time
	ExitType    *ExitType
	ExitPrice   *Quantity

	Notes  string
	Levels []*ExitLevel

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Direction derives the side of the trade from the ordering of the stop
// against the entry price. A stop below entry protects a long. A stop
// parked exactly at the entry, as after a breakeven move, no longer tells
// the side, so the target side decides.
func (t *Trade) Direction() Direction {
	switch {
	case t.StopLoss.LessThan(t.EntryPrice):
		return Long
	case t.StopLoss.GreaterThan(t.EntryPrice):
		return Short
	case t.TakeProfit.GreaterThan(t.EntryPrice):
		return Long
	default:
		return Short
	}
}

// IsLong reports whether the trade is long.
func (t *Trade) IsLong() bool {
	return t.Direction() == Long
}

// Amount is the notional committed at entry: entry price times units.
func (t *Trade) Amount() Quantity {
	return t.EntryPrice.Mul(QtyFromInt(t.Units))
}

// Clone returns a deep copy of the trade, including its exit levels.
// The detection engine evaluates clones so callers' inputs are never
// mutated in place.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	c := *t
	c.SeqNum = cloneInt64(t.SeqNum)
	c.StrategyID = cloneInt64(t.StrategyID)
	c.RemainingUnits = cloneInt64(t.RemainingUnits)
	c.DateActual = cloneTime(t.DateActual)
	c.ExitDate = cloneTime(t.ExitDate)
	if t.ExitType != nil {
		et := *t.ExitType
		c.ExitType = &et
	}
	c.ExitPrice = cloneQty(t.ExitPrice)
	if t.Levels != nil {
		c.Levels = make([]*ExitLevel, len(t.Levels))
		for i, lvl := range t.Levels {
			c.Levels[i] = lvl.Clone()
		}
	}
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneQty(v *Quantity) *Quantity {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
