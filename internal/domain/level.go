package domain

import (
	"strconv"
	"time"
)

// ExitLevel is one rung of a trade's layered exit ladder: a price, the
// fraction of the position it closes, and its place in the per-type
// ordering. Simple trades carry a synthetic pair of full-weight levels so
// every trade settles through the same ledger.
type ExitLevel struct {
	ID      int64
	TradeID int64

	LevelType  LevelType
	Price      Quantity
	UnitsPct   Quantity // fraction of trade units in (0, 1]
	OrderIndex int      // 1-based, per level type

	Status      LevelStatus
	HitDate     *time.Time
	UnitsClosed *int64

	// MoveSLToBreakeven is only meaningful on take-profit levels. When
	// such a level is hit the ledger instructs the caller to move every
	// pending stop level to the entry price.
	MoveSLToBreakeven bool

	// PriceOriginal preserves the pre-breakeven price of a stop level so
	// a reverted hit can restore it.
	PriceOriginal *Quantity

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPending reports whether the level is still armed.
func (l *ExitLevel) IsPending() bool {
	return l.Status == LevelPending
}

// IsHit reports whether the level has been filled.
func (l *ExitLevel) IsHit() bool {
	return l.Status == LevelHit
}

// Label renders the conventional short name of a level, e.g. "TP1" or "SL2".
func (l *ExitLevel) Label() string {
	prefix := "SL"
	if l.LevelType == LevelTakeProfit {
		prefix = "TP"
	}
	return prefix + strconv.Itoa(l.OrderIndex)
}

// Clone returns a deep copy of the level.
func (l *ExitLevel) Clone() *ExitLevel {
	if l == nil {
		return nil
	}
	c := *l
	c.HitDate = cloneTime(l.HitDate)
	c.UnitsClosed = cloneInt64(l.UnitsClosed)
	c.PriceOriginal = cloneQty(l.PriceOriginal)
	return &c
}
