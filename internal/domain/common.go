package domain

// TradeStatus represents where a trade sits in its lifecycle.
type TradeStatus string

const (
	// StatusPlan is a planned trade waiting for its entry price.
	StatusPlan TradeStatus = "plan"
	// StatusOpen is a live trade with units in the market.
	StatusOpen TradeStatus = "open"
	// StatusClosed is a finished trade. Closed trades are immutable.
	StatusClosed TradeStatus = "close"
)

// IsActive reports whether a trade in this status is still evaluated
// by the detection engine.
func (s TradeStatus) IsActive() bool {
	return s == StatusPlan || s == StatusOpen
}

// LevelType distinguishes protective stops from profit targets.
type LevelType string

const (
	LevelStopLoss   LevelType = "sl"
	LevelTakeProfit LevelType = "tp"
)

// ExitType records which side of the position closed a trade.
// It shares the wire values of LevelType because a close is always
// attributed to a level type.
type ExitType string

const (
	ExitStopLoss   ExitType = "sl"
	ExitTakeProfit ExitType = "tp"
)

// LevelStatus represents the lifecycle of a single exit level.
type LevelStatus string

const (
	// LevelPending levels are armed and watched by the engine.
	LevelPending LevelStatus = "pending"
	// LevelHit levels have been filled, fully or as a partial close.
	LevelHit LevelStatus = "hit"
	// LevelCancelled levels no longer participate in settlement.
	LevelCancelled LevelStatus = "cancelled"
)

// Direction is the side of a position, derived from the ordering of the
// stop against the entry price. A stop below entry means long.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)
