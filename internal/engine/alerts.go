package engine

import (
	"fmt"
	"time"

	"tradeSentinel/internal/domain"
)

// HitType says which side of a simple trade the quote reached. HitBoth
// marks a conflict: the range crossed stop and target in the same pass.
type HitType string

const (
	HitStopLoss   HitType = "sl"
	HitTakeProfit HitType = "tp"
	HitBoth       HitType = "both"
)

// EntryAlert reports that a planned trade's entry price was reached.
type EntryAlert struct {
	TradeID    int64
	Ticker     string
	Date       time.Time
	EntryPrice domain.Quantity
	QuotePrice domain.Quantity
	AutoOpened bool
	Message    string
}

// SLTPAlert reports a stop or target touch on a simple trade, or a
// same-pass conflict on either kind of trade.
type SLTPAlert struct {
	TradeID    int64
	Ticker     string
	HitType    HitType
	Date       time.Time
	Price      domain.Quantity
	AutoClosed bool
	Message    string
}

// LayeredAlert reports one exit level hit on a layered trade.
type LayeredAlert struct {
	TradeID              int64
	Ticker               string
	LevelID              int64
	Label                string
	LevelType            domain.LevelType
	Date                 time.Time
	Price                domain.Quantity
	UnitsClosed          int64
	RemainingUnits       int64
	MovedStopToBreakeven bool
	TradeClosed          bool
	AutoApplied          bool
	Message              string
}

const alertDateLayout = "2006-01-02"

func entryMessage(ticker string, when time.Time, price domain.Quantity, auto bool) string {
	if auto {
		return fmt.Sprintf("%s: Entry price hit on %s. Trade auto-opened at $%s.",
			ticker, when.Format(alertDateLayout), price.StringFixed(2))
	}
	return fmt.Sprintf("%s: Entry price hit on %s at $%s.",
		ticker, when.Format(alertDateLayout), price.StringFixed(2))
}

func sltpMessage(ticker string, hit HitType, when time.Time, price domain.Quantity, auto bool) string {
	if hit == HitBoth {
		return fmt.Sprintf("%s: Both Stop Loss and Take Profit hit on %s. Manual review required.",
			ticker, when.Format(alertDateLayout))
	}
	name := "Stop Loss"
	if hit == HitTakeProfit {
		name = "Take Profit"
	}
	if auto {
		return fmt.Sprintf("%s: %s hit on %s. Trade auto-closed at $%s.",
			ticker, name, when.Format(alertDateLayout), price.StringFixed(2))
	}
	return fmt.Sprintf("%s: %s hit on %s at $%s.",
		ticker, name, when.Format(alertDateLayout), price.StringFixed(2))
}

func layeredMessage(a LayeredAlert) string {
	msg := fmt.Sprintf("%s: %s hit on %s. Closed %d units at $%s.",
		a.Ticker, a.Label, a.Date.Format(alertDateLayout), a.UnitsClosed, a.Price.StringFixed(2))
	if a.TradeClosed {
		msg += " Trade fully closed."
	} else {
		msg += fmt.Sprintf(" %d units remaining.", a.RemainingUnits)
	}
	if a.MovedStopToBreakeven {
		msg += " Stop moved to breakeven."
	}
	return msg
}
