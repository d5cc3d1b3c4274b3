// Package levels is the exit-level ledger: validation, weighted aggregate
// prices, hit and revert bookkeeping, and the derived settlement of a trade
// once its levels have closed every unit. All unit arithmetic is recomputed
// from the level set, never tracked incrementally.
package levels

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeSentinel/internal/domain"
)

// weightTolerance is the slack allowed when per-type unit weights are
// compared against the full position.
var weightTolerance = decimal.NewFromFloat(0.001)

var fullWeight = decimal.NewFromInt(1)

// BreakevenMove instructs the caller to reprice the trade's pending stop
// levels to the entry price. MarkHit returns it instead of rewriting the
// stops itself, so callers can surface the move in alerts and decide when
// to apply it.
type BreakevenMove struct {
	TradeID  int64
	Price    domain.Quantity
	LevelIDs []int64
}

// NonCancelled filters out cancelled levels.
func NonCancelled(lvls []*domain.ExitLevel) []*domain.ExitLevel {
	out := make([]*domain.ExitLevel, 0, len(lvls))
	for _, l := range lvls {
		if l.Status != domain.LevelCancelled {
			out = append(out, l)
		}
	}
	return out
}

// OfType returns the levels of one type, cancelled ones excluded.
func OfType(lvls []*domain.ExitLevel, lt domain.LevelType) []*domain.ExitLevel {
	out := make([]*domain.ExitLevel, 0, len(lvls))
	for _, l := range lvls {
		if l.Status != domain.LevelCancelled && l.LevelType == lt {
			out = append(out, l)
		}
	}
	return out
}

// Pending returns the levels still armed.
func Pending(lvls []*domain.ExitLevel) []*domain.ExitLevel {
	out := make([]*domain.ExitLevel, 0, len(lvls))
	for _, l := range lvls {
		if l.Status == domain.LevelPending {
			out = append(out, l)
		}
	}
	return out
}

// Hit returns the levels already filled.
func Hit(lvls []*domain.ExitLevel) []*domain.ExitLevel {
	out := make([]*domain.ExitLevel, 0, len(lvls))
	for _, l := range lvls {
		if l.Status == domain.LevelHit {
			out = append(out, l)
		}
	}
	return out
}

// Validate checks a full level set against the trade it belongs to.
//
// Per type, the unit weights of non-cancelled levels must sum to 1.0
// within tolerance; an absent type fails the same check with a zero sum.
// Each level needs a positive price, a weight in (0, 1], a unique positive
// order index within its type, and the breakeven flag only on take-profit
// levels. Stop levels must sit on the protective side of the entry for the
// trade's direction; equality is allowed so breakeven stops stay valid.
func Validate(trade *domain.Trade, lvls []*domain.ExitLevel) error {
	for _, lt := range []domain.LevelType{domain.LevelStopLoss, domain.LevelTakeProfit} {
		group := OfType(lvls, lt)
		sum := domain.ZeroQty
		seen := make(map[int]bool, len(group))
		for _, l := range group {
			if !l.Price.IsPositive() {
				return &LevelValueError{LevelType: lt, OrderIndex: l.OrderIndex, Field: "price", Reason: "must be positive"}
			}
			if !l.UnitsPct.IsPositive() || l.UnitsPct.GreaterThan(fullWeight) {
				return &LevelValueError{LevelType: lt, OrderIndex: l.OrderIndex, Field: "unitsPct", Reason: "must be in (0, 1]"}
			}
			if l.OrderIndex < 1 {
				return &LevelValueError{LevelType: lt, OrderIndex: l.OrderIndex, Field: "orderIndex", Reason: "must be positive"}
			}
			if seen[l.OrderIndex] {
				return &LevelValueError{LevelType: lt, OrderIndex: l.OrderIndex, Field: "orderIndex", Reason: "is duplicated"}
			}
			seen[l.OrderIndex] = true
			if l.MoveSLToBreakeven && lt == domain.LevelStopLoss {
				return &LevelValueError{LevelType: lt, OrderIndex: l.OrderIndex, Field: "moveSlToBreakeven", Reason: "is only allowed on take-profit levels"}
			}
			sum = sum.Add(l.UnitsPct)
		}
		if sum.Sub(fullWeight).Abs().GreaterThan(weightTolerance) {
			return &LevelWeightError{LevelType: lt, Sum: sum}
		}
	}

	stop := DeriveAggregatePrice(lvls, domain.LevelStopLoss)
	if stop == nil {
		return nil
	}
	long := stop.LessThan(trade.EntryPrice)
	if stop.Equal(trade.EntryPrice) {
		// stops parked at the entry after a breakeven move no longer tell
		// the direction; the target side does
		if target := DeriveAggregatePrice(lvls, domain.LevelTakeProfit); target != nil {
			long = target.GreaterThan(trade.EntryPrice)
		}
	}
	for _, l := range NonCancelled(lvls) {
		onProtectiveSide := true
		switch {
		case l.LevelType == domain.LevelStopLoss && long:
			onProtectiveSide = l.Price.LessThanOrEqual(trade.EntryPrice)
		case l.LevelType == domain.LevelStopLoss && !long:
			onProtectiveSide = l.Price.GreaterThanOrEqual(trade.EntryPrice)
		case l.LevelType == domain.LevelTakeProfit && long:
			onProtectiveSide = l.Price.GreaterThanOrEqual(trade.EntryPrice)
		case l.LevelType == domain.LevelTakeProfit && !long:
			onProtectiveSide = l.Price.LessThanOrEqual(trade.EntryPrice)
		}
		if !onProtectiveSide {
			return &LevelValueError{LevelType: l.LevelType, OrderIndex: l.OrderIndex, Field: "price", Reason: "is on the wrong side of the entry price"}
		}
	}
	return nil
}

// DeriveAggregatePrice computes the unit-weighted average price of the
// non-cancelled levels of one type. Returns nil when the type has no
// levels left.
func DeriveAggregatePrice(lvls []*domain.ExitLevel, lt domain.LevelType) *domain.Quantity {
	num := domain.ZeroQty
	den := domain.ZeroQty
	for _, l := range OfType(lvls, lt) {
		num = num.Add(l.Price.Mul(l.UnitsPct))
		den = den.Add(l.UnitsPct)
	}
	if den.IsZero() {
		return nil
	}
	avg := num.Div(den)
	return &avg
}

// RefreshAggregates rewrites the trade's stop and target from its current
// level set. Layered trades keep their headline prices in sync with the
// ladder this way; a type with no levels left keeps its last value.
func RefreshAggregates(trade *domain.Trade) {
	if !trade.IsLayered {
		return
	}
	if sl := DeriveAggregatePrice(trade.Levels, domain.LevelStopLoss); sl != nil {
		trade.StopLoss = *sl
	}
	if tp := DeriveAggregatePrice(trade.Levels, domain.LevelTakeProfit); tp != nil {
		trade.TakeProfit = *tp
	}
}

// RemainingUnits derives the units not yet closed by hit levels. The value
// is always recomputed from the level set.
func RemainingUnits(trade *domain.Trade) int64 {
	closed := int64(0)
	for _, l := range trade.Levels {
		if l.Status == domain.LevelHit && l.UnitsClosed != nil {
			closed += *l.UnitsClosed
		}
	}
	rem := trade.Units - closed
	if rem < 0 {
		rem = 0
	}
	return rem
}

// MarkHit transitions a pending level to hit as of hitDate and returns the
// units it closes. A non-nil priceOverride records a manual fill price on
// the level before settlement math runs.
//
// Units are rounded half away from zero and clamped to the remaining
// position; the last pending level of its type absorbs any rounding
// residue so a fully hit ladder always closes the position exactly. When a
// take-profit level flagged MoveSLToBreakeven is hit, the returned
// BreakevenMove names the pending stop levels to reprice; the caller
// applies it via ApplyBreakeven.
func MarkHit(trade *domain.Trade, lvl *domain.ExitLevel, hitDate time.Time, priceOverride *domain.Quantity) (int64, *BreakevenMove, error) {
	if lvl.Status != domain.LevelPending {
		return 0, nil, fmt.Errorf("level %s is %s: %w", lvl.Label(), lvl.Status, ErrLevelNotPending)
	}
	remaining := RemainingUnits(trade)
	if remaining <= 0 {
		return 0, nil, ErrNoUnitsRemaining
	}
	if priceOverride != nil {
		lvl.Price = *priceOverride
	}

	units := decimal.NewFromInt(trade.Units).Mul(lvl.UnitsPct).Round(0).IntPart()
	if lastPendingOfType(trade.Levels, lvl) {
		units = remaining
	}
	if units > remaining {
		units = remaining
	}
	if units < 0 {
		units = 0
	}

	hd := hitDate
	lvl.Status = domain.LevelHit
	lvl.HitDate = &hd
	lvl.UnitsClosed = &units

	rem := RemainingUnits(trade)
	trade.RemainingUnits = &rem

	var move *BreakevenMove
	if lvl.LevelType == domain.LevelTakeProfit && lvl.MoveSLToBreakeven {
		ids := make([]int64, 0, len(trade.Levels))
		for _, sl := range trade.Levels {
			if sl.LevelType == domain.LevelStopLoss && sl.Status == domain.LevelPending {
				ids = append(ids, sl.ID)
			}
		}
		if len(ids) > 0 {
			move = &BreakevenMove{TradeID: trade.ID, Price: trade.EntryPrice, LevelIDs: ids}
		}
	}
	return units, move, nil
}

// ApplyBreakeven reprices every pending stop level to the move price,
// stashing each level's first original price so a revert can restore it.
func ApplyBreakeven(trade *domain.Trade, move *BreakevenMove) {
	if move == nil {
		return
	}
	for _, l := range trade.Levels {
		if l.LevelType != domain.LevelStopLoss || l.Status != domain.LevelPending {
			continue
		}
		if l.PriceOriginal == nil {
			orig := l.Price
			l.PriceOriginal = &orig
		}
		l.Price = move.Price
	}
	RefreshAggregates(trade)
}

// RevertHit returns a hit level to pending and recomputes the trade's
// remaining units from scratch. Only levels of an open trade can be
// reverted. Reverting the last hit breakeven take-profit also restores the
// stashed prices of the stop levels it had moved.
func RevertHit(trade *domain.Trade, lvl *domain.ExitLevel) error {
	if trade.Status != domain.StatusOpen {
		return &InvalidRevertError{LevelID: lvl.ID, Reason: "trade is not open"}
	}
	if lvl.Status != domain.LevelHit {
		return &InvalidRevertError{LevelID: lvl.ID, Reason: "level is not hit"}
	}

	wasBreakevenSource := lvl.LevelType == domain.LevelTakeProfit && lvl.MoveSLToBreakeven

	lvl.Status = domain.LevelPending
	lvl.HitDate = nil
	lvl.UnitsClosed = nil

	if wasBreakevenSource && !hasHitBreakevenTarget(trade.Levels) {
		for _, sl := range trade.Levels {
			if sl.LevelType == domain.LevelStopLoss && sl.Status == domain.LevelPending && sl.PriceOriginal != nil {
				sl.Price = *sl.PriceOriginal
				sl.PriceOriginal = nil
			}
		}
	}

	rem := RemainingUnits(trade)
	trade.RemainingUnits = &rem
	RefreshAggregates(trade)
	return nil
}

// CancelPending cancels every level still armed. Used when a trade closes
// with levels of the other type outstanding.
func CancelPending(lvls []*domain.ExitLevel) {
	for _, l := range lvls {
		if l.Status == domain.LevelPending {
			l.Status = domain.LevelCancelled
		}
	}
}

// Synthetic builds the full-weight stop and target pair for a simple
// trade, so simple and layered trades settle through the same ledger.
func Synthetic(trade *domain.Trade) []*domain.ExitLevel {
	return []*domain.ExitLevel{
		{
			TradeID:    trade.ID,
			LevelType:  domain.LevelStopLoss,
			Price:      trade.StopLoss,
			UnitsPct:   fullWeight,
			OrderIndex: 1,
			Status:     domain.LevelPending,
		},
		{
			TradeID:    trade.ID,
			LevelType:  domain.LevelTakeProfit,
			Price:      trade.TakeProfit,
			UnitsPct:   fullWeight,
			OrderIndex: 1,
			Status:     domain.LevelPending,
		},
	}
}

// IsLayeredSet reports whether a level set describes a layered exit:
// more than one non-cancelled level of a type, or any partial weight.
func IsLayeredSet(lvls []*domain.ExitLevel) bool {
	counts := map[domain.LevelType]int{}
	for _, l := range NonCancelled(lvls) {
		counts[l.LevelType]++
		if !l.UnitsPct.Equal(fullWeight) {
			return true
		}
	}
	return counts[domain.LevelStopLoss] > 1 || counts[domain.LevelTakeProfit] > 1
}

// MergeForReplace combines the trade's settled history with a replacement
// ladder: hit and cancelled levels are preserved as-is, the incoming
// levels replace the pending ones and get fresh per-type order indexes
// continuing after the preserved non-cancelled levels. The caller
// validates the merged set before persisting it.
func MergeForReplace(existing, incoming []*domain.ExitLevel) []*domain.ExitLevel {
	merged := make([]*domain.ExitLevel, 0, len(existing)+len(incoming))
	next := map[domain.LevelType]int{
		domain.LevelStopLoss:   1,
		domain.LevelTakeProfit: 1,
	}
	for _, l := range existing {
		if l.Status == domain.LevelPending {
			continue
		}
		merged = append(merged, l)
		if l.Status != domain.LevelCancelled && l.OrderIndex >= next[l.LevelType] {
			next[l.LevelType] = l.OrderIndex + 1
		}
	}
	for _, l := range incoming {
		l.Status = domain.LevelPending
		l.HitDate = nil
		l.UnitsClosed = nil
		l.OrderIndex = next[l.LevelType]
		next[l.LevelType]++
		merged = append(merged, l)
	}
	return merged
}

// WeightedExit derives the settlement of a fully or manually closed trade
// from its hit levels: the unit-weighted average fill price, the latest
// hit date, and the exit type owning the majority of closed units, with
// take-profit winning ties.
func WeightedExit(trade *domain.Trade) (domain.Quantity, time.Time, domain.ExitType, error) {
	hits := Hit(trade.Levels)
	if len(hits) == 0 {
		return domain.ZeroQty, time.Time{}, "", ErrNoHitLevels
	}

	num := domain.ZeroQty
	var closed, tpUnits int64
	var latest time.Time
	for _, l := range hits {
		if l.UnitsClosed == nil {
			continue
		}
		n := *l.UnitsClosed
		num = num.Add(l.Price.Mul(domain.QtyFromInt(n)))
		closed += n
		if l.LevelType == domain.LevelTakeProfit {
			tpUnits += n
		}
		if l.HitDate != nil && l.HitDate.After(latest) {
			latest = *l.HitDate
		}
	}
	if closed == 0 {
		return domain.ZeroQty, time.Time{}, "", ErrNoHitLevels
	}

	price := num.Div(domain.QtyFromInt(closed))
	et := domain.ExitStopLoss
	if tpUnits*2 >= closed {
		et = domain.ExitTakeProfit
	}
	return price, latest, et, nil
}

func lastPendingOfType(lvls []*domain.ExitLevel, lvl *domain.ExitLevel) bool {
	for _, l := range lvls {
		if l == lvl {
			continue
		}
		if l.LevelType == lvl.LevelType && l.Status == domain.LevelPending {
			return false
		}
	}
	return true
}

func hasHitBreakevenTarget(lvls []*domain.ExitLevel) bool {
	for _, l := range lvls {
		if l.LevelType == domain.LevelTakeProfit && l.Status == domain.LevelHit && l.MoveSLToBreakeven {
			return true
		}
	}
	return false
}
