// Package engine evaluates active trades against quotes. A detection pass
// is a pure function of its inputs: trades are cloned before any change,
// and everything the pass decides comes back in the Outcome. The engine
// never talks to storage or a price feed itself.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/levels"
	"tradeSentinel/internal/ports"
)

// Config holds the dependencies for the Detector.
type Config struct {
	Logger ports.Logger
	// Now supplies the pass timestamp; defaults to time.Now. Replay runs
	// inject bar dates through the quotes instead.
	Now func() time.Time
}

// Detector runs detection passes.
type Detector struct {
	logger ports.Logger
	now    func() time.Time
}

// New creates a Detector, validating required dependencies.
func New(cfg Config) (*Detector, error) {
	if cfg.Logger == nil {
		return nil, errors.New("missing required dependency: logger")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Detector{logger: cfg.Logger, now: now}, nil
}

// Detect evaluates every active trade against the quote for its ticker.
//
// Planned trades are checked for an entry touch, open trades for stop and
// target touches: against the headline prices for a simple trade, against
// each pending level for a layered one. A range quote that crosses both
// sides in the same pass raises a conflict alert and changes nothing.
// Trades without an observable quote are skipped. Input trades are never
// mutated; transitions carry updated clones for paper trades.
func (d *Detector) Detect(ctx context.Context, trades []*domain.Trade, quotes map[string]*domain.Quote) *Outcome {
	out := &Outcome{RunID: uuid.New(), AsOf: d.now().UTC()}

	for _, t := range trades {
		if t == nil || !t.Status.IsActive() {
			continue
		}
		q := quotes[t.Ticker]
		if !q.Observable() {
			d.logger.Debug(ctx, "detect: no observable quote, skipping trade", map[string]interface{}{
				"tradeID": t.ID,
				"ticker":  t.Ticker,
			})
			continue
		}
		switch t.Status {
		case domain.StatusPlan:
			d.evalEntry(ctx, t, q, out)
		case domain.StatusOpen:
			if t.IsLayered {
				d.evalLayered(ctx, t, q, out)
			} else {
				d.evalSimple(ctx, t, q, out)
			}
		}
	}

	d.logger.Info(ctx, "detect: pass finished", map[string]interface{}{
		"runID":       out.RunID.String(),
		"trades":      len(trades),
		"alerts":      out.TotalAlerts(),
		"transitions": len(out.Transitions),
		"conflicts":   out.Conflicts,
	})
	return out
}

func (d *Detector) evalEntry(ctx context.Context, t *domain.Trade, q *domain.Quote, out *Outcome) {
	long := t.IsLong()
	if !touchedEntry(long, t.EntryPrice, q) {
		return
	}
	when := d.eventDate(q)

	alert := EntryAlert{
		TradeID:    t.ID,
		Ticker:     t.Ticker,
		Date:       when,
		EntryPrice: t.EntryPrice,
		QuotePrice: *q.Price,
		AutoOpened: t.PaperTrade,
	}
	alert.Message = entryMessage(t.Ticker, when, t.EntryPrice, t.PaperTrade)
	out.EntryAlerts = append(out.EntryAlerts, alert)

	if !t.PaperTrade {
		return
	}
	clone := t.Clone()
	clone.Status = domain.StatusOpen
	da := when
	clone.DateActual = &da
	out.Transitions = append(out.Transitions, Transition{Trade: clone, FromStatus: domain.StatusPlan, ToStatus: domain.StatusOpen})
	out.AutoOpened++

	d.logger.Info(ctx, "detect: trade auto-opened", map[string]interface{}{
		"tradeID": t.ID,
		"ticker":  t.Ticker,
		"entry":   t.EntryPrice.String(),
	})
}

func (d *Detector) evalSimple(ctx context.Context, t *domain.Trade, q *domain.Quote, out *Outcome) {
	long := t.IsLong()
	slTouched := touchedLevel(long, domain.LevelStopLoss, t.StopLoss, q)
	tpTouched := touchedLevel(long, domain.LevelTakeProfit, t.TakeProfit, q)
	when := d.eventDate(q)

	switch {
	case slTouched && tpTouched:
		alert := SLTPAlert{
			TradeID: t.ID,
			Ticker:  t.Ticker,
			HitType: HitBoth,
			Date:    when,
			Price:   t.StopLoss,
		}
		alert.Message = sltpMessage(t.Ticker, HitBoth, when, t.StopLoss, false)
		out.SLTPAlerts = append(out.SLTPAlerts, alert)
		out.Conflicts++
		d.logger.Warn(ctx, "detect: stop and target both in range, not auto-closing", map[string]interface{}{
			"tradeID": t.ID,
			"ticker":  t.Ticker,
		})
	case slTouched:
		d.closeSimple(ctx, t, domain.ExitStopLoss, t.StopLoss, when, out)
	case tpTouched:
		d.closeSimple(ctx, t, domain.ExitTakeProfit, t.TakeProfit, when, out)
	}
}

func (d *Detector) closeSimple(ctx context.Context, t *domain.Trade, et domain.ExitType, price domain.Quantity, when time.Time, out *Outcome) {
	alert := SLTPAlert{
		TradeID:    t.ID,
		Ticker:     t.Ticker,
		HitType:    HitType(et),
		Date:       when,
		Price:      price,
		AutoClosed: t.PaperTrade,
	}
	alert.Message = sltpMessage(t.Ticker, alert.HitType, when, price, t.PaperTrade)
	out.SLTPAlerts = append(out.SLTPAlerts, alert)

	if !t.PaperTrade {
		return
	}

	clone := t.Clone()
	// settle the synthetic ladder so simple and layered closes account
	// units the same way
	for _, lvl := range clone.Levels {
		if lvl.Status == domain.LevelPending && lvl.LevelType == domain.LevelType(et) {
			if _, _, err := levels.MarkHit(clone, lvl, when, nil); err != nil {
				d.logger.Error(ctx, err, "detect: could not settle synthetic level", map[string]interface{}{
					"tradeID": t.ID,
					"level":   lvl.Label(),
				})
			}
			break
		}
	}
	levels.CancelPending(clone.Levels)

	clone.Status = domain.StatusClosed
	clone.ExitType = &et
	p := price
	clone.ExitPrice = &p
	ed := when
	clone.ExitDate = &ed

	out.Transitions = append(out.Transitions, Transition{Trade: clone, FromStatus: domain.StatusOpen, ToStatus: domain.StatusClosed})
	out.AutoClosed++

	d.logger.Info(ctx, "detect: trade auto-closed", map[string]interface{}{
		"tradeID":  t.ID,
		"ticker":   t.Ticker,
		"exitType": string(et),
		"price":    price.String(),
	})
}

func (d *Detector) evalLayered(ctx context.Context, t *domain.Trade, q *domain.Quote, out *Outcome) {
	long := t.IsLong()
	when := d.eventDate(q)

	var slTouched, tpTouched []*domain.ExitLevel
	for _, lvl := range levels.Pending(t.Levels) {
		if !touchedLevel(long, lvl.LevelType, lvl.Price, q) {
			continue
		}
		if lvl.LevelType == domain.LevelStopLoss {
			slTouched = append(slTouched, lvl)
		} else {
			tpTouched = append(tpTouched, lvl)
		}
	}

	// levels of both types in range is a conflict: alert, apply nothing
	if len(slTouched) > 0 && len(tpTouched) > 0 {
		alert := SLTPAlert{
			TradeID: t.ID,
			Ticker:  t.Ticker,
			HitType: HitBoth,
			Date:    when,
			Price:   t.StopLoss,
		}
		alert.Message = sltpMessage(t.Ticker, HitBoth, when, t.StopLoss, false)
		out.SLTPAlerts = append(out.SLTPAlerts, alert)
		out.Conflicts++
		d.logger.Warn(ctx, "detect: stop and target levels both in range, not settling", map[string]interface{}{
			"tradeID": t.ID,
			"ticker":  t.Ticker,
			"stops":   len(slTouched),
			"targets": len(tpTouched),
		})
		return
	}

	touched := append(slTouched, tpTouched...)
	if len(touched) == 0 {
		return
	}
	sort.Slice(touched, func(i, j int) bool { return touched[i].OrderIndex < touched[j].OrderIndex })

	// settle on a clone; the caller persists it only for paper trades,
	// for real trades the numbers feed advisory alerts
	clone := t.Clone()
	var lastHit *domain.ExitLevel
	for _, orig := range touched {
		if levels.RemainingUnits(clone) == 0 {
			break
		}
		lvl := findLevel(clone.Levels, orig.LevelType, orig.OrderIndex)
		if lvl == nil || lvl.Status != domain.LevelPending {
			continue
		}
		units, move, err := levels.MarkHit(clone, lvl, when, nil)
		if err != nil {
			d.logger.Error(ctx, err, "detect: level hit failed", map[string]interface{}{
				"tradeID": t.ID,
				"level":   lvl.Label(),
			})
			continue
		}
		if move != nil {
			levels.ApplyBreakeven(clone, move)
		}
		lastHit = lvl

		alert := LayeredAlert{
			TradeID:              t.ID,
			Ticker:               t.Ticker,
			LevelID:              lvl.ID,
			Label:                lvl.Label(),
			LevelType:            lvl.LevelType,
			Date:                 when,
			Price:                lvl.Price,
			UnitsClosed:          units,
			RemainingUnits:       levels.RemainingUnits(clone),
			MovedStopToBreakeven: move != nil,
			TradeClosed:          levels.RemainingUnits(clone) == 0,
			AutoApplied:          t.PaperTrade,
		}
		alert.Message = layeredMessage(alert)
		out.LayeredAlerts = append(out.LayeredAlerts, alert)
		if t.PaperTrade {
			out.PartialCloses++
		}

		d.logger.Info(ctx, "detect: exit level hit", map[string]interface{}{
			"tradeID":   t.ID,
			"ticker":    t.Ticker,
			"level":     lvl.Label(),
			"units":     units,
			"remaining": levels.RemainingUnits(clone),
		})
	}
	if lastHit == nil {
		return
	}

	if levels.RemainingUnits(clone) == 0 {
		clone.Status = domain.StatusClosed
		et := domain.ExitType(lastHit.LevelType)
		clone.ExitType = &et
		p := lastHit.Price
		clone.ExitPrice = &p
		ed := when
		clone.ExitDate = &ed
		levels.CancelPending(clone.Levels)
		if t.PaperTrade {
			out.AutoClosed++
		}
		d.logger.Info(ctx, "detect: ladder exhausted, trade closed", map[string]interface{}{
			"tradeID":  t.ID,
			"ticker":   t.Ticker,
			"exitType": string(et),
			"price":    lastHit.Price.String(),
		})
	}
	levels.RefreshAggregates(clone)

	if t.PaperTrade {
		out.Transitions = append(out.Transitions, Transition{Trade: clone, FromStatus: domain.StatusOpen, ToStatus: clone.Status})
	}
}

// eventDate reduces the quote timestamp to a UTC date; live quotes without
// a timestamp fall back to the pass clock.
func (d *Detector) eventDate(q *domain.Quote) time.Time {
	ts := q.AsOf
	if ts.IsZero() {
		ts = d.now()
	}
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// touchedEntry reports whether the quote range reached the entry price:
// at or above it for a long, at or below it for a short.
func touchedEntry(long bool, entry domain.Quantity, q *domain.Quote) bool {
	if long {
		return q.RangeHigh().GreaterThanOrEqual(entry)
	}
	return q.RangeLow().LessThanOrEqual(entry)
}

// touchedLevel reports whether the quote range reached a level price.
// Stops trigger on the adverse side of the trade, targets on the
// favorable one.
func touchedLevel(long bool, lt domain.LevelType, price domain.Quantity, q *domain.Quote) bool {
	if lt == domain.LevelStopLoss {
		if long {
			return q.RangeLow().LessThanOrEqual(price)
		}
		return q.RangeHigh().GreaterThanOrEqual(price)
	}
	if long {
		return q.RangeHigh().GreaterThanOrEqual(price)
	}
	return q.RangeLow().LessThanOrEqual(price)
}

func findLevel(lvls []*domain.ExitLevel, lt domain.LevelType, orderIndex int) *domain.ExitLevel {
	for _, l := range lvls {
		if l.LevelType == lt && l.OrderIndex == orderIndex {
			return l
		}
	}
	return nil
}
