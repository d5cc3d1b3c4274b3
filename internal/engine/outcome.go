package engine

import (
	"time"

	"github.com/google/uuid"

	"tradeSentinel/internal/domain"
)

// Transition carries a fully-updated clone of a trade whose detected
// lifecycle change should be persisted, together with the status edge.
type Transition struct {
	Trade      *domain.Trade
	FromStatus domain.TradeStatus
	ToStatus   domain.TradeStatus
}

// Outcome is the result of one detection pass: every alert raised, the
// transitions to apply for paper trades, and the pass counters. Conflicts
// are counted for every trade; the auto counters only cover paper trades
// whose transitions were actually produced.
type Outcome struct {
	RunID uuid.UUID
	AsOf  time.Time

	EntryAlerts   []EntryAlert
	SLTPAlerts    []SLTPAlert
	LayeredAlerts []LayeredAlert
	Transitions   []Transition

	AutoOpened    int
	AutoClosed    int
	PartialCloses int
	Conflicts     int
}

// TotalAlerts counts every alert in the outcome.
func (o *Outcome) TotalAlerts() int {
	return len(o.EntryAlerts) + len(o.SLTPAlerts) + len(o.LayeredAlerts)
}

// Merge folds another outcome into this one. Used by replay runs that
// evaluate one stored bar at a time and report a single aggregate.
func (o *Outcome) Merge(other *Outcome) {
	if other == nil {
		return
	}
	o.EntryAlerts = append(o.EntryAlerts, other.EntryAlerts...)
	o.SLTPAlerts = append(o.SLTPAlerts, other.SLTPAlerts...)
	o.LayeredAlerts = append(o.LayeredAlerts, other.LayeredAlerts...)
	o.Transitions = append(o.Transitions, other.Transitions...)
	o.AutoOpened += other.AutoOpened
	o.AutoClosed += other.AutoClosed
	o.PartialCloses += other.PartialCloses
	o.Conflicts += other.Conflicts
}
