package metrics

import (
	"testing"
	"time"

	"tradeSentinel/internal/domain"
)

func simpleTrade() *domain.Trade {
	return &domain.Trade{
		ID:         1,
		Ticker:     "AAPL",
		Status:     domain.StatusPlan,
		Units:      10,
		EntryPrice: domain.Qty("100"),
		StopLoss:   domain.Qty("90"),
		TakeProfit: domain.Qty("120"),
	}
}

func TestComputeStatic(t *testing.T) {
	m := ComputeStatic(simpleTrade())

	if !m.Amount.Equal(domain.Qty("1000")) {
		t.Errorf("Expected amount 1000, got %s", m.Amount)
	}
	if !m.RiskAbs.Equal(domain.Qty("-100")) {
		t.Errorf("Expected risk -100, got %s", m.RiskAbs)
	}
	if !m.RiskPct.Equal(domain.Qty("-0.1")) {
		t.Errorf("Expected risk pct -0.1, got %s", m.RiskPct)
	}
	if !m.ProfitAbs.Equal(domain.Qty("200")) {
		t.Errorf("Expected profit 200, got %s", m.ProfitAbs)
	}
	if !m.ProfitPct.Equal(domain.Qty("0.2")) {
		t.Errorf("Expected profit pct 0.2, got %s", m.ProfitPct)
	}
	if !m.Ratio.Equal(domain.Qty("2")) {
		t.Errorf("Expected ratio 2, got %s", m.Ratio)
	}
}

func TestComputeStaticZeroNotional(t *testing.T) {
	tr := simpleTrade()
	tr.Units = 0

	// zero notional must produce zero percentages, not an error
	m := ComputeStatic(tr)
	if !m.Amount.IsZero() || !m.RiskPct.IsZero() || !m.ProfitPct.IsZero() {
		t.Errorf("Expected zero metrics, got amount %s risk pct %s profit pct %s",
			m.Amount, m.RiskPct, m.ProfitPct)
	}
}

func TestComputeStaticZeroRisk(t *testing.T) {
	tr := simpleTrade()
	tr.StopLoss = domain.Qty("100")

	m := ComputeStatic(tr)
	if !m.Ratio.IsZero() {
		t.Errorf("Expected zero ratio for zero risk, got %s", m.Ratio)
	}
}

func TestComputeStaticLayeredAggregates(t *testing.T) {
	tr := simpleTrade()
	tr.Units = 100
	tr.IsLayered = true
	tr.Levels = []*domain.ExitLevel{
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("110"), UnitsPct: domain.Qty("0.5"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("120"), UnitsPct: domain.Qty("0.3"), OrderIndex: 2, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("130"), UnitsPct: domain.Qty("0.2"), OrderIndex: 3, Status: domain.LevelPending},
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("95"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}

	m := ComputeStatic(tr)
	// aggregate target (110*0.5 + 120*0.3 + 130*0.2) = 117
	if !m.ProfitAbs.Equal(domain.Qty("1700")) {
		t.Errorf("Expected profit 1700, got %s", m.ProfitAbs)
	}
	if !m.RiskAbs.Equal(domain.Qty("-500")) {
		t.Errorf("Expected risk -500, got %s", m.RiskAbs)
	}
}

func TestComputeLiveOpen(t *testing.T) {
	tr := simpleTrade()
	tr.Status = domain.StatusOpen
	price := domain.Qty("101")
	q := &domain.Quote{Symbol: "AAPL", Price: &price, Valid: true, AsOf: time.Now()}

	m := ComputeLive(tr, q)
	if m == nil {
		t.Fatal("Expected live metrics for observable quote")
	}
	if m.DistanceToSL == nil || !m.DistanceToSL.Equal(domain.Qty("11").Div(domain.Qty("101"))) {
		t.Errorf("Unexpected distance to stop: %v", m.DistanceToSL)
	}
	if m.DistanceToTP == nil || !m.DistanceToTP.Equal(domain.Qty("19").Div(domain.Qty("101"))) {
		t.Errorf("Unexpected distance to target: %v", m.DistanceToTP)
	}
	if m.UnrealizedPnL == nil || !m.UnrealizedPnL.Equal(domain.Qty("10")) {
		t.Errorf("Unexpected unrealized PnL: %v", m.UnrealizedPnL)
	}
	if m.UnrealizedPnLPct == nil || !m.UnrealizedPnLPct.Equal(domain.Qty("0.01")) {
		t.Errorf("Unexpected unrealized PnL pct: %v", m.UnrealizedPnLPct)
	}
	if m.DistanceToEntry != nil {
		t.Error("Expected no entry distance on an open trade")
	}
}

func TestComputeLivePlan(t *testing.T) {
	tr := simpleTrade()
	price := domain.Qty("101")
	q := &domain.Quote{Symbol: "AAPL", Price: &price, Valid: true, AsOf: time.Now()}

	m := ComputeLive(tr, q)
	if m == nil {
		t.Fatal("Expected live metrics for observable quote")
	}
	if m.DistanceToEntry == nil || !m.DistanceToEntry.Equal(domain.Qty("0.01")) {
		t.Errorf("Unexpected distance to entry: %v", m.DistanceToEntry)
	}
	if m.DistanceToSL != nil || m.UnrealizedPnL != nil {
		t.Error("Expected only the entry distance on a planned trade")
	}
}

func TestComputeLiveUnobservable(t *testing.T) {
	tr := simpleTrade()

	if m := ComputeLive(tr, nil); m != nil {
		t.Errorf("Expected nil metrics for missing quote, got %+v", m)
	}
	if m := ComputeLive(tr, &domain.Quote{Symbol: "AAPL", Valid: false}); m != nil {
		t.Errorf("Expected nil metrics for invalid quote, got %+v", m)
	}

	zero := domain.ZeroQty
	if m := ComputeLive(tr, &domain.Quote{Symbol: "AAPL", Price: &zero, Valid: true}); m != nil {
		t.Errorf("Expected nil metrics for zero price, got %+v", m)
	}
}

func TestComputeLiveClosedTrade(t *testing.T) {
	tr := simpleTrade()
	tr.Status = domain.StatusClosed
	price := domain.Qty("101")
	q := &domain.Quote{Symbol: "AAPL", Price: &price, Valid: true, AsOf: time.Now()}

	if m := ComputeLive(tr, q); m != nil {
		t.Errorf("Expected nil metrics for a closed trade, got %+v", m)
	}
}
