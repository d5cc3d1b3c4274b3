package levels

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeSentinel/internal/domain"
)

// layeredTrade builds an open long with a three-rung target ladder and a
// single full-weight stop: 100 units in at 100, targets 110/120/130 at
// 50%/30%/20%, stop 95.
func layeredTrade() *domain.Trade {
	t := &domain.Trade{
		ID:          7,
		Ticker:      "AAPL",
		Status:      domain.StatusOpen,
		Units:       100,
		EntryPrice:  domain.Qty("100"),
		StopLoss:    domain.Qty("95"),
		TakeProfit:  domain.Qty("117"),
		IsLayered:   true,
		DatePlanned: date(2026, 3, 2),
	}
	t.Levels = []*domain.ExitLevel{
		{ID: 1, TradeID: 7, LevelType: domain.LevelTakeProfit, Price: domain.Qty("110"), UnitsPct: domain.Qty("0.5"), OrderIndex: 1, Status: domain.LevelPending},
		{ID: 2, TradeID: 7, LevelType: domain.LevelTakeProfit, Price: domain.Qty("120"), UnitsPct: domain.Qty("0.3"), OrderIndex: 2, Status: domain.LevelPending},
		{ID: 3, TradeID: 7, LevelType: domain.LevelTakeProfit, Price: domain.Qty("130"), UnitsPct: domain.Qty("0.2"), OrderIndex: 3, Status: domain.LevelPending},
		{ID: 4, TradeID: 7, LevelType: domain.LevelStopLoss, Price: domain.Qty("95"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}
	return t
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tr *domain.Trade)
		wantErr bool
		check   func(t *testing.T, err error)
	}{
		{
			name:   "valid ladder",
			mutate: func(tr *domain.Trade) {},
		},
		{
			name: "take profit weights under full",
			mutate: func(tr *domain.Trade) {
				tr.Levels[2].UnitsPct = domain.Qty("0.1")
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var we *LevelWeightError
				require.True(t, errors.As(err, &we))
				assert.Equal(t, domain.LevelTakeProfit, we.LevelType)
				assert.True(t, we.Sum.Equal(domain.Qty("0.9")), "sum = %s", we.Sum)
			},
		},
		{
			name: "weights inside tolerance pass",
			mutate: func(tr *domain.Trade) {
				tr.Levels[2].UnitsPct = domain.Qty("0.2009")
			},
		},
		{
			name: "weights outside tolerance fail",
			mutate: func(tr *domain.Trade) {
				tr.Levels[2].UnitsPct = domain.Qty("0.2011")
			},
			wantErr: true,
		},
		{
			name: "missing stop side",
			mutate: func(tr *domain.Trade) {
				tr.Levels = tr.Levels[:3]
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var we *LevelWeightError
				require.True(t, errors.As(err, &we))
				assert.Equal(t, domain.LevelStopLoss, we.LevelType)
				assert.True(t, we.Sum.IsZero())
			},
		},
		{
			name: "cancelled levels do not count",
			mutate: func(tr *domain.Trade) {
				tr.Levels[2].Status = domain.LevelCancelled
				tr.Levels[1].UnitsPct = domain.Qty("0.5")
			},
		},
		{
			name: "zero price",
			mutate: func(tr *domain.Trade) {
				tr.Levels[0].Price = domain.ZeroQty
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var ve *LevelValueError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "price", ve.Field)
			},
		},
		{
			name: "weight above one",
			mutate: func(tr *domain.Trade) {
				tr.Levels[3].UnitsPct = domain.Qty("1.2")
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var ve *LevelValueError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "unitsPct", ve.Field)
			},
		},
		{
			name: "duplicate order index within type",
			mutate: func(tr *domain.Trade) {
				tr.Levels[1].OrderIndex = 1
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var ve *LevelValueError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "orderIndex", ve.Field)
			},
		},
		{
			name: "breakeven flag on stop level",
			mutate: func(tr *domain.Trade) {
				tr.Levels[3].MoveSLToBreakeven = true
			},
			wantErr: true,
		},
		{
			name: "target below entry on a long",
			mutate: func(tr *domain.Trade) {
				tr.Levels[0].Price = domain.Qty("99")
			},
			wantErr: true,
			check: func(t *testing.T, err error) {
				var ve *LevelValueError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, domain.LevelTakeProfit, ve.LevelType)
			},
		},
		{
			name: "stop at entry is allowed",
			mutate: func(tr *domain.Trade) {
				tr.Levels[3].Price = domain.Qty("100")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := layeredTrade()
			tt.mutate(tr)
			err := Validate(tr, tr.Levels)
			if tt.wantErr {
				require.Error(t, err)
				if tt.check != nil {
					tt.check(t, err)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateShortSide(t *testing.T) {
	tr := &domain.Trade{
		Units:      10,
		EntryPrice: domain.Qty("100"),
	}
	lvls := []*domain.ExitLevel{
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("110"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("80"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}
	require.NoError(t, Validate(tr, lvls))

	lvls[1].Price = domain.Qty("105")
	err := Validate(tr, lvls)
	var ve *LevelValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.LevelTakeProfit, ve.LevelType)
}

func TestValidateAfterBreakeven(t *testing.T) {
	tr := layeredTrade()
	tr.Levels[0].MoveSLToBreakeven = true

	_, move, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	require.NotNil(t, move)
	ApplyBreakeven(tr, move)
	require.True(t, tr.StopLoss.Equal(tr.EntryPrice))

	// a stop parked at the entry must not flip the side check: the
	// remaining targets are still above entry and still valid
	require.NoError(t, Validate(tr, tr.Levels))
}

func TestDeriveAggregatePrice(t *testing.T) {
	tr := layeredTrade()

	tp := DeriveAggregatePrice(tr.Levels, domain.LevelTakeProfit)
	require.NotNil(t, tp)
	assert.True(t, tp.Equal(domain.Qty("117")), "tp = %s", tp)

	sl := DeriveAggregatePrice(tr.Levels, domain.LevelStopLoss)
	require.NotNil(t, sl)
	assert.True(t, sl.Equal(domain.Qty("95")))

	// cancelled levels drop out of the average
	tr.Levels[2].Status = domain.LevelCancelled
	tp = DeriveAggregatePrice(tr.Levels, domain.LevelTakeProfit)
	require.NotNil(t, tp)
	assert.True(t, tp.Equal(domain.Qty("113.75")), "tp = %s", tp)

	assert.Nil(t, DeriveAggregatePrice(nil, domain.LevelTakeProfit))
}

func TestMarkHitPartialClose(t *testing.T) {
	tr := layeredTrade()
	hitDate := date(2026, 3, 10)

	units, move, err := MarkHit(tr, tr.Levels[0], hitDate, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), units)
	assert.Nil(t, move)

	lvl := tr.Levels[0]
	assert.Equal(t, domain.LevelHit, lvl.Status)
	require.NotNil(t, lvl.HitDate)
	assert.True(t, lvl.HitDate.Equal(hitDate))
	require.NotNil(t, lvl.UnitsClosed)
	assert.Equal(t, int64(50), *lvl.UnitsClosed)

	require.NotNil(t, tr.RemainingUnits)
	assert.Equal(t, int64(50), *tr.RemainingUnits)

	// a second hit on the same level is rejected
	_, _, err = MarkHit(tr, lvl, hitDate, nil)
	assert.ErrorIs(t, err, ErrLevelNotPending)
}

func TestMarkHitRoundingResidue(t *testing.T) {
	tr := layeredTrade()
	tr.Units = 25
	tr.Levels = []*domain.ExitLevel{
		{ID: 1, LevelType: domain.LevelTakeProfit, Price: domain.Qty("110"), UnitsPct: domain.Qty("0.5"), OrderIndex: 1, Status: domain.LevelPending},
		{ID: 2, LevelType: domain.LevelTakeProfit, Price: domain.Qty("120"), UnitsPct: domain.Qty("0.5"), OrderIndex: 2, Status: domain.LevelPending},
		{ID: 3, LevelType: domain.LevelStopLoss, Price: domain.Qty("95"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}

	// 25 * 0.5 rounds half away from zero to 13
	units, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(13), units)

	// the last pending target absorbs the residue
	units, _, err = MarkHit(tr, tr.Levels[1], date(2026, 3, 11), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), units)
	assert.Equal(t, int64(0), RemainingUnits(tr))
}

func TestMarkHitClampsToRemaining(t *testing.T) {
	tr := layeredTrade()

	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil) // 50 closed
	require.NoError(t, err)
	_, _, err = MarkHit(tr, tr.Levels[1], date(2026, 3, 11), nil) // 30 closed
	require.NoError(t, err)

	// the full-weight stop would close 100 but only 20 remain
	units, _, err := MarkHit(tr, tr.Levels[3], date(2026, 3, 12), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), units)
	assert.Equal(t, int64(0), RemainingUnits(tr))
}

func TestMarkHitNoUnitsRemaining(t *testing.T) {
	tr := layeredTrade()
	closed := tr.Units
	tr.Levels[3].Status = domain.LevelHit
	tr.Levels[3].UnitsClosed = &closed

	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	assert.ErrorIs(t, err, ErrNoUnitsRemaining)
}

func TestMarkHitPriceOverride(t *testing.T) {
	tr := layeredTrade()
	fill := domain.Qty("111.25")

	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), &fill)
	require.NoError(t, err)
	assert.True(t, tr.Levels[0].Price.Equal(fill))
}

func TestMarkHitBreakeven(t *testing.T) {
	tr := layeredTrade()
	tr.Levels[0].MoveSLToBreakeven = true

	_, move, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	require.NotNil(t, move)
	assert.Equal(t, tr.ID, move.TradeID)
	assert.True(t, move.Price.Equal(tr.EntryPrice))
	assert.Equal(t, []int64{4}, move.LevelIDs)

	// the move is an instruction: nothing is repriced until it is applied
	assert.True(t, tr.Levels[3].Price.Equal(domain.Qty("95")))

	ApplyBreakeven(tr, move)
	sl := tr.Levels[3]
	assert.True(t, sl.Price.Equal(domain.Qty("100")))
	require.NotNil(t, sl.PriceOriginal)
	assert.True(t, sl.PriceOriginal.Equal(domain.Qty("95")))
	assert.True(t, tr.StopLoss.Equal(domain.Qty("100")))
}

func TestRevertHit(t *testing.T) {
	tr := layeredTrade()
	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	require.Equal(t, int64(50), RemainingUnits(tr))

	require.NoError(t, RevertHit(tr, tr.Levels[0]))
	lvl := tr.Levels[0]
	assert.Equal(t, domain.LevelPending, lvl.Status)
	assert.Nil(t, lvl.HitDate)
	assert.Nil(t, lvl.UnitsClosed)
	require.NotNil(t, tr.RemainingUnits)
	assert.Equal(t, int64(100), *tr.RemainingUnits)
}

func TestRevertHitRejections(t *testing.T) {
	tr := layeredTrade()

	// pending level
	err := RevertHit(tr, tr.Levels[0])
	var re *InvalidRevertError
	require.True(t, errors.As(err, &re))

	// closed trade
	_, _, err = MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	tr.Status = domain.StatusClosed
	err = RevertHit(tr, tr.Levels[0])
	require.True(t, errors.As(err, &re))
	assert.Contains(t, re.Reason, "not open")
}

func TestRevertHitRestoresBreakevenStops(t *testing.T) {
	tr := layeredTrade()
	tr.Levels[0].MoveSLToBreakeven = true

	_, move, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	ApplyBreakeven(tr, move)
	require.True(t, tr.Levels[3].Price.Equal(domain.Qty("100")))

	require.NoError(t, RevertHit(tr, tr.Levels[0]))
	sl := tr.Levels[3]
	assert.True(t, sl.Price.Equal(domain.Qty("95")), "sl = %s", sl.Price)
	assert.Nil(t, sl.PriceOriginal)
	assert.True(t, tr.StopLoss.Equal(domain.Qty("95")))
}

func TestRevertHitKeepsBreakevenWhileAnotherHolds(t *testing.T) {
	tr := layeredTrade()
	tr.Levels[0].MoveSLToBreakeven = true
	tr.Levels[1].MoveSLToBreakeven = true

	_, move, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	ApplyBreakeven(tr, move)
	_, move, err = MarkHit(tr, tr.Levels[1], date(2026, 3, 11), nil)
	require.NoError(t, err)
	ApplyBreakeven(tr, move)

	// one breakeven target still holds, so the stop stays at entry
	require.NoError(t, RevertHit(tr, tr.Levels[1]))
	assert.True(t, tr.Levels[3].Price.Equal(domain.Qty("100")))
}

func TestWeightedExit(t *testing.T) {
	tr := layeredTrade()
	for i, d := range []time.Time{date(2026, 3, 10), date(2026, 3, 11), date(2026, 3, 12)} {
		_, _, err := MarkHit(tr, tr.Levels[i], d, nil)
		require.NoError(t, err)
	}

	price, exitDate, exitType, err := WeightedExit(tr)
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.Qty("117")), "price = %s", price)
	assert.True(t, exitDate.Equal(date(2026, 3, 12)))
	assert.Equal(t, domain.ExitTakeProfit, exitType)
}

func TestWeightedExitMajorityAndTies(t *testing.T) {
	// a third out at the first target, the rest stopped: the stop owns
	// the majority of closed units
	tr := layeredTrade()
	tr.Levels = []*domain.ExitLevel{
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("110"), UnitsPct: domain.Qty("0.3"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("130"), UnitsPct: domain.Qty("0.7"), OrderIndex: 2, Status: domain.LevelPending},
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("95"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}
	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	_, _, err = MarkHit(tr, tr.Levels[2], date(2026, 3, 11), nil)
	require.NoError(t, err)

	_, _, exitType, err := WeightedExit(tr)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitStopLoss, exitType)

	// an even split: take profit wins the tie
	tr = layeredTrade()
	tr.Levels = []*domain.ExitLevel{
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("110"), UnitsPct: domain.Qty("0.5"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("130"), UnitsPct: domain.Qty("0.5"), OrderIndex: 2, Status: domain.LevelPending},
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("95"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
	}
	_, _, err = MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)
	_, _, err = MarkHit(tr, tr.Levels[2], date(2026, 3, 11), nil)
	require.NoError(t, err)

	_, _, exitType, err = WeightedExit(tr)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitTakeProfit, exitType)
}

func TestWeightedExitNoHits(t *testing.T) {
	tr := layeredTrade()
	_, _, _, err := WeightedExit(tr)
	assert.ErrorIs(t, err, ErrNoHitLevels)
}

func TestSynthetic(t *testing.T) {
	tr := &domain.Trade{
		ID:         3,
		Units:      10,
		EntryPrice: domain.Qty("100"),
		StopLoss:   domain.Qty("90"),
		TakeProfit: domain.Qty("120"),
	}
	lvls := Synthetic(tr)
	require.Len(t, lvls, 2)
	assert.Equal(t, domain.LevelStopLoss, lvls[0].LevelType)
	assert.True(t, lvls[0].Price.Equal(domain.Qty("90")))
	assert.True(t, lvls[0].UnitsPct.Equal(domain.Qty("1")))
	assert.Equal(t, domain.LevelTakeProfit, lvls[1].LevelType)
	assert.True(t, lvls[1].Price.Equal(domain.Qty("120")))
	assert.False(t, IsLayeredSet(lvls))
	require.NoError(t, Validate(tr, lvls))
}

func TestIsLayeredSet(t *testing.T) {
	tr := layeredTrade()
	assert.True(t, IsLayeredSet(tr.Levels))

	partial := []*domain.ExitLevel{
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("90"), UnitsPct: domain.Qty("1"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("120"), UnitsPct: domain.Qty("0.5"), OrderIndex: 1, Status: domain.LevelPending},
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("130"), UnitsPct: domain.Qty("0.5"), OrderIndex: 2, Status: domain.LevelPending},
	}
	assert.True(t, IsLayeredSet(partial))
}

func TestMergeForReplace(t *testing.T) {
	tr := layeredTrade()
	_, _, err := MarkHit(tr, tr.Levels[0], date(2026, 3, 10), nil)
	require.NoError(t, err)

	incoming := []*domain.ExitLevel{
		{LevelType: domain.LevelTakeProfit, Price: domain.Qty("125"), UnitsPct: domain.Qty("0.5"), MoveSLToBreakeven: true},
		{LevelType: domain.LevelStopLoss, Price: domain.Qty("98"), UnitsPct: domain.Qty("1")},
	}
	merged := MergeForReplace(tr.Levels, incoming)

	// the hit target survives, pending rungs are replaced
	require.Len(t, merged, 3)
	assert.Equal(t, domain.LevelHit, merged[0].Status)
	assert.True(t, merged[0].Price.Equal(domain.Qty("110")))

	assert.Equal(t, domain.LevelPending, merged[1].Status)
	assert.Equal(t, 2, merged[1].OrderIndex)
	assert.Equal(t, domain.LevelPending, merged[2].Status)
	assert.Equal(t, 1, merged[2].OrderIndex)

	require.NoError(t, Validate(tr, merged))
}

func TestRemainingUnitsRecomputed(t *testing.T) {
	tr := layeredTrade()
	n30, n20 := int64(30), int64(20)
	tr.Levels[1].Status = domain.LevelHit
	tr.Levels[1].UnitsClosed = &n30
	tr.Levels[2].Status = domain.LevelHit
	tr.Levels[2].UnitsClosed = &n20

	assert.Equal(t, int64(50), RemainingUnits(tr))
}
