package sqlite

import (
	"context"
	"testing"
	"time"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_StrategyCRUD(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	strategy := &domain.Strategy{Name: "breakout", Description: "buy range breaks"}
	id, err := store.CreateStrategy(ctx, strategy)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, strategy.ID)

	found, err := store.GetStrategy(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "breakout", found.Name)
	assert.Equal(t, "buy range breaks", found.Description)
	assert.False(t, found.CreatedAt.IsZero())

	found.Description = "buy confirmed range breaks"
	require.NoError(t, store.UpdateStrategy(ctx, found))

	updated, err := store.GetStrategy(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "buy confirmed range breaks", updated.Description)

	require.NoError(t, store.DeleteStrategy(ctx, id))
	gone, err := store.GetStrategy(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_StrategyNameUnique(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.CreateStrategy(ctx, &domain.Strategy{Name: "breakout"})
	require.NoError(t, err)

	_, err = store.CreateStrategy(ctx, &domain.Strategy{Name: "breakout"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrStrategyNameExists)

	// Renaming into a taken name is rejected the same way
	other := &domain.Strategy{Name: "pullback"}
	_, err = store.CreateStrategy(ctx, other)
	require.NoError(t, err)
	other.Name = "breakout"
	err = store.UpdateStrategy(ctx, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrStrategyNameExists)
}

func TestStore_StrategyNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	found, err := store.GetStrategy(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, found)

	err = store.UpdateStrategy(ctx, &domain.Strategy{ID: 999, Name: "ghost"})
	assert.ErrorIs(t, err, ports.ErrStrategyNotFound)

	err = store.DeleteStrategy(ctx, 999)
	assert.ErrorIs(t, err, ports.ErrStrategyNotFound)
}

func TestStore_ListStrategies(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for _, name := range []string{"pullback", "breakout", "mean reversion"} {
		_, err := store.CreateStrategy(ctx, &domain.Strategy{Name: name})
		require.NoError(t, err)
	}

	strategies, err := store.ListStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, strategies, 3)
	assert.Equal(t, "breakout", strategies[0].Name)
	assert.Equal(t, "mean reversion", strategies[1].Name)
	assert.Equal(t, "pullback", strategies[2].Name)
}

func TestStore_InstrumentUpsert(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	inst := &domain.Instrument{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NMS", QuoteType: "EQUITY"}
	require.NoError(t, store.UpsertInstrument(ctx, inst))
	assert.False(t, inst.AddedAt.IsZero())

	found, err := store.GetInstrument(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Apple Inc.", found.Name)
	addedAt := found.AddedAt

	// Upserting the same symbol refreshes metadata but keeps added_at
	require.NoError(t, store.UpsertInstrument(ctx, &domain.Instrument{
		Symbol: "AAPL", Name: "Apple Inc. (updated)", Exchange: "NMS", QuoteType: "EQUITY",
	}))

	refreshed, err := store.GetInstrument(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "Apple Inc. (updated)", refreshed.Name)
	assert.WithinDuration(t, addedAt, refreshed.AddedAt, time.Second)

	missing, err := store.GetInstrument(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_InstrumentListAndDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for _, symbol := range []string{"NVDA", "AAPL", "MSFT"} {
		require.NoError(t, store.UpsertInstrument(ctx, &domain.Instrument{Symbol: symbol}))
	}

	instruments, err := store.ListInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, instruments, 3)
	assert.Equal(t, "AAPL", instruments[0].Symbol)
	assert.Equal(t, "MSFT", instruments[1].Symbol)
	assert.Equal(t, "NVDA", instruments[2].Symbol)

	require.NoError(t, store.DeleteInstrument(ctx, "MSFT"))
	instruments, err = store.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Len(t, instruments, 2)

	err = store.DeleteInstrument(ctx, "MSFT")
	assert.ErrorIs(t, err, ports.ErrInstrumentNotFound)
}

func testBar(ticker string, date time.Time, close string) *domain.DailyBar {
	c := domain.Qty(close)
	return &domain.DailyBar{
		Ticker: ticker,
		Date:   date,
		Open:   c.Sub(domain.Qty("1")),
		High:   c.Add(domain.Qty("2")),
		Low:    c.Sub(domain.Qty("2")),
		Close:  c,
		Volume: 1000,
	}
}

func TestStore_UpsertBarsIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	day1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, store.UpsertBars(ctx, []*domain.DailyBar{
		testBar("AAPL", day1, "100"),
		testBar("AAPL", day2, "102"),
	}))

	// Re-ingesting day2 with a revised close overwrites, not duplicates
	require.NoError(t, store.UpsertBars(ctx, []*domain.DailyBar{
		testBar("AAPL", day2, "103"),
	}))

	bars, err := store.BarsSince(ctx, "AAPL", day1)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Equal(day1))
	assert.True(t, bars[0].Close.Equal(domain.Qty("100")))
	assert.True(t, bars[1].Date.Equal(day2))
	assert.True(t, bars[1].Close.Equal(domain.Qty("103")))

	require.NoError(t, store.UpsertBars(ctx, nil)) // no-op
}

func TestStore_BarsSinceAndLatest(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	bars := make([]*domain.DailyBar, 0, 5)
	for i := 0; i < 5; i++ {
		bars = append(bars, testBar("AAPL", start.AddDate(0, 0, i), "100"))
	}
	require.NoError(t, store.UpsertBars(ctx, bars))
	require.NoError(t, store.UpsertBars(ctx, []*domain.DailyBar{testBar("MSFT", start, "300")}))

	since, err := store.BarsSince(ctx, "AAPL", start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, since, 3)
	assert.True(t, since[0].Date.Equal(start.AddDate(0, 0, 2)))
	for _, bar := range since {
		assert.Equal(t, "AAPL", bar.Ticker)
	}

	latest, err := store.LatestBar(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Date.Equal(start.AddDate(0, 0, 4)))

	none, err := store.LatestBar(ctx, "NVDA")
	require.NoError(t, err)
	assert.Nil(t, none)
}
