package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

func TestRiskLedgerStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRiskLedgerStore(pool)
	ctx := context.Background()

	state := &domain.RiskState{
		Date:              "2026-08-27",
		DailyPnLUSD:       -3.75,
		DailyLossLimitUSD: 50,
		MaxTradeUSD:       25,
		TradesToday: []domain.TradeSummary{
			{
				CycleID:        "cycle1",
				Token:          "WETH",
				Action:         domain.ActionBuy,
				AmountUSD:      12.5,
				RealizedPnLUSD: -3.75,
				Status:         domain.OutcomeSuccess,
				ExecutedAt:     1704067234567,
			},
		},
	}

	require.NoError(t, store.SaveDay(ctx, state))

	got, err := store.GetDay(ctx, "2026-08-27")
	require.NoError(t, err)

	assert.Equal(t, state.Date, got.Date)
	assert.Equal(t, state.DailyPnLUSD, got.DailyPnLUSD)
	assert.Equal(t, state.MaxTradeUSD, got.MaxTradeUSD)
	require.Len(t, got.TradesToday, 1)
	assert.Equal(t, "cycle1", got.TradesToday[0].CycleID)
	assert.Equal(t, domain.ActionBuy, got.TradesToday[0].Action)
}

func TestRiskLedgerStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRiskLedgerStore(pool)
	ctx := context.Background()

	state := &domain.RiskState{Date: "2026-08-27", DailyLossLimitUSD: 50, MaxTradeUSD: 25}
	require.NoError(t, store.SaveDay(ctx, state))

	state.DailyPnLUSD = -20
	state.TradesToday = []domain.TradeSummary{{CycleID: "c1"}, {CycleID: "c2"}}
	require.NoError(t, store.SaveDay(ctx, state))

	got, err := store.GetDay(ctx, "2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, -20.0, got.DailyPnLUSD)
	assert.Len(t, got.TradesToday, 2)
}

func TestRiskLedgerStore_GetDayNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRiskLedgerStore(pool)
	ctx := context.Background()

	_, err := store.GetDay(ctx, "1999-01-01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRiskLedgerStore_GetRecentDays(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRiskLedgerStore(pool)
	ctx := context.Background()

	for _, d := range []string{"2026-08-25", "2026-08-27", "2026-08-26"} {
		require.NoError(t, store.SaveDay(ctx, &domain.RiskState{
			Date: d, DailyLossLimitUSD: 50, MaxTradeUSD: 25,
		}))
	}

	got, err := store.GetRecentDays(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-08-27", got[0].Date)
	assert.Equal(t, "2026-08-26", got[1].Date)
}

func TestRiskLedgerStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRiskLedgerStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveDay(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveDay(ctx, &domain.RiskState{}), storage.ErrInvalidInput)
}
