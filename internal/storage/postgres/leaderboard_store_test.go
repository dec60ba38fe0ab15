package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/storage"
)

func testEntry(address string, rank int, score, weight float64) *domain.RankedEntry {
	return &domain.RankedEntry{
		Address:        address,
		Rank:           rank,
		Score:          score,
		Weight:         weight,
		WinRate:        0.6,
		ExecutedOrders: 80,
		RealizedPnl:    50_000,
		Efficiency:     625,
		PnlConsistency: score,
		Remark:         "trader",
		Labels:         []string{"whale"},
		Meta: domain.EntryMeta{
			ScoringDetails: &domain.ScoringDetails{SmoothPnlScore: score},
			APIMaxDrawdown: 0.05,
		},
		FetchedAt: 1700000000000,
	}
}

func testPoint(address string, ts int64, pnl float64) *domain.PnlPoint {
	return &domain.PnlPoint{
		PeriodDays: 30,
		Address:    address,
		Source:     domain.PnlSourceHyperbot,
		WindowName: "period_30",
		PointTs:    ts,
		PnlValue:   &pnl,
	}
}

func TestLeaderboardStore_ReplaceAndGetRanked(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	entries := []*domain.RankedEntry{
		testEntry("0xbbb", 2, 0.5, 0.4),
		testEntry("0xaaa", 1, 0.8, 0.6),
	}
	points := []*domain.PnlPoint{
		testPoint("0xaaa", 1000, 10),
		testPoint("0xaaa", 2000, 25),
	}

	err := store.ReplacePeriod(ctx, 30, entries, points)
	require.NoError(t, err)

	got, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "0xaaa", got[0].Address)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, 0.6, got[0].Weight)
	assert.Equal(t, 0.6, got[0].WinRate)
	assert.Equal(t, 80, got[0].ExecutedOrders)
	assert.Equal(t, []string{"whale"}, got[0].Labels)
	require.NotNil(t, got[0].Meta.ScoringDetails)
	assert.Equal(t, 0.8, got[0].Meta.ScoringDetails.SmoothPnlScore)
	assert.Equal(t, 0.05, got[0].Meta.APIMaxDrawdown)
	assert.Equal(t, int64(1700000000000), got[0].FetchedAt)
}

func TestLeaderboardStore_ReplaceIsFullSwap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	err := store.ReplacePeriod(ctx, 30,
		[]*domain.RankedEntry{testEntry("0xold", 1, 0.9, 1.0)},
		[]*domain.PnlPoint{testPoint("0xold", 1000, 5)},
	)
	require.NoError(t, err)

	err = store.ReplacePeriod(ctx, 30,
		[]*domain.RankedEntry{testEntry("0xnew", 1, 0.7, 1.0)},
		nil,
	)
	require.NoError(t, err)

	got, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0xnew", got[0].Address)

	points, err := store.GetPnlPoints(ctx, 30, "0xold")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestLeaderboardStore_PeriodsAreIndependent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	require.NoError(t, store.ReplacePeriod(ctx, 7,
		[]*domain.RankedEntry{testEntry("0xweek", 1, 0.5, 1.0)}, nil))
	require.NoError(t, store.ReplacePeriod(ctx, 30,
		[]*domain.RankedEntry{testEntry("0xmonth", 1, 0.6, 1.0)}, nil))

	week, err := store.GetRanked(ctx, 7)
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Equal(t, "0xweek", week[0].Address)

	month, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	require.Len(t, month, 1)
	assert.Equal(t, "0xmonth", month[0].Address)
}

func TestLeaderboardStore_UpsertCollapsesCaseVariants(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	// Two case variants of the same address hit the same unique index
	// row; the second upsert wins.
	err := store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{
		testEntry("0xAbC", 1, 0.8, 0.6),
		testEntry("0xabc", 2, 0.5, 0.4),
	}, nil)
	require.NoError(t, err)

	got, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0xabc", got[0].Address)
	assert.Equal(t, 2, got[0].Rank)
}

func TestLeaderboardStore_GetSelectedOrdersByWeight(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	err := store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{
		testEntry("0xaaa", 1, 0.8, 0.5),
		testEntry("0xbbb", 2, 0.6, 0.3),
		testEntry("0xccc", 3, 0.4, 0.2),
		testEntry("0xddd", 4, 0.2, 0),
	}, nil)
	require.NoError(t, err)

	got, err := store.GetSelected(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "0xaaa", got[0].Address)
	assert.Equal(t, "0xbbb", got[1].Address)
	assert.Equal(t, "0xccc", got[2].Address)
}

func TestLeaderboardStore_GetPnlPointsCaseInsensitiveOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	equity := 101.5
	err := store.ReplacePeriod(ctx, 30, nil, []*domain.PnlPoint{
		testPoint("0xAbC", 2000, 8),
		testPoint("0xAbC", 1000, 5),
		{
			PeriodDays:  30,
			Address:     "0xAbC",
			Source:      domain.PnlSourceHyperliquid,
			WindowName:  "month",
			PointTs:     1500,
			EquityValue: &equity,
		},
	})
	require.NoError(t, err)

	got, err := store.GetPnlPoints(ctx, 30, "0XABC")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// hyperbot sorts before hyperliquid, timestamps ascend within a window.
	assert.Equal(t, domain.PnlSourceHyperbot, got[0].Source)
	assert.Equal(t, int64(1000), got[0].PointTs)
	assert.Equal(t, int64(2000), got[1].PointTs)
	assert.Equal(t, domain.PnlSourceHyperliquid, got[2].Source)
	require.NotNil(t, got[2].EquityValue)
	assert.Equal(t, 101.5, *got[2].EquityValue)
	assert.Nil(t, got[2].PnlValue)
}

func TestLeaderboardStore_NullableStatColumns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	bare := testEntry("0xbare", 1, 0.5, 1.0)
	enriched := testEntry("0xrich", 2, 0.4, 0)
	enriched.StatOpenPositions = ptr(3)
	enriched.StatClosedPositions = ptr(77)
	enriched.StatAvgPosDuration = ptr(3600.0)
	enriched.StatTotalPnl = ptr(51_000.0)
	enriched.StatMaxDrawdown = ptr(0.12)
	enriched.Filtered = true
	enriched.FilterReason = domain.FilterMaxDrawdownExceeded

	err := store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{bare, enriched}, nil)
	require.NoError(t, err)

	got, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].StatOpenPositions)
	assert.Nil(t, got[0].StatMaxDrawdown)
	assert.False(t, got[0].Filtered)
	assert.Equal(t, domain.FilterReason(""), got[0].FilterReason)

	require.NotNil(t, got[1].StatClosedPositions)
	assert.Equal(t, 77, *got[1].StatClosedPositions)
	require.NotNil(t, got[1].StatMaxDrawdown)
	assert.Equal(t, 0.12, *got[1].StatMaxDrawdown)
	assert.True(t, got[1].Filtered)
	assert.Equal(t, domain.FilterMaxDrawdownExceeded, got[1].FilterReason)
}

func TestLeaderboardStore_LargeBatchCrossesChunkBoundaries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	var entries []*domain.RankedEntry
	var points []*domain.PnlPoint
	for i := 0; i < entryChunkSize*2+7; i++ {
		addr := addrForIndex(i)
		entries = append(entries, testEntry(addr, i+1, 1.0/float64(i+1), 0))
	}
	for i := 0; i < pointChunkSize+13; i++ {
		points = append(points, testPoint("0x000000", int64(i), float64(i)))
	}

	err := store.ReplacePeriod(ctx, 30, entries, points)
	require.NoError(t, err)

	got, err := store.GetRanked(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, got, entryChunkSize*2+7)

	stored, err := store.GetPnlPoints(ctx, 30, "0x000000")
	require.NoError(t, err)
	assert.Len(t, stored, pointChunkSize+13)
}

func TestLeaderboardStore_InvalidPeriod(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)

	err := store.ReplacePeriod(context.Background(), 0, nil, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func addrForIndex(i int) string {
	const hex = "0123456789abcdef"
	b := []byte{'0', 'x', 0, 0, 0, 0}
	for pos := 5; pos >= 2; pos-- {
		b[pos] = hex[i%16]
		i /= 16
	}
	return string(b)
}
