package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/storage"
)

func entry(address string, rank int, score, weight float64) *domain.RankedEntry {
	return &domain.RankedEntry{
		Address: address,
		Rank:    rank,
		Score:   score,
		Weight:  weight,
	}
}

func point(address, window string, ts int64, pnl float64) *domain.PnlPoint {
	return &domain.PnlPoint{
		PeriodDays: 30,
		Address:    address,
		Source:     domain.PnlSourceHyperbot,
		WindowName: window,
		PointTs:    ts,
		PnlValue:   &pnl,
	}
}

func TestLeaderboardStore_ReplaceAndGetRanked(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	entries := []*domain.RankedEntry{
		entry("0xbbb", 2, 0.5, 0.4),
		entry("0xaaa", 1, 0.8, 0.6),
	}
	err := store.ReplacePeriod(ctx, 30, entries, nil)
	if err != nil {
		t.Fatalf("ReplacePeriod failed: %v", err)
	}

	got, err := store.GetRanked(ctx, 30)
	if err != nil {
		t.Fatalf("GetRanked failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Address != "0xaaa" || got[1].Address != "0xbbb" {
		t.Errorf("expected rank order, got %s then %s", got[0].Address, got[1].Address)
	}
}

func TestLeaderboardStore_ReplaceIsFullSwap(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{
		entry("0xold", 1, 0.9, 1.0),
	}, []*domain.PnlPoint{point("0xold", "period_30", 1000, 5)})

	_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{
		entry("0xnew", 1, 0.7, 1.0),
	}, nil)

	got, err := store.GetRanked(ctx, 30)
	if err != nil {
		t.Fatalf("GetRanked failed: %v", err)
	}
	if len(got) != 1 || got[0].Address != "0xnew" {
		t.Fatalf("expected only the new snapshot, got %+v", got)
	}

	points, err := store.GetPnlPoints(ctx, 30, "0xold")
	if err != nil {
		t.Fatalf("GetPnlPoints failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected old points removed, got %d", len(points))
	}
}

func TestLeaderboardStore_PeriodsAreIndependent(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	_ = store.ReplacePeriod(ctx, 7, []*domain.RankedEntry{entry("0xweek", 1, 0.5, 1.0)}, nil)
	_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{entry("0xmonth", 1, 0.6, 1.0)}, nil)

	week, _ := store.GetRanked(ctx, 7)
	month, _ := store.GetRanked(ctx, 30)

	if len(week) != 1 || week[0].Address != "0xweek" {
		t.Errorf("period 7 polluted: %+v", week)
	}
	if len(month) != 1 || month[0].Address != "0xmonth" {
		t.Errorf("period 30 polluted: %+v", month)
	}
}

func TestLeaderboardStore_GetSelectedFiltersAndOrders(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{
		entry("0xaaa", 1, 0.8, 0.5),
		entry("0xbbb", 2, 0.6, 0.3),
		entry("0xccc", 3, 0.4, 0.2),
		entry("0xddd", 4, 0.2, 0), // beyond the selected set
	}, nil)

	got, err := store.GetSelected(ctx, 30)
	if err != nil {
		t.Fatalf("GetSelected failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 selected entries, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Weight > got[i-1].Weight {
			t.Errorf("selected entries not ordered by weight: %v then %v", got[i-1].Weight, got[i].Weight)
		}
	}
}

func TestLeaderboardStore_GetPnlPointsCaseInsensitive(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	_ = store.ReplacePeriod(ctx, 30, nil, []*domain.PnlPoint{
		point("0xAbC", "period_30", 2000, 8),
		point("0xAbC", "period_30", 1000, 5),
	})

	got, err := store.GetPnlPoints(ctx, 30, "0xabc")
	if err != nil {
		t.Fatalf("GetPnlPoints failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].PointTs != 1000 || got[1].PointTs != 2000 {
		t.Errorf("expected timestamp order, got %d then %d", got[0].PointTs, got[1].PointTs)
	}
}

func TestLeaderboardStore_InvalidPeriod(t *testing.T) {
	store := NewLeaderboardStore()

	err := store.ReplacePeriod(context.Background(), 0, nil, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLeaderboardStore_ReadsReturnCopies(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{entry("0xaaa", 1, 0.8, 1.0)}, nil)

	first, _ := store.GetRanked(ctx, 30)
	first[0].Score = -1

	second, _ := store.GetRanked(ctx, 30)
	if second[0].Score != 0.8 {
		t.Errorf("mutation of a read result leaked into the store: %v", second[0].Score)
	}
}

func TestLeaderboardStore_ConcurrentAccess(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(rank int) {
			defer wg.Done()
			_ = store.ReplacePeriod(ctx, 30, []*domain.RankedEntry{entry("0xaaa", rank, 0.5, 1.0)}, nil)
		}(i + 1)
		go func() {
			defer wg.Done()
			_, _ = store.GetRanked(ctx, 30)
		}()
	}
	wg.Wait()

	got, err := store.GetRanked(ctx, 30)
	if err != nil {
		t.Fatalf("GetRanked failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry after concurrent writes, got %d", len(got))
	}
}
