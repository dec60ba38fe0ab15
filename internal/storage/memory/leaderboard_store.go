// Package memory provides in-memory store implementations for tests
// and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/storage"
)

// periodSnapshot holds one period's data as written by ReplacePeriod.
type periodSnapshot struct {
	entries []*domain.RankedEntry
	points  []*domain.PnlPoint
}

// LeaderboardStore is an in-memory implementation of
// storage.LeaderboardStore.
type LeaderboardStore struct {
	mu   sync.RWMutex
	data map[int]*periodSnapshot // keyed by period_days
}

// NewLeaderboardStore creates a new in-memory leaderboard store.
func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		data: make(map[int]*periodSnapshot),
	}
}

// Compile-time interface check.
var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

// ReplacePeriod swaps the stored snapshot for one period.
func (s *LeaderboardStore) ReplacePeriod(_ context.Context, periodDays int, entries []*domain.RankedEntry, points []*domain.PnlPoint) error {
	if periodDays < 1 {
		return storage.ErrInvalidInput
	}

	// Store copies to prevent external mutation
	snap := &periodSnapshot{
		entries: copyEntries(entries),
		points:  copyPoints(points),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[periodDays] = snap
	return nil
}

// GetRanked retrieves every entry for a period, ordered by rank ASC.
func (s *LeaderboardStore) GetRanked(_ context.Context, periodDays int) ([]*domain.RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[periodDays]
	if !exists {
		return nil, nil
	}

	result := copyEntries(snap.entries)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return strings.ToLower(result[i].Address) < strings.ToLower(result[j].Address)
	})
	return result, nil
}

// GetSelected retrieves the entries carrying positive weight, ordered
// by weight DESC, rank ASC.
func (s *LeaderboardStore) GetSelected(_ context.Context, periodDays int) ([]*domain.RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[periodDays]
	if !exists {
		return nil, nil
	}

	var result []*domain.RankedEntry
	for _, e := range snap.entries {
		if e.Weight > 0 {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Weight != result[j].Weight {
			return result[i].Weight > result[j].Weight
		}
		return result[i].Rank < result[j].Rank
	})
	return result, nil
}

// GetPnlPoints retrieves the stored pnl series for one address,
// matched case-insensitively.
func (s *LeaderboardStore) GetPnlPoints(_ context.Context, periodDays int, address string) ([]*domain.PnlPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[periodDays]
	if !exists {
		return nil, nil
	}

	want := strings.ToLower(address)
	var result []*domain.PnlPoint
	for _, p := range snap.points {
		if strings.ToLower(p.Address) == want {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		if result[i].WindowName != result[j].WindowName {
			return result[i].WindowName < result[j].WindowName
		}
		return result[i].PointTs < result[j].PointTs
	})
	return result, nil
}

func copyEntries(entries []*domain.RankedEntry) []*domain.RankedEntry {
	out := make([]*domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		entryCopy := *e
		out = append(out, &entryCopy)
	}
	return out
}

func copyPoints(points []*domain.PnlPoint) []*domain.PnlPoint {
	out := make([]*domain.PnlPoint, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		pointCopy := *p
		out = append(out, &pointCopy)
	}
	return out
}
