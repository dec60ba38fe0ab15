package storage

import (
	"context"

	"trader-alpha-lab/internal/domain"
)

// LeaderboardStore provides access to ranked_entries and pnl_points
// storage. One period's data is always replaced as a unit.
type LeaderboardStore interface {
	// ReplacePeriod atomically swaps the stored snapshot for one period:
	// existing ranked entries and pnl points for periodDays are removed,
	// then the given entries and points are written. On error nothing is
	// changed and the previous snapshot stays readable.
	ReplacePeriod(ctx context.Context, periodDays int, entries []*domain.RankedEntry, points []*domain.PnlPoint) error

	// GetRanked retrieves every entry for a period, ordered by rank ASC.
	GetRanked(ctx context.Context, periodDays int) ([]*domain.RankedEntry, error)

	// GetSelected retrieves the entries carrying positive weight for a
	// period, ordered by weight DESC, rank ASC.
	GetSelected(ctx context.Context, periodDays int) ([]*domain.RankedEntry, error)

	// GetPnlPoints retrieves the stored pnl series for one address in one
	// period, ordered by source, window, timestamp ASC. The address match
	// is case-insensitive.
	GetPnlPoints(ctx context.Context, periodDays int, address string) ([]*domain.PnlPoint, error)
}

// PnlArchive is a best-effort analytical sink for pnl points. Appends
// are fire-and-forget from the caller's perspective: a failed append
// never blocks the relational snapshot.
type PnlArchive interface {
	// Append writes points to the archive. Duplicates across cycles are
	// acceptable; the archive deduplicates at query time.
	Append(ctx context.Context, points []*domain.PnlPoint) error
}
