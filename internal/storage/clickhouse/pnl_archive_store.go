package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/observability"
	"trader-alpha-lab/internal/storage"
)

// PnlArchiveStore implements storage.PnlArchive using ClickHouse.
// Inserts are append-only; ReplacingMergeTree collapses re-inserted
// points at merge time.
type PnlArchiveStore struct {
	conn *Conn
}

// NewPnlArchiveStore creates a new PnlArchiveStore.
func NewPnlArchiveStore(conn *Conn) *PnlArchiveStore {
	return &PnlArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PnlArchive = (*PnlArchiveStore)(nil)

// Append writes points to the archive in one batch.
func (s *PnlArchiveStore) Append(ctx context.Context, points []*domain.PnlPoint) error {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	err := s.append(ctx, points)
	observability.RecordDBQuery("archive_append", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("append pnl points: %w", err)
	}
	return nil
}

func (s *PnlArchiveStore) append(ctx context.Context, points []*domain.PnlPoint) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pnl_points_archive (
			period_days, address, source, window_name, point_ts, pnl_value, equity_value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			uint16(p.PeriodDays), p.Address, string(p.Source), p.WindowName,
			uint64(p.PointTs), p.PnlValue, p.EquityValue,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves archived points for one address in one
// period, deduplicated and ordered by timestamp ASC. Used by offline
// analysis, not by the refresh path.
func (s *PnlArchiveStore) GetByAddress(ctx context.Context, periodDays int, address string) ([]*domain.PnlPoint, error) {
	query := `
		SELECT period_days, address, source, window_name, point_ts, pnl_value, equity_value
		FROM pnl_points_archive FINAL
		WHERE period_days = ? AND address = ?
		ORDER BY source ASC, window_name ASC, point_ts ASC
	`

	rows, err := s.conn.Query(ctx, query, uint16(periodDays), address)
	if err != nil {
		return nil, fmt.Errorf("query archive by address: %w", err)
	}
	defer rows.Close()

	var points []*domain.PnlPoint
	for rows.Next() {
		var (
			p       domain.PnlPoint
			period  uint16
			source  string
			pointTs uint64
		)
		if err := rows.Scan(&period, &p.Address, &source, &p.WindowName, &pointTs, &p.PnlValue, &p.EquityValue); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		p.PeriodDays = int(period)
		p.Source = domain.PnlSource(source)
		p.PointTs = int64(pointTs)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return points, nil
}
