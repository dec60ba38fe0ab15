package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/observability"
	"trader-alpha-lab/internal/storage"
)

// Chunk sizes keep individual statements below the parameter limit.
const (
	entryChunkSize = 100
	pointChunkSize = 400
)

// LeaderboardStore implements storage.LeaderboardStore using PostgreSQL.
type LeaderboardStore struct {
	pool *Pool
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(pool *Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

const upsertEntrySQL = `
	INSERT INTO ranked_entries (
		period_days, address, rank, score, weight, filtered, filter_reason,
		win_rate, executed_orders, realized_pnl, efficiency, pnl_consistency,
		remark, labels,
		stat_open_positions, stat_closed_positions, stat_avg_pos_duration,
		stat_total_pnl, stat_max_drawdown,
		meta, fetched_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14,
		$15, $16, $17,
		$18, $19,
		$20, $21
	)
	ON CONFLICT (period_days, lower(address)) DO UPDATE SET
		address = EXCLUDED.address,
		rank = EXCLUDED.rank,
		score = EXCLUDED.score,
		weight = EXCLUDED.weight,
		filtered = EXCLUDED.filtered,
		filter_reason = EXCLUDED.filter_reason,
		win_rate = EXCLUDED.win_rate,
		executed_orders = EXCLUDED.executed_orders,
		realized_pnl = EXCLUDED.realized_pnl,
		efficiency = EXCLUDED.efficiency,
		pnl_consistency = EXCLUDED.pnl_consistency,
		remark = EXCLUDED.remark,
		labels = EXCLUDED.labels,
		stat_open_positions = EXCLUDED.stat_open_positions,
		stat_closed_positions = EXCLUDED.stat_closed_positions,
		stat_avg_pos_duration = EXCLUDED.stat_avg_pos_duration,
		stat_total_pnl = EXCLUDED.stat_total_pnl,
		stat_max_drawdown = EXCLUDED.stat_max_drawdown,
		meta = EXCLUDED.meta,
		fetched_at = EXCLUDED.fetched_at,
		updated_at = now()
`

const insertPointSQL = `
	INSERT INTO pnl_points (
		period_days, address, source, window_name, point_ts, pnl_value, equity_value
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const selectEntrySQL = `
	SELECT address, rank, score, weight, filtered, filter_reason,
		win_rate, executed_orders, realized_pnl, efficiency, pnl_consistency,
		remark, labels,
		stat_open_positions, stat_closed_positions, stat_avg_pos_duration,
		stat_total_pnl, stat_max_drawdown,
		meta, fetched_at
	FROM ranked_entries
`

// ReplacePeriod swaps the stored snapshot for one period inside a
// single transaction. Deletes cover entries and points; inserts run in
// chunks through pgx batches. Any failure rolls the whole swap back.
func (s *LeaderboardStore) ReplacePeriod(ctx context.Context, periodDays int, entries []*domain.RankedEntry, points []*domain.PnlPoint) error {
	if periodDays < 1 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	err := s.replacePeriod(ctx, periodDays, entries, points)
	observability.RecordDBQuery("replace_period", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("replace period %d: %w: %w", periodDays, storage.ErrReplaceFailed, err)
	}
	observability.RecordPersisted(len(entries), len(points))
	return nil
}

func (s *LeaderboardStore) replacePeriod(ctx context.Context, periodDays int, entries []*domain.RankedEntry, points []*domain.PnlPoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ranked_entries WHERE period_days = $1`, periodDays); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pnl_points WHERE period_days = $1`, periodDays); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}

	for chunkStart := 0; chunkStart < len(entries); chunkStart += entryChunkSize {
		chunk := entries[chunkStart:min(chunkStart+entryChunkSize, len(entries))]
		batch := &pgx.Batch{}
		for _, e := range chunk {
			args, err := entryArgs(periodDays, e)
			if err != nil {
				return err
			}
			batch.Queue(upsertEntrySQL, args...)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("upsert entries: %w", err)
		}
	}

	for chunkStart := 0; chunkStart < len(points); chunkStart += pointChunkSize {
		chunk := points[chunkStart:min(chunkStart+pointChunkSize, len(points))]
		batch := &pgx.Batch{}
		for _, p := range chunk {
			batch.Queue(insertPointSQL,
				p.PeriodDays, p.Address, string(p.Source), p.WindowName,
				p.PointTs, p.PnlValue, p.EquityValue,
			)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("insert points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRanked retrieves every entry for a period, ordered by rank ASC.
func (s *LeaderboardStore) GetRanked(ctx context.Context, periodDays int) ([]*domain.RankedEntry, error) {
	query := selectEntrySQL + `
		WHERE period_days = $1
		ORDER BY rank ASC, lower(address) ASC
	`

	rows, err := s.pool.Query(ctx, query, periodDays)
	if err != nil {
		return nil, fmt.Errorf("get ranked entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetSelected retrieves the entries carrying positive weight, ordered
// by weight DESC, rank ASC.
func (s *LeaderboardStore) GetSelected(ctx context.Context, periodDays int) ([]*domain.RankedEntry, error) {
	query := selectEntrySQL + `
		WHERE period_days = $1 AND weight > 0
		ORDER BY weight DESC, rank ASC
	`

	rows, err := s.pool.Query(ctx, query, periodDays)
	if err != nil {
		return nil, fmt.Errorf("get selected entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetPnlPoints retrieves the stored pnl series for one address.
func (s *LeaderboardStore) GetPnlPoints(ctx context.Context, periodDays int, address string) ([]*domain.PnlPoint, error) {
	query := `
		SELECT period_days, address, source, window_name, point_ts, pnl_value, equity_value
		FROM pnl_points
		WHERE period_days = $1 AND lower(address) = lower($2)
		ORDER BY source ASC, window_name ASC, point_ts ASC
	`

	rows, err := s.pool.Query(ctx, query, periodDays, address)
	if err != nil {
		return nil, fmt.Errorf("get pnl points: %w", err)
	}
	defer rows.Close()

	var points []*domain.PnlPoint
	for rows.Next() {
		var p domain.PnlPoint
		var source string
		if err := rows.Scan(&p.PeriodDays, &p.Address, &source, &p.WindowName, &p.PointTs, &p.PnlValue, &p.EquityValue); err != nil {
			return nil, fmt.Errorf("scan pnl point row: %w", err)
		}
		p.Source = domain.PnlSource(source)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pnl point rows: %w", err)
	}
	return points, nil
}

func entryArgs(periodDays int, e *domain.RankedEntry) ([]interface{}, error) {
	labels, err := json.Marshal(e.Labels)
	if err != nil {
		return nil, fmt.Errorf("marshal labels for %s: %w", e.Address, err)
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta for %s: %w", e.Address, err)
	}

	var filterReason *string
	if e.FilterReason != "" {
		r := string(e.FilterReason)
		filterReason = &r
	}

	return []interface{}{
		periodDays, e.Address, e.Rank, e.Score, e.Weight, e.Filtered, filterReason,
		e.WinRate, e.ExecutedOrders, e.RealizedPnl, e.Efficiency, e.PnlConsistency,
		e.Remark, labels,
		e.StatOpenPositions, e.StatClosedPositions, e.StatAvgPosDuration,
		e.StatTotalPnl, e.StatMaxDrawdown,
		meta, e.FetchedAt,
	}, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// scanEntries scans multiple rows into a slice of RankedEntry.
func scanEntries(rows pgx.Rows) ([]*domain.RankedEntry, error) {
	var entries []*domain.RankedEntry

	for rows.Next() {
		var e domain.RankedEntry
		var filterReason *string
		var labels, meta []byte

		err := rows.Scan(
			&e.Address, &e.Rank, &e.Score, &e.Weight, &e.Filtered, &filterReason,
			&e.WinRate, &e.ExecutedOrders, &e.RealizedPnl, &e.Efficiency, &e.PnlConsistency,
			&e.Remark, &labels,
			&e.StatOpenPositions, &e.StatClosedPositions, &e.StatAvgPosDuration,
			&e.StatTotalPnl, &e.StatMaxDrawdown,
			&meta, &e.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ranked entry row: %w", err)
		}

		if filterReason != nil {
			e.FilterReason = domain.FilterReason(*filterReason)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &e.Labels); err != nil {
				return nil, fmt.Errorf("unmarshal labels for %s: %w", e.Address, err)
			}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal meta for %s: %w", e.Address, err)
			}
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked entry rows: %w", err)
	}
	return entries, nil
}
