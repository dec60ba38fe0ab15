// Package scheduler drives the periodic leaderboard refresh: fetch,
// score, enrich, persist, publish.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/gate"
	"trader-alpha-lab/internal/observability"
	"trader-alpha-lab/internal/scoring"
	"trader-alpha-lab/internal/sink"
	"trader-alpha-lab/internal/storage"
	"trader-alpha-lab/internal/upstream"
)

// LeaderboardClient is the slice of the upstream client the refresher
// needs.
type LeaderboardClient interface {
	FetchPage(ctx context.Context, period, pageNum, pageSize int, sort upstream.Sort) ([]*domain.RawLeaderboardEntry, bool, error)
	FetchAddressStat(ctx context.Context, address string, period int) (*domain.AddressStats, error)
	FetchPortfolioSeries(ctx context.Context, address string) ([]domain.WindowSeries, error)
}

// Options configures the refresher.
type Options struct {
	TopN        int
	SelectCount int
	EnrichCount int // resolved, never below twice SelectCount
	Periods     []int
	PageSize    int
	Interval    time.Duration
	Sort        upstream.Sort
	Scoring     domain.ScoringParams

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// Refresher runs one refresh cycle immediately on Start and then on
// every interval tick until Stop. Periods within a cycle run
// sequentially; enrichment inside a period fans out through the gates.
type Refresher struct {
	client     LeaderboardClient
	store      storage.LeaderboardStore
	archive    storage.PnlArchive // nil disables archiving
	sink       sink.CandidateSink // nil disables publishing
	statsGate  *gate.Gate
	seriesGate *gate.Gate
	opts       Options
	log        zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRefresher wires the refresh loop. The archive and sink are
// optional; pass nil to disable them.
func NewRefresher(
	client LeaderboardClient,
	store storage.LeaderboardStore,
	archive storage.PnlArchive,
	candidateSink sink.CandidateSink,
	statsGate, seriesGate *gate.Gate,
	opts Options,
	log zerolog.Logger,
) *Refresher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if floor := opts.SelectCount * 2; opts.EnrichCount < floor {
		opts.EnrichCount = floor
	}
	return &Refresher{
		client:     client,
		store:      store,
		archive:    archive,
		sink:       candidateSink,
		statsGate:  statsGate,
		seriesGate: seriesGate,
		opts:       opts,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop is called or ctx is
// cancelled. It blocks; callers run it in a goroutine.
func (r *Refresher) Start(ctx context.Context) {
	defer close(r.done)

	r.RunCycle(ctx)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight cycle to
// finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// RunCycle refreshes every configured period once. A failed period is
// logged and counted; the remaining periods still run.
func (r *Refresher) RunCycle(ctx context.Context) {
	for _, period := range r.opts.Periods {
		if ctx.Err() != nil {
			return
		}

		start := r.opts.Now()
		err := r.runPeriod(ctx, period)
		elapsed := r.opts.Now().Sub(start).Seconds()

		if err != nil {
			observability.RecordCycle(period, "error", elapsed)
			r.log.Error().Int("period", period).Err(err).Msg("refresh cycle failed")
			continue
		}
		observability.RecordCycle(period, "ok", elapsed)
		observability.MarkCycleSuccess(float64(r.opts.Now().Unix()))
		r.log.Info().Int("period", period).Float64("seconds", elapsed).Msg("refresh cycle committed")
	}
}

func (r *Refresher) runPeriod(ctx context.Context, period int) error {
	raw, err := r.fetchLeaderboard(ctx, period)
	if err != nil {
		return fmt.Errorf("fetch leaderboard: %w", err)
	}
	r.log.Debug().Int("period", period).Int("entries", len(raw)).Msg("leaderboard fetched")

	ranked, dropped := scoring.Score(raw, r.opts.Scoring, r.opts.SelectCount)
	r.recordScoring(len(raw), dropped)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	enrichTarget := r.opts.EnrichCount
	if enrichTarget > len(ranked) {
		enrichTarget = len(ranked)
	}
	stats, series := r.enrich(ctx, period, ranked[:enrichTarget])
	if ctx.Err() != nil {
		return ctx.Err()
	}

	scoring.ApplyStats(ranked, stats)
	final := scoring.Refilter(ranked, r.opts.Scoring, r.opts.SelectCount)

	tracked := selectedEntries(final, r.opts.SelectCount)
	points := storage.BuildPnlPoints(period, tracked, series)

	if err := r.store.ReplacePeriod(ctx, period, final, points); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	r.archivePoints(ctx, points)
	r.publish(ctx, period, tracked)
	return nil
}

// fetchLeaderboard pages through the remote leaderboard until topN
// entries are collected or a short page signals the end. Upstream page
// numbering starts at 1.
func (r *Refresher) fetchLeaderboard(ctx context.Context, period int) ([]*domain.RawLeaderboardEntry, error) {
	var all []*domain.RawLeaderboardEntry

	for pageNum := 1; len(all) < r.opts.TopN; pageNum++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		entries, hasMore, err := r.client.FetchPage(ctx, period, pageNum, r.opts.PageSize, r.opts.Sort)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		all = append(all, entries...)
		if !hasMore {
			break
		}
	}

	if len(all) > r.opts.TopN {
		all = all[:r.opts.TopN]
	}
	return all, nil
}

// enrich fans the stats and portfolio calls out through the two gates.
// Individual call failures are logged and skipped; the cycle proceeds
// with whatever enrichment succeeded.
func (r *Refresher) enrich(ctx context.Context, period int, entries []*domain.RankedEntry) (map[string]*domain.AddressStats, map[string][]domain.WindowSeries) {
	stats := make(map[string]*domain.AddressStats, len(entries))
	series := make(map[string][]domain.WindowSeries, len(entries))
	var statsMu, seriesMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_ = r.statsGate.RunAll(ctx, len(entries), func(ctx context.Context, i int) {
			addr := entries[i].Address
			s, err := r.client.FetchAddressStat(ctx, addr, period)
			if err != nil {
				r.log.Warn().Int("period", period).Str("address", addr).Err(err).Msg("stats enrichment failed")
				return
			}
			if s == nil {
				return
			}
			statsMu.Lock()
			stats[addr] = s
			statsMu.Unlock()
		})
	}()

	go func() {
		defer wg.Done()
		_ = r.seriesGate.RunAll(ctx, len(entries), func(ctx context.Context, i int) {
			addr := entries[i].Address
			ws, err := r.client.FetchPortfolioSeries(ctx, addr)
			if err != nil {
				r.log.Warn().Int("period", period).Str("address", addr).Err(err).Msg("portfolio enrichment failed")
				return
			}
			if len(ws) == 0 {
				return
			}
			seriesMu.Lock()
			series[addr] = ws
			seriesMu.Unlock()
		})
	}()

	wg.Wait()
	return stats, series
}

func (r *Refresher) archivePoints(ctx context.Context, points []*domain.PnlPoint) {
	if r.archive == nil || len(points) == 0 {
		return
	}
	if err := r.archive.Append(ctx, points); err != nil {
		observability.RecordArchiveFailure()
		r.log.Warn().Err(err).Msg("pnl archive append failed")
	}
}

// publish emits one candidate event per selected entry. Publishing
// happens only after the snapshot committed; a failed publish is
// logged, not retried.
func (r *Refresher) publish(ctx context.Context, period int, tracked []*domain.RankedEntry) {
	if r.sink == nil {
		return
	}
	now := r.opts.Now()
	for _, e := range tracked {
		if ctx.Err() != nil {
			return
		}
		event := domain.NewCandidateEvent(e, period, now)
		if err := r.sink.Publish(ctx, event); err != nil {
			r.log.Warn().Str("address", e.Address).Err(err).Msg("candidate publish failed")
		}
	}
}

func (r *Refresher) recordScoring(rawCount int, dropped map[domain.FilterReason]int) {
	filtered := make(map[string]int, len(dropped))
	for reason, n := range dropped {
		filtered[string(reason)] = n
	}
	observability.RecordScored(rawCount, filtered)
}

// selectedEntries returns the entries inside the selected set, in rank
// order.
func selectedEntries(entries []*domain.RankedEntry, selectCount int) []*domain.RankedEntry {
	var out []*domain.RankedEntry
	for _, e := range entries {
		if e.Rank <= selectCount {
			out = append(out, e)
		}
	}
	return out
}
