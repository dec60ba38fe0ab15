// Package config resolves runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trader-alpha-lab/internal/domain"
)

// Default settings for the refresh service.
const (
	DefaultTopN              = 1000
	DefaultSelectCount       = 12
	DefaultPageSize          = 100
	DefaultRefreshInterval   = 24 * time.Hour
	DefaultSortKey           = 3 // realized pnl
	DefaultStatsConcurrency  = 4
	DefaultSeriesConcurrency = 2
	DefaultMetricsAddr       = ":9090"
)

// Config holds every runtime setting of the refresh service.
type Config struct {
	// Upstream endpoints
	LeaderboardURL string
	StatBaseURL    string
	InfoURL        string

	// Storage
	PostgresDSN   string
	ClickhouseDSN string // optional, archive disabled when empty
	RedisAddr     string // optional, publishing disabled when empty
	RedisPassword string
	RedisDB       int

	// Cycle shape
	TopN            int
	SelectCount     int
	EnrichCount     int // 0 means derive from SelectCount
	Periods         []int
	PageSize        int
	RefreshInterval time.Duration
	SortKey         int

	// Enrichment fan-out
	StatsConcurrency  int
	SeriesConcurrency int

	Scoring domain.ScoringParams

	MetricsAddr string
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for everything optional. Endpoint and DSN values are left
// empty when unset; the caller decides which of them are required.
func FromEnv() (Config, error) {
	cfg := Config{
		LeaderboardURL: os.Getenv("LEADERBOARD_URL"),
		StatBaseURL:    os.Getenv("STAT_BASE_URL"),
		InfoURL:        os.Getenv("INFO_URL"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:  os.Getenv("CLICKHOUSE_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		Scoring:        domain.DefaultScoringParams(),
		MetricsAddr:    envString("METRICS_ADDR", DefaultMetricsAddr),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.TopN, err = envInt("LEADERBOARD_TOP_N", DefaultTopN); err != nil {
		return cfg, err
	}
	if cfg.SelectCount, err = envInt("SELECT_COUNT", DefaultSelectCount); err != nil {
		return cfg, err
	}
	if cfg.EnrichCount, err = envInt("ENRICH_COUNT", 0); err != nil {
		return cfg, err
	}
	if cfg.Periods, err = envIntList("PERIODS", []int{30}); err != nil {
		return cfg, err
	}
	if cfg.PageSize, err = envInt("PAGE_SIZE", DefaultPageSize); err != nil {
		return cfg, err
	}
	if cfg.RefreshInterval, err = envDuration("REFRESH_INTERVAL", DefaultRefreshInterval); err != nil {
		return cfg, err
	}
	if cfg.SortKey, err = envInt("SORT_KEY", DefaultSortKey); err != nil {
		return cfg, err
	}
	if cfg.StatsConcurrency, err = envInt("STATS_CONCURRENCY", DefaultStatsConcurrency); err != nil {
		return cfg, err
	}
	if cfg.SeriesConcurrency, err = envInt("SERIES_CONCURRENCY", DefaultSeriesConcurrency); err != nil {
		return cfg, err
	}
	if err := scoringFromEnv(&cfg.Scoring); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func scoringFromEnv(p *domain.ScoringParams) error {
	var err error
	if p.SmoothPnlWeight, err = envFloat("WEIGHT_SMOOTH_PNL", p.SmoothPnlWeight); err != nil {
		return err
	}
	if p.WinRateWeight, err = envFloat("WEIGHT_WIN_RATE", p.WinRateWeight); err != nil {
		return err
	}
	if p.PnlWeight, err = envFloat("WEIGHT_PNL", p.PnlWeight); err != nil {
		return err
	}
	if p.TradeFreqWeight, err = envFloat("WEIGHT_TRADE_FREQ", p.TradeFreqWeight); err != nil {
		return err
	}
	if p.OptimalTrades, err = envFloat("OPTIMAL_TRADES", p.OptimalTrades); err != nil {
		return err
	}
	if p.TradeSigma, err = envFloat("TRADE_SIGMA", p.TradeSigma); err != nil {
		return err
	}
	if p.PnlReference, err = envFloat("PNL_REFERENCE", p.PnlReference); err != nil {
		return err
	}
	if p.MaxDrawdownLimit, err = envFloat("MAX_DRAWDOWN_LIMIT", p.MaxDrawdownLimit); err != nil {
		return err
	}
	if p.ScalpingThreshold, err = envInt("SCALPING_THRESHOLD", p.ScalpingThreshold); err != nil {
		return err
	}
	if p.MaxTradesHardLimit, err = envInt("MAX_TRADES_HARD_LIMIT", p.MaxTradesHardLimit); err != nil {
		return err
	}
	if p.FallbackWhenAllFiltered, err = envBool("FALLBACK_WHEN_ALL_FILTERED", p.FallbackWhenAllFiltered); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the scheduler cannot run with.
func (c Config) Validate() error {
	if c.TopN < 1 {
		return fmt.Errorf("top n must be positive, got %d", c.TopN)
	}
	if c.SelectCount < 1 {
		return fmt.Errorf("select count must be positive, got %d", c.SelectCount)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", c.RefreshInterval)
	}
	if len(c.Periods) == 0 {
		return fmt.Errorf("at least one period is required")
	}
	for _, p := range c.Periods {
		if p < 1 {
			return fmt.Errorf("periods must be positive, got %d", p)
		}
	}
	return nil
}

// EffectiveEnrichCount resolves the enrichment set size: the configured
// count, never below twice the select count so re-filtering keeps
// enough replacement candidates.
func (c Config) EffectiveEnrichCount() int {
	enrich := c.EnrichCount
	if floor := c.SelectCount * 2; enrich < floor {
		enrich = floor
	}
	return enrich
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func envIntList(key string, fallback []int) ([]int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}
