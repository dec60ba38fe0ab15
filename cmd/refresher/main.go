// Package main runs the leaderboard refresh service: it periodically
// fetches the remote leaderboard, scores and enriches the traders,
// persists the ranked snapshot and publishes the selected candidates.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"trader-alpha-lab/internal/config"
	"trader-alpha-lab/internal/gate"
	"trader-alpha-lab/internal/observability"
	"trader-alpha-lab/internal/scheduler"
	"trader-alpha-lab/internal/sink"
	"trader-alpha-lab/internal/storage"
	chstore "trader-alpha-lab/internal/storage/clickhouse"
	"trader-alpha-lab/internal/storage/memory"
	"trader-alpha-lab/internal/storage/migrations"
	pgstore "trader-alpha-lab/internal/storage/postgres"
	"trader-alpha-lab/internal/upstream"
)

func main() {
	loadEnvFile()

	cfg, err := config.FromEnv()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	// Flags override the environment.
	leaderboardURL := flag.String("leaderboard-url", cfg.LeaderboardURL, "Leaderboard page endpoint")
	statBaseURL := flag.String("stat-base-url", cfg.StatBaseURL, "Per-address stats base URL")
	infoURL := flag.String("info-url", cfg.InfoURL, "Exchange info endpoint (portfolio history)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (optional)")
	redisAddr := flag.String("redis-addr", cfg.RedisAddr, "Redis address for candidate publishing (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", "refresher").
		Logger()

	if *leaderboardURL == "" || *statBaseURL == "" || *infoURL == "" {
		log.Fatal().Msg("leaderboard-url, stat-base-url and info-url are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, *useMemory, *postgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer closeStore()

	var archive storage.PnlArchive
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("clickhouse init failed")
		}
		defer conn.Close()
		archive = chstore.NewPnlArchiveStore(conn)
		log.Info().Msg("pnl archive enabled")
	}

	var candidateSink sink.CandidateSink
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     *redisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		candidateSink = sink.NewRedisSink(client)
		defer candidateSink.Close()
		log.Info().Str("addr", *redisAddr).Msg("candidate publishing enabled")
	}

	statsGate, err := gate.New(cfg.StatsConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("stats gate init failed")
	}
	defer statsGate.Release()
	seriesGate, err := gate.New(cfg.SeriesConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("series gate init failed")
	}
	defer seriesGate.Release()

	client := upstream.NewClient(*leaderboardURL, *statBaseURL, *infoURL,
		upstream.WithLogger(log.With().Str("component", "upstream").Logger()),
	)

	refresher := scheduler.NewRefresher(client, store, archive, candidateSink,
		statsGate, seriesGate,
		scheduler.Options{
			TopN:        cfg.TopN,
			SelectCount: cfg.SelectCount,
			EnrichCount: cfg.EffectiveEnrichCount(),
			Periods:     cfg.Periods,
			PageSize:    cfg.PageSize,
			Interval:    cfg.RefreshInterval,
			Sort:        upstream.Sort(cfg.SortKey),
			Scoring:     cfg.Scoring,
		},
		log.With().Str("component", "scheduler").Logger(),
	)

	go serveMetrics(*metricsAddr, log)

	log.Info().
		Ints("periods", cfg.Periods).
		Int("top_n", cfg.TopN).
		Int("select_count", cfg.SelectCount).
		Dur("interval", cfg.RefreshInterval).
		Msg("refresher starting")

	go refresher.Start(ctx)

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	refresher.Stop()
	log.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, useMemory bool, dsn string) (storage.LeaderboardStore, func(), error) {
	if useMemory {
		return memory.NewLeaderboardStore(), func() {}, nil
	}
	if dsn == "" {
		return nil, nil, errors.New("postgres-dsn is required (or pass --use-memory)")
	}
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewLeaderboardStore(pool), pool.Close, nil
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
