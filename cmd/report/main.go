// Package main prints the stored leaderboard snapshot for one period:
// the full ranking or only the selected (weighted) set.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"trader-alpha-lab/internal/domain"
	pgstore "trader-alpha-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	period := flag.Int("period", 30, "Leaderboard period in days")
	selectedOnly := flag.Bool("selected", false, "Show only the selected (weighted) entries")
	address := flag.String("address", "", "Print the stored pnl series for one address instead")

	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	store := pgstore.NewLeaderboardStore(pool)

	if *address != "" {
		printPnlSeries(ctx, store, *period, *address, log)
		return
	}

	var entries []*domain.RankedEntry
	if *selectedOnly {
		entries, err = store.GetSelected(ctx, *period)
	} else {
		entries, err = store.GetRanked(ctx, *period)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}
	if len(entries) == 0 {
		fmt.Printf("no entries stored for period %d\n", *period)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tADDRESS\tSCORE\tWEIGHT\tWIN RATE\tORDERS\tPNL\tMAX DD\tLABELS")
	for _, e := range entries {
		maxDD := "-"
		if e.StatMaxDrawdown != nil {
			maxDD = fmt.Sprintf("%.2f", *e.StatMaxDrawdown)
		}
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.2f\t%d\t%.0f\t%s\t%s\n",
			e.Rank, e.Address, e.Score, e.Weight, e.WinRate,
			e.ExecutedOrders, e.RealizedPnl, maxDD, strings.Join(e.Labels, ","))
	}
	w.Flush()
}

func printPnlSeries(ctx context.Context, store *pgstore.LeaderboardStore, period int, address string, log zerolog.Logger) {
	points, err := store.GetPnlPoints(ctx, period, address)
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}
	if len(points) == 0 {
		fmt.Printf("no pnl points stored for %s in period %d\n", address, period)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tWINDOW\tTIMESTAMP\tPNL\tEQUITY")
	for _, p := range points {
		pnl, equity := "-", "-"
		if p.PnlValue != nil {
			pnl = fmt.Sprintf("%.2f", *p.PnlValue)
		}
		if p.EquityValue != nil {
			equity = fmt.Sprintf("%.2f", *p.EquityValue)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Source, p.WindowName, p.PointTs, pnl, equity)
	}
	w.Flush()
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
