// Command backfill loads a multi-year price history for the configured stock
// list, creating asset rows on first sight. Safe to re-run: already stored
// days are skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/config"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/ingest"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider/yahoo"
	assetrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/asset"
	runlogrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		days       = flag.Int("days", 730, "how many days of history to load")
		symbols    = flag.String("symbols", "", "comma-separated symbols overriding the configured list")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.OpenWait(ctx, cfg.DBPath, cfg.OpenRetries, cfg.RetryDelay())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	universe := make([]ingest.Symbol, 0, len(cfg.Stocks))
	if *symbols != "" {
		for _, s := range strings.Split(*symbols, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				universe = append(universe, ingest.Symbol{Ticker: s})
			}
		}
	} else {
		for _, l := range cfg.Stocks {
			universe = append(universe, ingest.Symbol{Ticker: l.Symbol, Name: l.Name})
		}
	}

	now := time.Now().UTC()
	driver := ingest.NewDriver(db.DB, assetrepo.NewRepository(db.DB), yahoo.New(yahoo.WithWorkers(cfg.Workers)), ingest.Config{
		Mode:           ingest.ModeSkip,
		Query:          provider.Query{From: now.AddDate(0, 0, -*days), To: now},
		CommitEvery:    cfg.CommitEvery,
		Pause:          cfg.Pause(),
		LongPauseEvery: cfg.LongPauseEvery,
		LongPause:      cfg.LongPause(),
	})
	driver.SetRunLog(runlogrepo.NewRepository(db.DB), "backfill")

	if _, err := driver.Run(ctx, universe); err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}
}
