// Command fetch-daily tops up recent bars for every stock already in the
// store. Meant to run once per day after market close.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/config"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/ingest"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider/csvfile"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider/yahoo"
	assetrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/asset"
	runlogrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		period     = flag.String("period", "5d", "lookback period (e.g. 5d, 1mo)")
		source     = flag.String("source", "yahoo", "price source: yahoo or csv")
		dir        = flag.String("dir", "data/csv", "directory read by the csv source")
		limit      = flag.Int("limit", 0, "update at most this many symbols (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg)

	// Cancelled on SIGINT/SIGTERM so pauses and in-flight fetches stop promptly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.OpenWait(ctx, cfg.DBPath, cfg.OpenRetries, cfg.RetryDelay())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	registry := provider.NewRegistry()
	registry.Register(yahoo.New(yahoo.WithWorkers(cfg.Workers)))
	registry.Register(csvfile.New(*dir))

	prov, err := registry.Get(*source)
	if err != nil {
		slog.Error("unknown source", "error", err)
		os.Exit(1)
	}

	assetRepo := assetrepo.NewRepository(db.DB)

	universe, err := assetRepo.Symbols(ctx, "STOCK")
	if err != nil {
		slog.Error("failed to list symbols", "error", err)
		os.Exit(1)
	}
	if *limit > 0 && len(universe) > *limit {
		universe = universe[:*limit]
	}

	driver := ingest.NewDriver(db.DB, assetRepo, prov, ingest.Config{
		Mode:           ingest.ModeSkip,
		Query:          provider.Query{Period: *period},
		CommitEvery:    cfg.CommitEvery,
		Pause:          cfg.Pause(),
		LongPauseEvery: cfg.LongPauseEvery,
		LongPause:      cfg.LongPause(),
	})
	driver.SetRunLog(runlogrepo.NewRepository(db.DB), "fetch-daily")

	if _, err := driver.Run(ctx, universe); err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}
}
