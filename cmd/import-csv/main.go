// Command import-csv loads daily bars from a directory of per-symbol CSV
// exports. Local reads need no rate limiting, so symbols are ingested
// back to back.
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
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider/csvfile"
	assetrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/asset"
	runlogrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/runlog"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to YAML config file")
		dir          = flag.String("dir", "", "directory of <SYMBOL>.csv files (required)")
		skipExisting = flag.Bool("skip-existing", false, "skip symbols that already have bars")
	)
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	prov := csvfile.New(*dir)
	assetRepo := assetrepo.NewRepository(db.DB)

	names, err := prov.Symbols()
	if err != nil {
		slog.Error("failed to list csv files", "error", err)
		os.Exit(1)
	}

	var universe []ingest.Symbol
	skipped := 0
	for _, name := range names {
		if *skipExisting {
			has, err := assetRepo.HasBars(ctx, name)
			if err != nil {
				slog.Error("failed to check symbol", "symbol", name, "error", err)
				os.Exit(1)
			}
			if has {
				skipped++
				continue
			}
		}
		universe = append(universe, ingest.Symbol{Ticker: name})
	}
	if skipped > 0 {
		slog.Info("skipping symbols with existing bars", "count", skipped)
	}

	driver := ingest.NewDriver(db.DB, assetRepo, prov, ingest.Config{
		Mode:        ingest.ModeSkip,
		CommitEvery: cfg.CommitEvery,
	})
	driver.SetRunLog(runlogrepo.NewRepository(db.DB), "import-csv")

	if _, err := driver.Run(ctx, universe); err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}
}
