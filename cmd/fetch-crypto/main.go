// Command fetch-crypto refreshes daily prices for the configured coin
// catalog, overwriting stored rows so intraday snapshots converge on final
// values. With -discover the universe comes from the Yahoo screener instead.
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
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider/yahoo"
	cryptorepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/crypto"
	runlogrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		discover   = flag.Bool("discover", false, "pull the coin universe from the Yahoo screener")
		top        = flag.Int("top", 25, "screener size when -discover is set")
		period     = flag.String("period", "2y", "lookback period (e.g. 2y, 1mo)")
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

	prov := yahoo.New(yahoo.WithWorkers(cfg.Workers))

	universe := make([]ingest.Symbol, 0, len(cfg.Cryptos))
	for _, l := range cfg.Cryptos {
		universe = append(universe, ingest.Symbol{Ticker: l.Symbol, Name: l.Name})
	}

	// Discovery failure is not fatal: fall back to the built-in catalog so a
	// screener outage cannot stop the refresh.
	if *discover {
		quotes, err := prov.Screen(ctx, *top)
		if err != nil {
			slog.Warn("screener unavailable, using configured catalog", "error", err)
		} else {
			universe = universe[:0]
			for _, q := range quotes {
				universe = append(universe, ingest.Symbol{Ticker: q.Symbol, Name: q.Name})
			}
		}
	}

	driver := ingest.NewDriver(db.DB, cryptorepo.NewRepository(db.DB), prov, ingest.Config{
		Mode:           ingest.ModeReplace,
		Query:          provider.Query{Period: *period},
		CommitEvery:    cfg.CommitEvery,
		Pause:          cfg.Pause(),
		LongPauseEvery: cfg.LongPauseEvery,
		LongPause:      cfg.LongPause(),
	})
	driver.SetRunLog(runlogrepo.NewRepository(db.DB), "fetch-crypto")

	if _, err := driver.Run(ctx, universe); err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}
}
