// Command report prints stored coverage: bars per symbol, store totals, and
// the outcome of recent runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/apperror"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/config"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	assetrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/asset"
	cryptorepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/crypto"
	runlogrepo "github.com/ahmethakanbesel/ohlcv-ingest/internal/repository/runlog"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		symbol     = flag.String("symbol", "", "report a single symbol")
		runLimit   = flag.Int("runs", 10, "how many recent runs to show")
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

	assetRepo := assetrepo.NewRepository(db.DB)
	cryptoRepo := cryptorepo.NewRepository(db.DB)

	if *symbol != "" {
		if err := reportSymbol(ctx, assetRepo, cryptoRepo, *symbol); err != nil {
			slog.Error("symbol report failed", "symbol", *symbol, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := reportStore(ctx, assetRepo, cryptoRepo); err != nil {
		slog.Error("store report failed", "error", err)
		os.Exit(1)
	}
	if err := reportRuns(ctx, runlogrepo.NewRepository(db.DB), *runLimit); err != nil {
		slog.Error("run report failed", "error", err)
		os.Exit(1)
	}
}

// reportSymbol looks the symbol up among stocks first, then coins.
func reportSymbol(ctx context.Context, assets *assetrepo.Repository, coins *cryptorepo.Repository, symbol string) error {
	if s, err := assets.Stat(ctx, symbol); err == nil {
		printStat(s.Symbol, s.Name, s.Bars, s.First, s.Latest)
		return nil
	} else if apperror.CodeOf(err) != apperror.NotFound {
		return err
	}

	s, err := coins.Stat(ctx, symbol)
	if err != nil {
		return err
	}
	printStat(s.Symbol, s.Name, s.Bars, s.First, s.Latest)
	return nil
}

func printStat(symbol, name string, bars int64, first, latest string) {
	fmt.Printf("%s (%s)\n", symbol, name)
	fmt.Printf("  bars:   %d\n", bars)
	if bars > 0 {
		fmt.Printf("  range:  %s .. %s\n", first, latest)
	}
}

func reportStore(ctx context.Context, assets *assetrepo.Repository, coins *cryptorepo.Repository) error {
	assetStats, err := assets.Stats(ctx)
	if err != nil {
		return err
	}
	coinStats, err := coins.Stats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	var totalBars int64
	fmt.Fprintln(w, "SYMBOL\tNAME\tBARS\tFIRST\tLATEST")
	for _, s := range assetStats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Symbol, s.Name, s.Bars, s.First, s.Latest)
		totalBars += s.Bars
	}
	for _, s := range coinStats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Symbol, s.Name, s.Bars, s.First, s.Latest)
		totalBars += s.Bars
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d stocks, %d coins, %d bars total\n\n", len(assetStats), len(coinStats), totalBars)
	return nil
}

func reportRuns(ctx context.Context, runs *runlogrepo.Repository, limit int) error {
	recent, err := runs.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SCRIPT\tSTATUS\tSYMBOLS\tOK\tFAILED\tINSERTED\tSTARTED\tDURATION")
	for _, r := range recent {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Script, r.Status, r.Symbols, r.Succeeded, r.Failed, r.Inserted,
			r.StartedAt.Format(time.RFC3339), duration(r))
	}
	return w.Flush()
}

func duration(r runlog.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}
