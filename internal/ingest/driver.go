package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/runlog"
)

// Driver runs the per-symbol ingestion loop over a universe.
type Driver struct {
	db    *sql.DB
	store Store
	prov  provider.Provider
	cfg   Config

	runs   runlog.Repository
	script string
}

func NewDriver(db *sql.DB, store Store, prov provider.Provider, cfg Config) *Driver {
	return &Driver{db: db, store: store, prov: prov, cfg: cfg}
}

// SetRunLog makes the driver record each run under the given script name.
// Recording is best-effort and never fails a run.
func (d *Driver) SetRunLog(repo runlog.Repository, script string) {
	d.runs = repo
	d.script = script
}

// Run processes the universe sequentially. One symbol's failure never aborts
// the run; only transaction management and cancellation do. The returned
// summary is valid even when err is non-nil.
func (d *Driver) Run(ctx context.Context, universe []Symbol) (Summary, error) {
	var sum Summary

	if len(universe) == 0 {
		slog.Info("universe is empty, nothing to ingest")
		return sum, nil
	}

	run := d.startRun(ctx)
	err := d.loop(ctx, universe, &sum)
	d.finishRun(ctx, run, sum, err)
	if err != nil {
		return sum, err
	}

	slog.Info("run complete",
		"symbols", sum.Symbols, "succeeded", sum.Succeeded,
		"failed", sum.Failed, "inserted", sum.Inserted)
	return sum, nil
}

func (d *Driver) loop(ctx context.Context, universe []Symbol, sum *Summary) error {
	commitEvery := d.cfg.CommitEvery
	if commitEvery <= 0 {
		commitEvery = 10
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Release the transaction on every exit path. Commits below set tx to
	// nil once the work is durable.
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()
	store := d.store.WithTx(tx)

	for i, sym := range universe {
		n, symErr := d.ingestSymbol(ctx, store, sym)
		if symErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("symbol failed", "symbol", sym.Ticker, "error", symErr)
			sum.Failed++
		} else {
			sum.Succeeded++
			sum.Inserted += n
		}
		sum.Symbols++

		last := i == len(universe)-1

		if !last && (i+1)%commitEvery == 0 {
			if err := tx.Commit(); err != nil {
				tx = nil
				return fmt.Errorf("commit: %w", err)
			}
			tx, err = d.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin transaction: %w", err)
			}
			store = d.store.WithTx(tx)
		}

		if !last {
			pause := d.cfg.Pause
			if d.cfg.LongPauseEvery > 0 && (i+1)%d.cfg.LongPauseEvery == 0 {
				pause = d.cfg.LongPause
			}
			if err := sleepContext(ctx, pause); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (d *Driver) ingestSymbol(ctx context.Context, store Store, sym Symbol) (int64, error) {
	id, err := store.Resolve(ctx, sym)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", sym.Ticker, err)
	}

	bars, err := d.prov.Fetch(ctx, sym.Ticker, d.cfg.Query)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", sym.Ticker, err)
	}
	if len(bars) == 0 {
		slog.Info("no data for symbol", "symbol", sym.Ticker)
		return 0, nil
	}

	fetched := len(bars)
	if d.cfg.Mode != ModeReplace {
		existing, err := store.ExistingDates(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("existing dates for %s: %w", sym.Ticker, err)
		}
		bars = filterNew(bars, existing)
		if len(bars) == 0 {
			slog.Info("already up to date", "symbol", sym.Ticker, "fetched", fetched)
			return 0, nil
		}
	}

	n, err := store.InsertBars(ctx, id, bars)
	if err != nil {
		return 0, fmt.Errorf("insert bars for %s: %w", sym.Ticker, err)
	}

	slog.Info("ingested", "symbol", sym.Ticker, "fetched", fetched, "inserted", n)
	return n, nil
}

func (d *Driver) startRun(ctx context.Context) *runlog.Run {
	if d.runs == nil {
		return nil
	}
	run := &runlog.Run{
		Script:    d.script,
		Status:    runlog.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := d.runs.Create(ctx, run); err != nil {
		slog.Warn("record run start", "error", err)
		return nil
	}
	return run
}

func (d *Driver) finishRun(ctx context.Context, run *runlog.Run, sum Summary, runErr error) {
	if run == nil {
		return
	}

	// The finish update must land even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	run.Status = runlog.StatusCompleted
	if runErr != nil {
		run.Status = runlog.StatusFailed
		run.Error = runErr.Error()
	}
	run.Symbols = sum.Symbols
	run.Succeeded = sum.Succeeded
	run.Failed = sum.Failed
	run.Inserted = sum.Inserted

	if err := d.runs.Update(ctx, run); err != nil {
		slog.Warn("record run finish", "error", err)
	}
}
