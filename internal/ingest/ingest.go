// Package ingest implements the idempotent price-ingestion procedure shared
// by every command: resolve the asset identity, fetch its series, drop
// already-stored dates, and write the remainder inside periodically
// committed transactions.
package ingest

import (
	"context"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

// Mode selects what happens when a fetched bar's date is already stored.
type Mode string

const (
	// ModeSkip drops bars whose date already exists. Used for stocks.
	ModeSkip Mode = "skip"
	// ModeReplace overwrites the stored row for a same-date bar. Used for
	// cryptocurrencies, whose source restates recent history on every fetch.
	ModeReplace Mode = "replace"
)

// Symbol is one entry of a run's universe.
type Symbol struct {
	Ticker string
	Name   string
}

// Summary reports what a run did.
type Summary struct {
	Symbols   int
	Succeeded int
	Failed    int
	Inserted  int64
}

// Config carries the run policy.
type Config struct {
	Mode  Mode
	Query provider.Query

	// CommitEvery bounds how many symbols of work are lost if the process
	// dies mid-run. Defaults to 10.
	CommitEvery int

	// Pause is the delay between symbols; LongPause replaces it after every
	// LongPauseEvery-th symbol. Zero pauses are skipped.
	Pause          time.Duration
	LongPauseEvery int
	LongPause      time.Duration
}

// filterNew returns the bars whose date is not in existing.
func filterNew(bars []provider.Bar, existing map[time.Time]bool) []provider.Bar {
	if len(existing) == 0 {
		return bars
	}
	out := make([]provider.Bar, 0, len(bars))
	for _, b := range bars {
		if existing[b.Date] {
			continue
		}
		out = append(out, b)
	}
	return out
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
