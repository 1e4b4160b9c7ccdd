package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

// Store persists asset identities and their bars. One implementation covers
// the stock tables (skip-on-duplicate), another the cryptocurrency tables
// (replace-on-duplicate); the driver stays agnostic.
type Store interface {
	// WithTx returns a copy of the store bound to tx. The driver owns the
	// transaction lifecycle and rebinds at every commit boundary.
	WithTx(tx *sql.Tx) Store

	// Resolve returns the stable id for the symbol, creating the identity
	// row on first sight. Repeated calls with the same symbol return the
	// same id.
	Resolve(ctx context.Context, sym Symbol) (string, error)

	// ExistingDates returns every stored bar date for the asset, queried
	// once per symbol so the duplicate filter is a single round trip.
	ExistingDates(ctx context.Context, assetID string) (map[time.Time]bool, error)

	// InsertBars writes the bars and returns how many rows actually landed.
	// Individual row failures are logged and skipped, so the count may be
	// lower than len(bars).
	InsertBars(ctx context.Context, assetID string, bars []provider.Bar) (int64, error)
}
