// Package asset persists stock and ETF symbols and their daily bars.
package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/apperror"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/ingest"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

const (
	dateFormat = "2006-01-02"

	defaultKind     = "STOCK"
	defaultExchange = "NASDAQ"

	// Above this many bars the per-row loop is too chatty; switch to
	// multi-row inserts.
	bulkRowLimit = 2000
	bulkBatch    = 50
)

// Stat summarizes stored coverage for one symbol.
type Stat struct {
	Symbol string
	Name   string
	Bars   int64
	First  string
	Latest string
}

type Repository struct {
	db sqlite.Querier
}

func NewRepository(db sqlite.Querier) *Repository {
	return &Repository{db: db}
}

// WithTx returns a view of the repository that runs every statement on tx.
func (r *Repository) WithTx(tx *sql.Tx) ingest.Store {
	return &Repository{db: tx}
}

// Resolve returns the id for symbol, creating the asset row on first sight.
func (r *Repository) Resolve(ctx context.Context, sym ingest.Symbol) (string, error) {
	id, err := r.lookup(ctx, sym.Ticker)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup asset %s: %w", sym.Ticker, err)
	}

	name := sym.Name
	if name == "" {
		name = sym.Ticker
	}

	query := `
		INSERT OR IGNORE INTO assets (id, symbol, name, kind, exchange)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, uuid.NewString(), sym.Ticker, name, defaultKind, defaultExchange)
	if err != nil {
		return "", fmt.Errorf("create asset %s: %w", sym.Ticker, err)
	}

	// Re-read instead of trusting our uuid: a concurrent writer may have
	// won the OR IGNORE race.
	id, err = r.lookup(ctx, sym.Ticker)
	if err != nil {
		return "", fmt.Errorf("lookup asset %s after create: %w", sym.Ticker, err)
	}
	return id, nil
}

func (r *Repository) lookup(ctx context.Context, symbol string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM assets WHERE symbol = ?`, symbol).Scan(&id)
	return id, err
}

// ExistingDates returns the set of dates that already have a bar for the asset.
func (r *Repository) ExistingDates(ctx context.Context, assetID string) (map[time.Time]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date FROM price_bars WHERE asset_id = ?`, assetID)
	if err != nil {
		return nil, fmt.Errorf("query existing dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[time.Time]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		d, err := time.Parse(dateFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", raw, err)
		}
		dates[d] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return dates, nil
}

// InsertBars writes bars for the asset and returns how many rows were new.
// Rows whose (asset, date) already exists are left untouched.
func (r *Repository) InsertBars(ctx context.Context, assetID string, bars []provider.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	if len(bars) > bulkRowLimit {
		return r.insertBulk(ctx, assetID, bars)
	}

	query := `
		INSERT OR IGNORE INTO price_bars (id, asset_id, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var inserted int64
	for _, b := range bars {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		res, err := r.db.ExecContext(ctx, query,
			uuid.NewString(), assetID, b.Date.Format(dateFormat),
			b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			slog.Warn("skipping bar", "assetId", assetID, "date", b.Date.Format(dateFormat), "error", err)
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// insertBulk writes bars in multi-row batches. A failed batch is logged and
// skipped so one bad row cannot sink a long backfill.
func (r *Repository) insertBulk(ctx context.Context, assetID string, bars []provider.Bar) (int64, error) {
	var inserted int64
	for start := 0; start < len(bars); start += bulkBatch {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		end := start + bulkBatch
		if end > len(bars) {
			end = len(bars)
		}
		batch := bars[start:end]

		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*8)
		for _, b := range batch {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				uuid.NewString(), assetID, b.Date.Format(dateFormat),
				b.Open, b.High, b.Low, b.Close, b.Volume)
		}

		query := fmt.Sprintf(`
			INSERT OR IGNORE INTO price_bars (id, asset_id, date, open, high, low, close, volume)
			VALUES %s
		`, strings.Join(placeholders, ", "))

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			slog.Warn("skipping batch", "assetId", assetID, "rows", len(batch), "error", err)
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// Symbols lists stored assets, optionally restricted to one kind.
func (r *Repository) Symbols(ctx context.Context, kind string) ([]ingest.Symbol, error) {
	query := `SELECT symbol, name FROM assets ORDER BY symbol`
	args := []any{}
	if kind != "" {
		query = `SELECT symbol, name FROM assets WHERE kind = ? ORDER BY symbol`
		args = append(args, kind)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var symbols []ingest.Symbol
	for rows.Next() {
		var s ingest.Symbol
		if err := rows.Scan(&s.Ticker, &s.Name); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// HasBars reports whether at least one bar is stored for symbol.
func (r *Repository) HasBars(ctx context.Context, symbol string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM price_bars p
			JOIN assets a ON a.id = p.asset_id
			WHERE a.symbol = ?
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, symbol).Scan(&exists); err != nil {
		return false, fmt.Errorf("check bars for %s: %w", symbol, err)
	}
	return exists, nil
}

// Stats returns per-symbol bar coverage for every stored asset.
func (r *Repository) Stats(ctx context.Context) ([]Stat, error) {
	query := `
		SELECT a.symbol, a.name, COUNT(p.id), COALESCE(MIN(p.date), ''), COALESCE(MAX(p.date), '')
		FROM assets a
		LEFT JOIN price_bars p ON p.asset_id = a.id
		GROUP BY a.id
		ORDER BY a.symbol
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []Stat
	for rows.Next() {
		var s Stat
		if err := rows.Scan(&s.Symbol, &s.Name, &s.Bars, &s.First, &s.Latest); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Stat returns bar coverage for one symbol.
func (r *Repository) Stat(ctx context.Context, symbol string) (Stat, error) {
	query := `
		SELECT a.symbol, a.name, COUNT(p.id), COALESCE(MIN(p.date), ''), COALESCE(MAX(p.date), '')
		FROM assets a
		LEFT JOIN price_bars p ON p.asset_id = a.id
		WHERE a.symbol = ?
		GROUP BY a.id
	`
	var s Stat
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&s.Symbol, &s.Name, &s.Bars, &s.First, &s.Latest)
	if errors.Is(err, sql.ErrNoRows) {
		return Stat{}, apperror.New(apperror.NotFound, fmt.Sprintf("no asset with symbol %s", symbol))
	}
	if err != nil {
		return Stat{}, fmt.Errorf("query stat for %s: %w", symbol, err)
	}
	return s, nil
}
