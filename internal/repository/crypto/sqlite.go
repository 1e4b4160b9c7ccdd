// Package crypto persists cryptocurrency symbols and their daily prices.
package crypto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/apperror"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/ingest"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/platform/sqlite"
	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

const dateFormat = "2006-01-02"

// Stat summarizes stored coverage for one coin.
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

func (r *Repository) WithTx(tx *sql.Tx) ingest.Store {
	return &Repository{db: tx}
}

// Resolve returns the id for symbol, creating the coin row on first sight.
func (r *Repository) Resolve(ctx context.Context, sym ingest.Symbol) (string, error) {
	id, err := r.lookup(ctx, sym.Ticker)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup coin %s: %w", sym.Ticker, err)
	}

	name := sym.Name
	if name == "" {
		name = sym.Ticker
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cryptocurrencies (id, symbol, name) VALUES (?, ?, ?)`,
		uuid.NewString(), sym.Ticker, name)
	if err != nil {
		return "", fmt.Errorf("create coin %s: %w", sym.Ticker, err)
	}

	id, err = r.lookup(ctx, sym.Ticker)
	if err != nil {
		return "", fmt.Errorf("lookup coin %s after create: %w", sym.Ticker, err)
	}
	return id, nil
}

func (r *Repository) lookup(ctx context.Context, symbol string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM cryptocurrencies WHERE symbol = ?`, symbol).Scan(&id)
	return id, err
}

// ExistingDates returns the set of dates that already have a price for the coin.
func (r *Repository) ExistingDates(ctx context.Context, coinID string) (map[time.Time]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date FROM crypto_prices WHERE cryptocurrency_id = ?`, coinID)
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

// InsertBars upserts bars for the coin and returns how many rows were
// written. An existing (coin, date) row is overwritten with the new values.
func (r *Repository) InsertBars(ctx context.Context, coinID string, bars []provider.Bar) (int64, error) {
	query := `
		INSERT OR REPLACE INTO crypto_prices (id, cryptocurrency_id, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var written int64
	for _, b := range bars {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		_, err := r.db.ExecContext(ctx, query,
			uuid.NewString(), coinID, b.Date.Format(dateFormat),
			b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			slog.Warn("skipping price", "coinId", coinID, "date", b.Date.Format(dateFormat), "error", err)
			continue
		}
		written++
	}
	return written, nil
}

// Symbols lists stored coins.
func (r *Repository) Symbols(ctx context.Context) ([]ingest.Symbol, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, name FROM cryptocurrencies ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query coins: %w", err)
	}
	defer rows.Close()

	var symbols []ingest.Symbol
	for rows.Next() {
		var s ingest.Symbol
		if err := rows.Scan(&s.Ticker, &s.Name); err != nil {
			return nil, fmt.Errorf("scan coin: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Stats returns per-coin price coverage.
func (r *Repository) Stats(ctx context.Context) ([]Stat, error) {
	query := `
		SELECT c.symbol, c.name, COUNT(p.id), COALESCE(MIN(p.date), ''), COALESCE(MAX(p.date), '')
		FROM cryptocurrencies c
		LEFT JOIN crypto_prices p ON p.cryptocurrency_id = c.id
		GROUP BY c.id
		ORDER BY c.symbol
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

// Stat returns price coverage for one coin.
func (r *Repository) Stat(ctx context.Context, symbol string) (Stat, error) {
	query := `
		SELECT c.symbol, c.name, COUNT(p.id), COALESCE(MIN(p.date), ''), COALESCE(MAX(p.date), '')
		FROM cryptocurrencies c
		LEFT JOIN crypto_prices p ON p.cryptocurrency_id = c.id
		WHERE c.symbol = ?
		GROUP BY c.id
	`
	var s Stat
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&s.Symbol, &s.Name, &s.Bars, &s.First, &s.Latest)
	if errors.Is(err, sql.ErrNoRows) {
		return Stat{}, apperror.New(apperror.NotFound, fmt.Sprintf("no coin with symbol %s", symbol))
	}
	if err != nil {
		return Stat{}, fmt.Errorf("query stat for %s: %w", symbol, err)
	}
	return s, nil
}
