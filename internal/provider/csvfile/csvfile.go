// Package csvfile implements a provider that reads one CSV file per symbol
// from a local directory. Files use the layout exported by common history
// downloads: a Date,Open,High,Low,Close,Volume header followed by one row per
// trading day.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

const dateFormat = "2006-01-02"

type Provider struct {
	dir string
}

func New(dir string) *Provider {
	return &Provider{dir: dir}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "csv" }

// Symbols lists the symbols available in the directory, derived from the
// *.csv file names.
func (p *Provider) Symbols() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list csv directory: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ext))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Fetch reads <dir>/<symbol>.csv. A missing file is an empty result, not an
// error. Rows missing any of open/high/low/close are dropped; a missing
// volume is coerced to zero. When the query carries a window, rows outside
// it are filtered out.
func (p *Provider) Fetch(ctx context.Context, symbol string, q provider.Query) ([]provider.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing %q column", path, required)
		}
	}

	var bars []provider.Bar
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		date, ok := parseDate(field(record, col, "date"))
		if !ok {
			continue
		}
		open, ok1 := parseFloat(field(record, col, "open"))
		high, ok2 := parseFloat(field(record, col, "high"))
		low, ok3 := parseFloat(field(record, col, "low"))
		closeVal, ok4 := parseFloat(field(record, col, "close"))
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		volume, ok := parseFloat(field(record, col, "volume"))
		if !ok {
			volume = 0
		}

		if !q.From.IsZero() && date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && date.After(q.To) {
			continue
		}

		bars = append(bars, provider.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeVal,
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseDate accepts plain dates and datetime strings whose first ten
// characters form a date, normalizing to midnight UTC.
func parseDate(s string) (time.Time, bool) {
	if len(s) > len(dateFormat) {
		s = s[:len(dateFormat)]
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseFloat rejects blank cells and literal NaNs, both of which pandas
// writes for missing values.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
