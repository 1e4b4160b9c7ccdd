package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL.csv", `Date,Open,High,Low,Close,Volume
2024-01-03,183.90,185.10,183.00,184.25,51000000
2024-01-02,184.50,186.00,183.80,185.01,48000000
`)

	p := New(dir)
	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	// Rows come back sorted ascending regardless of file order.
	if !bars[0].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected first bar 2024-01-02, got %s", bars[0].Date)
	}
	if bars[0].Close != 185.01 {
		t.Errorf("expected close 185.01, got %f", bars[0].Close)
	}
	if bars[0].Volume != 48000000 {
		t.Errorf("expected volume 48000000, got %f", bars[0].Volume)
	}
}

func TestFetch_MissingFileIsEmpty(t *testing.T) {
	p := New(t.TempDir())
	bars, err := p.Fetch(context.Background(), "NOSUCH", provider.Query{})
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if bars != nil {
		t.Errorf("expected nil bars, got %d", len(bars))
	}
}

func TestFetch_DropsIncompleteRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "X.csv", `Date,Open,High,Low,Close,Volume
2024-01-02,184.50,186.00,183.80,185.01,48000000
2024-01-03,183.90,185.10,183.00,,51000000
2024-01-04,NaN,185.10,183.00,184.00,51000000
2024-01-05,184.00,185.10,183.00,184.50,
`)

	p := New(dir)
	bars, err := p.Fetch(context.Background(), "X", provider.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (incomplete rows dropped), got %d", len(bars))
	}
	if bars[1].Volume != 0 {
		t.Errorf("expected missing volume to be 0, got %f", bars[1].Volume)
	}
}

func TestFetch_DatetimeDates(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "X.csv", `Date,Open,High,Low,Close,Volume
2024-01-02 00:00:00,184.50,186.00,183.80,185.01,48000000
`)

	p := New(dir)
	bars, err := p.Fetch(context.Background(), "X", provider.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if !bars[0].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected date 2024-01-02, got %s", bars[0].Date)
	}
}

func TestFetch_WindowFilter(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "X.csv", `Date,Open,High,Low,Close,Volume
2024-01-01,1,1,1,1,1
2024-01-02,2,2,2,2,2
2024-01-03,3,3,3,3,3
`)

	p := New(dir)
	bars, err := p.Fetch(context.Background(), "X", provider.Query{
		From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar in window, got %d", len(bars))
	}
	if bars[0].Close != 2 {
		t.Errorf("expected close 2, got %f", bars[0].Close)
	}
}

func TestFetch_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "X.csv", `Date,Open,High,Low,Volume
2024-01-01,1,1,1,1
`)

	p := New(dir)
	if _, err := p.Fetch(context.Background(), "X", provider.Query{}); err == nil {
		t.Fatal("expected error for missing close column")
	}
}

func TestFetch_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "X.csv", "")

	p := New(dir)
	bars, err := p.Fetch(context.Background(), "X", provider.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bars != nil {
		t.Errorf("expected nil bars for empty file, got %d", len(bars))
	}
}

func TestSymbols(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "MSFT.csv", "Date,Open,High,Low,Close,Volume\n")
	writeCSV(t, dir, "AAPL.csv", "Date,Open,High,Low,Close,Volume\n")
	writeCSV(t, dir, "notes.txt", "ignore me")
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	p := New(dir)
	symbols, err := p.Symbols()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"AAPL", "MSFT"}
	if len(symbols) != len(want) {
		t.Fatalf("expected %d symbols, got %d: %v", len(want), len(symbols), symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbols[%d] = %s, want %s", i, symbols[i], want[i])
		}
	}
}

func TestSymbols_MissingDir(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "nope"))
	if _, err := p.Symbols(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
