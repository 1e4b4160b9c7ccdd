package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

// newTestServer returns a mock Yahoo Finance server that serves cookie, crumb,
// chart, and screener endpoints, along with a Provider configured to use it.
// The chart handler serves *chart and records the last query it saw in *gotQuery.
func newTestServer(t *testing.T, chart *chartResponse, gotQuery *map[string]string) (*httptest.Server, *Provider) {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "test-session"})
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/crumb", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test-crumb-123"))
	})

	mux.HandleFunc("/chart/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("crumb") != "test-crumb-123" {
			t.Errorf("expected crumb=test-crumb-123, got %s", q.Get("crumb"))
		}
		if q.Get("interval") != "1d" {
			t.Errorf("expected interval=1d, got %s", q.Get("interval"))
		}
		if gotQuery != nil {
			seen := make(map[string]string)
			for k := range q {
				seen[k] = q.Get(k)
			}
			*gotQuery = seen
		}
		_ = json.NewEncoder(w).Encode(chart)
	})

	mux.HandleFunc("/screener", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"finance":{"result":[{"quotes":[
			{"symbol":"BTC-USD","shortName":"Bitcoin USD"},
			{"symbol":"ETH-USD","shortName":"Ethereum USD"}
		]}],"error":null}}`))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	p := New(
		WithWorkers(1),
		WithClient(ts.Client()),
		WithChartEndpoint(ts.URL+"/chart"),
		WithCookieURL(ts.URL+"/cookie"),
		WithCrumbURL(ts.URL+"/crumb"),
		WithScreenerEndpoint(ts.URL+"/screener"),
	)

	return ts, p
}

func chartWith(timestamps []int64, open, high, low, closes, volume []any) *chartResponse {
	resp := &chartResponse{}
	result := chartResult{Timestamp: timestamps}
	result.Indicators.Quote = []chartQuote{{
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closes,
		Volume: volume,
	}}
	resp.Chart.Result = []chartResult{result}
	return resp
}

func TestFetch_Window(t *testing.T) {
	chart := chartWith(
		[]int64{1704153600, 1704240000},
		[]any{184.50, 183.90},
		[]any{186.00, 185.10},
		[]any{183.80, 183.00},
		[]any{185.01, 184.25},
		[]any{48000000.0, 51000000.0},
	)

	var got map[string]string
	_, p := newTestServer(t, chart, &got)

	q := provider.Query{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	bars, err := p.Fetch(context.Background(), "AAPL", q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	want := provider.Bar{
		Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:   184.50,
		High:   186.00,
		Low:    183.80,
		Close:  185.01,
		Volume: 48000000.0,
	}
	if bars[0] != want {
		t.Errorf("bar[0] = %+v, want %+v", bars[0], want)
	}

	if _, ok := got["period1"]; !ok {
		t.Error("expected period1 param for window query")
	}
	if _, ok := got["range"]; ok {
		t.Error("did not expect range param for window query")
	}
}

func TestFetch_Period(t *testing.T) {
	chart := chartWith(
		[]int64{1704153600},
		[]any{184.50}, []any{186.00}, []any{183.80}, []any{185.01}, []any{48000000.0},
	)

	var got map[string]string
	_, p := newTestServer(t, chart, &got)

	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}

	if got["range"] != "5d" {
		t.Errorf("expected range=5d, got %q", got["range"])
	}
	if _, ok := got["period1"]; ok {
		t.Error("did not expect period1 param for period query")
	}
}

func TestFetch_NullOHLCDropped(t *testing.T) {
	// Second bar misses its close, third misses its open: both dropped.
	chart := chartWith(
		[]int64{1704153600, 1704240000, 1704326400},
		[]any{184.50, 183.90, nil},
		[]any{186.00, 185.10, 185.00},
		[]any{183.80, 183.00, 182.90},
		[]any{185.01, nil, 184.25},
		[]any{48000000.0, 51000000.0, 49000000.0},
	)

	_, p := newTestServer(t, chart, nil)

	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar (nulls dropped), got %d", len(bars))
	}
	if bars[0].Close != 185.01 {
		t.Errorf("expected close 185.01, got %f", bars[0].Close)
	}
}

func TestFetch_NullVolumeIsZero(t *testing.T) {
	chart := chartWith(
		[]int64{1704153600},
		[]any{184.50}, []any{186.00}, []any{183.80}, []any{185.01}, []any{nil},
	)

	_, p := newTestServer(t, chart, nil)

	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Volume != 0 {
		t.Errorf("expected volume 0, got %f", bars[0].Volume)
	}
}

func TestFetch_ShortVolumeArray(t *testing.T) {
	chart := chartWith(
		[]int64{1704153600, 1704240000},
		[]any{184.50, 183.90},
		[]any{186.00, 185.10},
		[]any{183.80, 183.00},
		[]any{185.01, 184.25},
		[]any{48000000.0},
	)

	_, p := newTestServer(t, chart, nil)

	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[1].Volume != 0 {
		t.Errorf("expected missing volume to be 0, got %f", bars[1].Volume)
	}
}

func TestFetch_EmptyResult(t *testing.T) {
	_, p := newTestServer(t, &chartResponse{}, nil)

	bars, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bars != nil {
		t.Errorf("expected nil bars, got %d", len(bars))
	}
}

func TestFetch_UnknownSymbolIsEmpty(t *testing.T) {
	chart := &chartResponse{}
	chart.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}

	_, p := newTestServer(t, chart, nil)

	bars, err := p.Fetch(context.Background(), "NOSUCH", provider.Query{Period: "5d"})
	if err != nil {
		t.Fatalf("expected no error for unknown symbol, got: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected 0 bars, got %d", len(bars))
	}
}

func TestFetch_ChartErrorPropagates(t *testing.T) {
	chart := &chartResponse{}
	chart.Chart.Error = &chartError{Code: "Internal Server Error", Description: "upstream failure"}

	_, p := newTestServer(t, chart, nil)

	_, err := p.Fetch(context.Background(), "AAPL", provider.Query{Period: "5d"})
	if err == nil {
		t.Fatal("expected error for chart failure")
	}
}

func TestFetch_EmptySymbol(t *testing.T) {
	p := New()
	_, err := p.Fetch(context.Background(), "", provider.Query{Period: "5d"})
	if err == nil {
		t.Fatal("expected error for empty symbol")
	}
}

func TestFetch_QueryWithoutSpan(t *testing.T) {
	_, p := newTestServer(t, &chartResponse{}, nil)
	_, err := p.Fetch(context.Background(), "AAPL", provider.Query{})
	if err == nil {
		t.Fatal("expected error for query without period or start date")
	}
}

func TestScreen(t *testing.T) {
	_, p := newTestServer(t, &chartResponse{}, nil)

	quotes, err := p.Screen(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Symbol != "BTC-USD" {
		t.Errorf("expected BTC-USD first, got %s", quotes[0].Symbol)
	}
	if quotes[0].Name != "Bitcoin USD" {
		t.Errorf("expected name 'Bitcoin USD', got %q", quotes[0].Name)
	}
}

func TestScreen_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/crumb" {
			_, _ = w.Write([]byte("c"))
			return
		}
		if r.URL.Path == "/cookie" {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := New(
		WithClient(ts.Client()),
		WithCookieURL(ts.URL+"/cookie"),
		WithCrumbURL(ts.URL+"/crumb"),
		WithScreenerEndpoint(ts.URL+"/screener"),
	)

	if _, err := p.Screen(context.Background(), 10); err == nil {
		t.Fatal("expected error for screener failure")
	}
}

func TestName(t *testing.T) {
	p := New()
	if p.Name() != "yahoo" {
		t.Errorf("expected name 'yahoo', got '%s'", p.Name())
	}
}
