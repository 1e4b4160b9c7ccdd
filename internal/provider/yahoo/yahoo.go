// Package yahoo implements a market-data provider backed by the Yahoo Finance
// v8 chart API. It uses cookie + crumb authentication, matching the approach
// used by the yfinance Python library.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/ohlcv-ingest/internal/provider"
)

const (
	defaultChartEndpoint    = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL        = "https://fc.yahoo.com"
	defaultCrumbURL         = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	defaultScreenerEndpoint = "https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved"
	dateFormat              = "2006-01-02"
	chunkDays               = 1250
	userAgent               = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Provider fetches daily OHLCV bars from Yahoo Finance.
type Provider struct {
	workers          int
	client           *http.Client
	chartEndpoint    string
	cookieURL        string
	crumbURL         string
	screenerEndpoint string

	mu    sync.Mutex
	crumb string
}

// New creates a Provider with the given options applied.
func New(opts ...Option) *Provider {
	jar, _ := cookiejar.New(nil)
	p := &Provider{
		workers:          5,
		client:           &http.Client{Jar: jar},
		chartEndpoint:    defaultChartEndpoint,
		cookieURL:        defaultCookieURL,
		crumbURL:         defaultCrumbURL,
		screenerEndpoint: defaultScreenerEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Option configures a Provider.
type Option func(*Provider)

// WithWorkers sets the concurrency for parallel chunk fetching within one
// symbol's window.
func WithWorkers(n int) Option {
	return func(p *Provider) { p.workers = n }
}

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithChartEndpoint overrides the default chart API endpoint.
func WithChartEndpoint(ep string) Option {
	return func(p *Provider) { p.chartEndpoint = ep }
}

// WithCookieURL overrides the URL used to obtain the session cookie.
func WithCookieURL(u string) Option {
	return func(p *Provider) { p.cookieURL = u }
}

// WithCrumbURL overrides the URL used to obtain the crumb token.
func WithCrumbURL(u string) Option {
	return func(p *Provider) { p.crumbURL = u }
}

// WithScreenerEndpoint overrides the predefined screener endpoint.
func WithScreenerEndpoint(ep string) Option {
	return func(p *Provider) { p.screenerEndpoint = ep }
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "yahoo" }

// chartResponse represents the Yahoo Finance v8 chart API response.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []any `json:"open"`
	High   []any `json:"high"`
	Low    []any `json:"low"`
	Close  []any `json:"close"`
	Volume []any `json:"volume"`
}

// Fetch retrieves daily bars for the symbol. A relative period ("5d", "2y",
// "max") is sent as-is; an explicit window is split into chunks fetched in
// parallel. An unknown or delisted symbol yields an empty result, not an error.
func (p *Provider) Fetch(ctx context.Context, symbol string, q provider.Query) ([]provider.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	if err := p.ensureCrumb(ctx); err != nil {
		return nil, fmt.Errorf("yahoo auth: %w", err)
	}

	if q.Period != "" {
		vals := url.Values{}
		vals.Set("range", q.Period)
		return p.fetchChart(ctx, symbol, vals)
	}

	from, to := q.From, q.To
	if from.IsZero() {
		return nil, fmt.Errorf("query needs a period or a start date")
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.After(to) {
		return nil, fmt.Errorf("start date cannot be after end date")
	}

	chunks := splitRange(from, to, chunkDays)
	results := make([][]provider.Bar, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			bars, err := p.fetchWindow(gctx, symbol, c.from, c.to)
			if err != nil {
				return fmt.Errorf("chunk %s..%s: %w", c.from.Format(dateFormat), c.to.Format(dateFormat), err)
			}
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []provider.Bar
	for _, bars := range results {
		all = append(all, bars...)
	}
	return all, nil
}

func (p *Provider) fetchWindow(ctx context.Context, symbol string, from, to time.Time) ([]provider.Bar, error) {
	vals := url.Values{}
	vals.Set("period1", strconv.FormatInt(from.Unix(), 10))
	// period2 is exclusive; push it one day past the window so the final
	// day's bar (stamped at market open, after midnight) is included.
	vals.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	return p.fetchChart(ctx, symbol, vals)
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (p *Provider) ensureCrumb(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crumb != "" {
		return nil
	}

	// Step 1: GET fc.yahoo.com to obtain a session cookie.
	cookieReq, err := http.NewRequestWithContext(ctx, "GET", p.cookieURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	cookieReq.Header.Set("User-Agent", userAgent)

	cookieRes, err := p.client.Do(cookieReq)
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}
	_ = cookieRes.Body.Close()

	// Step 2: GET crumb endpoint (cookie is sent automatically via jar).
	crumbReq, err := http.NewRequestWithContext(ctx, "GET", p.crumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}
	crumbReq.Header.Set("User-Agent", userAgent)

	crumbRes, err := p.client.Do(crumbReq)
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	p.crumb = crumb
	slog.Debug("yahoo: obtained crumb", "crumb_len", len(crumb))
	return nil
}

// fetchChart runs one chart API request and decodes the bars.
func (p *Provider) fetchChart(ctx context.Context, symbol string, vals url.Values) ([]provider.Bar, error) {
	p.mu.Lock()
	crumb := p.crumb
	p.mu.Unlock()

	vals.Set("interval", "1d")
	vals.Set("events", "div,splits")
	vals.Set("crumb", crumb)

	reqURL := fmt.Sprintf("%s/%s?%s", p.chartEndpoint, symbol, vals.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		// Invalidate crumb on auth errors so the next Fetch retries auth.
		p.mu.Lock()
		p.crumb = ""
		p.mu.Unlock()
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, symbol)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	// Yahoo reports unknown symbols as a chart error (with a 404 status), so
	// decode the body before checking the status code.
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, symbol)
		}
		return nil, fmt.Errorf("parse yahoo response: %w", err)
	}

	if cerr := resp.Chart.Error; cerr != nil {
		// Unknown or delisted symbols are "no data", not a failure.
		if cerr.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart error: %s: %s", cerr.Code, cerr.Description)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, symbol)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	bars := make([]provider.Bar, 0, len(result.Timestamp))
	for i := range result.Timestamp {
		open, ok1 := toFloat64(at(quote.Open, i))
		high, ok2 := toFloat64(at(quote.High, i))
		low, ok3 := toFloat64(at(quote.Low, i))
		closeVal, ok4 := toFloat64(at(quote.Close, i))
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		volume, ok := toFloat64(at(quote.Volume, i))
		if !ok {
			volume = 0
		}
		bars = append(bars, provider.Bar{
			Date:   time.Unix(result.Timestamp[i], 0).UTC().Truncate(24 * time.Hour),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeVal,
			Volume: volume,
		})
	}

	slog.Debug("retrieved yahoo data", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// Quote is one symbol returned by the screener.
type Quote struct {
	Symbol string
	Name   string
}

type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
			} `json:"quotes"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"finance"`
}

// Screen returns the top count symbols from the predefined cryptocurrency
// screener. Callers should fall back to a static catalog when it fails.
func (p *Provider) Screen(ctx context.Context, count int) ([]Quote, error) {
	if count <= 0 {
		count = 25
	}

	if err := p.ensureCrumb(ctx); err != nil {
		return nil, fmt.Errorf("yahoo auth: %w", err)
	}

	p.mu.Lock()
	crumb := p.crumb
	p.mu.Unlock()

	vals := url.Values{}
	vals.Set("scrIds", "all_cryptocurrencies_us")
	vals.Set("count", strconv.Itoa(count))
	vals.Set("crumb", crumb)

	req, err := http.NewRequestWithContext(ctx, "GET", p.screenerEndpoint+"?"+vals.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screener returned HTTP %d", res.StatusCode)
	}

	var resp screenerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse screener response: %w", err)
	}
	if resp.Finance.Error != nil {
		return nil, fmt.Errorf("screener error: %s: %s", resp.Finance.Error.Code, resp.Finance.Error.Description)
	}
	if len(resp.Finance.Result) == 0 {
		return nil, fmt.Errorf("screener returned no results")
	}

	quotes := make([]Quote, 0, len(resp.Finance.Result[0].Quotes))
	for _, q := range resp.Finance.Result[0].Quotes {
		if q.Symbol == "" {
			continue
		}
		quotes = append(quotes, Quote{Symbol: q.Symbol, Name: q.ShortName})
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("screener returned no symbols")
	}

	slog.Info("discovered symbols via screener", "count", len(quotes))
	return quotes, nil
}

// toFloat64 converts a JSON number (which may be float64 or json.Number) to
// float64. Returns false for nil values (Yahoo uses null for missing points).
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// at returns vals[i], or nil when the quote array is shorter than the
// timestamp axis (Yahoo occasionally truncates them).
func at(vals []any, i int) any {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
