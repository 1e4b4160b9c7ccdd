// Package provider defines the market-data source contract shared by the
// ingestion driver and its adapters.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Bar is one daily OHLCV record. Date is normalized to midnight UTC.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Query selects the time span to fetch. Period is a provider-relative range
// such as "5d" or "2y"; when set it takes precedence over the explicit
// [From, To] window.
type Query struct {
	From   time.Time
	To     time.Time
	Period string
}

// Provider fetches daily bars for a symbol. Implementations return bars in
// ascending date order, drop rows missing any of open/high/low/close, coerce
// a missing volume to zero, and report "no data for this symbol" as an empty
// result rather than an error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, q Query) ([]Bar, error)
}

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	// Read locks are not recursive; release before Names takes one.
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for source %q (registered: %s)", name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names lists the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
