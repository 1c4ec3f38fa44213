package core

import (
	"fmt"
	"strconv"

	"github.com/roach88/walletcore/internal/bridge"
	"github.com/roach88/walletcore/internal/state"
)

// RateCache answers conversions from the exchange rates in the store. It
// emits "update" whenever the exchange table changes.
type RateCache struct {
	d     *deps
	proxy *bridge.Proxy[string]
}

func newRateCache(d *deps, name string) *RateCache {
	return &RateCache{d: d, proxy: bridge.New(name, name)}
}

// Subscribe registers fn for "update" or "close".
func (c *RateCache) Subscribe(event string, fn func(any)) (func(), error) {
	return c.proxy.Subscribe(event, fn)
}

// Close implements bridge.Closer.
func (c *RateCache) Close() { c.proxy.Close() }

// Pairs returns every cached quote in key order.
func (c *RateCache) Pairs() ([]state.RatePair, error) {
	if c.proxy.Closed() {
		return nil, bridge.ErrDisposed
	}
	table := c.d.snapshot().Exchange
	out := make([]state.RatePair, 0, table.Len())
	for _, p := range table.All {
		out = append(out, *p)
	}
	return out, nil
}

// Convert converts amount from one currency code to another. It tries the
// direct pair, the inverse pair and then one hop through a shared currency.
func (c *RateCache) Convert(from, to string, amount float64) (float64, error) {
	if c.proxy.Closed() {
		return 0, bridge.ErrDisposed
	}
	if from == to {
		return amount, nil
	}
	g := buildRateGraph(c.d.snapshot().Exchange)

	if r, ok := g.rate(from, to); ok {
		return amount * r, nil
	}
	for _, mid := range g.order {
		if mid == from || mid == to {
			continue
		}
		a, ok := g.rate(from, mid)
		if !ok {
			continue
		}
		b, ok := g.rate(mid, to)
		if !ok {
			continue
		}
		return amount * a * b, nil
	}
	return 0, &StateError{Op: "convert", Err: fmt.Errorf("%w: %s to %s", ErrNoRate, from, to)}
}

// rateGraph holds the newest quote per directed pair.
type rateGraph struct {
	quotes map[[2]string]state.RatePair
	rates  map[[2]string]float64
	order  []string // currencies in first-seen key order
}

func buildRateGraph(table *state.Table[*state.RatePair]) *rateGraph {
	g := &rateGraph{
		quotes: map[[2]string]state.RatePair{},
		rates:  map[[2]string]float64{},
	}
	seen := map[string]bool{}
	for _, p := range table.All {
		r, err := strconv.ParseFloat(p.Rate, 64)
		if err != nil || r <= 0 {
			continue
		}
		k := [2]string{p.Base, p.Quote}
		// Newest quote wins; ties go to the source that sorts first.
		if old, ok := g.quotes[k]; ok && (old.Timestamp > p.Timestamp ||
			old.Timestamp == p.Timestamp && old.Source <= p.Source) {
			continue
		}
		g.quotes[k] = *p
		g.rates[k] = r
		for _, code := range k {
			if !seen[code] {
				seen[code] = true
				g.order = append(g.order, code)
			}
		}
	}
	return g
}

func (g *rateGraph) rate(from, to string) (float64, bool) {
	if r, ok := g.rates[[2]string{from, to}]; ok {
		return r, true
	}
	if r, ok := g.rates[[2]string{to, from}]; ok {
		return 1 / r, true
	}
	return 0, false
}
