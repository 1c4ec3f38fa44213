package plugin

import (
	"fmt"
	"slices"
	"sync"
)

// Set is a resolved group of plugins, in configuration order.
type Set struct {
	Currency []CurrencyPlugin
	Swap     []SwapPlugin
	Rate     []RatePlugin
}

// CurrencyNames returns the names of the currency plugins.
func (s Set) CurrencyNames() []string {
	names := make([]string, len(s.Currency))
	for i, p := range s.Currency {
		names[i] = p.Name()
	}
	return names
}

// Registry maps plugin names to implementations. Host code registers every
// plugin it links in; configuration then enables a subset by name.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	currency map[string]CurrencyPlugin
	swap     map[string]SwapPlugin
	rate     map[string]RatePlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		currency: map[string]CurrencyPlugin{},
		swap:     map[string]SwapPlugin{},
		rate:     map[string]RatePlugin{},
	}
}

// Register adds plugins. Each value must implement at least one of
// CurrencyPlugin, SwapPlugin or RatePlugin.
func (r *Registry) Register(plugins ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range plugins {
		matched := false
		if c, ok := p.(CurrencyPlugin); ok {
			r.currency[c.Name()] = c
			matched = true
		}
		if s, ok := p.(SwapPlugin); ok {
			r.swap[s.Name()] = s
			matched = true
		}
		if rp, ok := p.(RatePlugin); ok {
			r.rate[rp.Name()] = rp
			matched = true
		}
		if !matched {
			return fmt.Errorf("plugin %T implements no plugin interface", p)
		}
	}
	return nil
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	for n := range r.currency {
		seen[n] = true
	}
	for n := range r.swap {
		seen[n] = true
	}
	for n := range r.rate {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Resolve builds the Set for names. A name may resolve to more than one
// kind. An unknown name is an error.
func (r *Registry) Resolve(names []string) (Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var set Set
	for _, name := range names {
		found := false
		if c, ok := r.currency[name]; ok {
			set.Currency = append(set.Currency, c)
			found = true
		}
		if s, ok := r.swap[name]; ok {
			set.Swap = append(set.Swap, s)
			found = true
		}
		if rp, ok := r.rate[name]; ok {
			set.Rate = append(set.Rate, rp)
			found = true
		}
		if !found {
			return Set{}, fmt.Errorf("unknown plugin %q", name)
		}
	}
	return set, nil
}
