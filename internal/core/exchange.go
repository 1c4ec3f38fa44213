package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// loadRatePlugins publishes the resolved rate plugin set once.
func loadRatePlugins(_ context.Context, in *engine.Input[RootProps], p RootProps) error {
	plugins := append([]plugin.RatePlugin{}, p.d.plugins.Rate...)
	in.Publish(plugins)
	return engine.StopUpdates
}

// ratePoller fetches exchange rates from every rate plugin on a fixed delay,
// once the plugin set has been published.
type ratePoller struct {
	in *engine.Input[RootProps]

	d     *deps
	task  *engine.Task
	pairs []plugin.Pair
}

func newRatePoller(in *engine.Input[RootProps]) engine.Node[RootProps] {
	return &ratePoller{in: in}
}

func (n *ratePoller) Update(ctx context.Context, p RootProps) error {
	if n.task != nil {
		return nil
	}
	plugins, ok := engine.LookupAs[[]plugin.RatePlugin](p.Output, "exchange", "plugins")
	if !ok {
		return nil
	}
	n.d = p.d
	n.pairs = p.d.cfg.RatePairs
	if len(n.pairs) == 0 {
		n.pairs = plugin.DefaultPairs()
	}

	fetch := func(ctx context.Context) error {
		return n.fetch(ctx, plugins)
	}
	n.task = n.in.NewTask("rates", p.d.rateEvery, fetch, n.report)
	n.report(n.fetch(ctx, plugins))
	n.task.Start()
	return engine.StopUpdates
}

// fetch asks every plugin concurrently. A failing plugin contributes
// nothing and one BackgroundFault to the joined error; the batch is
// dispatched once all return.
func (n *ratePoller) fetch(ctx context.Context, plugins []plugin.RatePlugin) error {
	results := make([][]plugin.Rate, len(plugins))
	errs := make([]error, len(plugins))
	var wg sync.WaitGroup
	for i, rp := range plugins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = &BackgroundFault{Source: "rates", Plugin: rp.Name(), Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			rates, err := rp.FetchRates(ctx, n.pairs)
			if err != nil {
				errs[i] = &BackgroundFault{Source: "rates", Plugin: rp.Name(), Err: err}
				return
			}
			results[i] = rates
		}()
	}
	wg.Wait()

	faults := errors.Join(errs...)
	if ctx.Err() != nil || !n.in.Alive() {
		return faults
	}

	n.d.exchangeUpdate()

	now := n.d.now().Unix()
	var pairs []state.RatePair
	for i, rates := range results {
		for _, r := range rates {
			pairs = append(pairs, state.RatePair{
				Base:      r.From,
				Quote:     r.To,
				Rate:      strconv.FormatFloat(r.Rate, 'g', -1, 64),
				Source:    plugins[i].Name(),
				Timestamp: now,
			})
		}
	}
	n.d.dispatch(state.Action{
		Type:    state.ActionExchangePairsFetched,
		Payload: state.ExchangePairsPayload{Pairs: pairs},
	})
	n.in.Logger().Debug("rates fetched", "pairs", len(pairs), "plugins", len(plugins))
	return faults
}

func (n *ratePoller) report(err error) {
	if err == nil {
		return
	}
	reportEach(err, n.in.Report)
}

func (n *ratePoller) Destroy() {
	if n.task != nil {
		n.task.Stop()
	}
}
