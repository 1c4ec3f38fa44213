package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/walletcore/internal/keys"
)

type stubCurrency struct{ name string }

func (s stubCurrency) Name() string       { return s.name }
func (s stubCurrency) WalletType() string { return "wallet:" + s.name }
func (s stubCurrency) CreatePrivateKey(context.Context, string) (map[string]string, error) {
	return map[string]string{"key": s.name}, nil
}
func (s stubCurrency) MakeEngine(context.Context, keys.KeyInfo, EngineCallbacks) (CurrencyEngine, error) {
	return nil, nil
}

type stubRate struct{ name string }

func (s stubRate) Name() string { return s.name }
func (s stubRate) FetchRates(context.Context, []Pair) ([]Rate, error) {
	return nil, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubCurrency{"bitcoin"}, stubCurrency{"ethereum"}, stubRate{"coinbase"}))

	set, err := r.Resolve([]string{"ethereum", "coinbase", "bitcoin"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ethereum", "bitcoin"}, set.CurrencyNames(), "configuration order is kept")
	require.Len(t, set.Rate, 1)
	assert.Empty(t, set.Swap)
	assert.Equal(t, []string{"bitcoin", "coinbase", "ethereum"}, r.Names())
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(42))

	_, err := r.Resolve([]string{"missing"})
	assert.ErrorContains(t, err, `unknown plugin "missing"`)
}

func TestFindCurrency(t *testing.T) {
	plugins := []CurrencyPlugin{stubCurrency{"bitcoin"}, stubCurrency{"ethereum"}}

	p, ok := FindCurrency(plugins, "wallet:ethereum")
	require.True(t, ok)
	assert.Equal(t, "ethereum", p.Name())

	_, ok = FindCurrency(plugins, "wallet:dogecoin")
	assert.False(t, ok)
}

func TestDefaultPairs(t *testing.T) {
	pairs := DefaultPairs()
	assert.Len(t, pairs, 4)
	assert.Equal(t, Pair{From: "BTC", To: "iso:EUR"}, pairs[0])
}
