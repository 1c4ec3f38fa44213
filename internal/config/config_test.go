package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/walletcore/internal/plugin"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("apiKey: k1\n"))
	require.NoError(t, err)

	assert.Equal(t, "k1", cfg.APIKey)
	assert.Equal(t, "", cfg.AppID)
	assert.Equal(t, "https://auth.airbitz.co/api", cfg.AuthServer)
	assert.False(t, cfg.HideKeys)
	assert.Empty(t, cfg.Plugins)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.RateInterval)
	assert.Equal(t, plugin.DefaultPairs(), cfg.RatePairs)
}

func TestParse_Overrides(t *testing.T) {
	data := []byte(`
apiKey: k2
appId: edge
authServer: https://login.example/api
hideKeys: true
plugins: [bitcoin, coinbase, changelly]
swapPlugins:
  changelly:
    apiKey: swap-key
syncInterval: 1m30s
rateInterval: 10s
ratePairs:
  - {from: BTC, to: "iso:JPY"}
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "edge", cfg.AppID)
	assert.Equal(t, "https://login.example/api", cfg.AuthServer)
	assert.True(t, cfg.HideKeys)
	assert.Equal(t, []string{"bitcoin", "coinbase", "changelly"}, cfg.Plugins)
	assert.Equal(t, "swap-key", cfg.SwapPlugins["changelly"]["apiKey"])
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.Equal(t, 10*time.Second, cfg.RateInterval)
	assert.Equal(t, []plugin.Pair{{From: "BTC", To: "iso:JPY"}}, cfg.RatePairs)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing apiKey", "appId: x\n", "apiKey"},
		{"empty apiKey", "apiKey: ''\n", "apiKey"},
		{"unknown field", "apiKey: k\nbogus: 1\n", ""},
		{"wrong type", "apiKey: k\nhideKeys: maybe\n", ""},
		{"bad interval", "apiKey: k\nsyncInterval: soon\n", ""},
		{"duplicate plugin", "apiKey: k\nplugins: [a, a]\n", "plugins"},
		{"swap not enabled", "apiKey: k\nswapPlugins: {shapeshift: {}}\n", "swapPlugins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, IsConfigError(err))

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			if tt.field != "" {
				assert.Equal(t, tt.field, ce.Field)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiKey: from-file\nplugins: [bitcoin]\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, []string{"bitcoin"}, cfg.Plugins)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, IsConfigError(err))
}

func TestNew(t *testing.T) {
	cfg, err := New("k")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	_, err = New("")
	assert.True(t, IsConfigError(err))
}

func TestValidate(t *testing.T) {
	cfg, err := New("k")
	require.NoError(t, err)

	cfg.RateInterval = 0
	var ce *ConfigError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Equal(t, "rateInterval", ce.Field)
}
