// Package config loads the startup configuration.
//
// A config file is YAML. It is decoded strictly (unknown keys are errors),
// then unified with an embedded CUE schema that supplies defaults and checks
// types. Missing apiKey is always fatal.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/walletcore/internal/plugin"
)

//go:embed schema.cue
var schemaSource string

// Config is the validated startup configuration.
type Config struct {
	APIKey       string
	AppID        string
	AuthServer   string
	HideKeys     bool
	Plugins      []string
	SwapPlugins  map[string]map[string]string
	SyncInterval time.Duration
	RateInterval time.Duration
	RatePairs    []plugin.Pair
}

// document mirrors the file layout. Durations stay text until validated.
type document struct {
	APIKey       string                       `yaml:"apiKey" json:"apiKey"`
	AppID        string                       `yaml:"appId" json:"appId"`
	AuthServer   string                       `yaml:"authServer" json:"authServer"`
	HideKeys     bool                         `yaml:"hideKeys" json:"hideKeys"`
	Plugins      []string                     `yaml:"plugins" json:"plugins"`
	SwapPlugins  map[string]map[string]string `yaml:"swapPlugins" json:"swapPlugins"`
	SyncInterval string                       `yaml:"syncInterval" json:"syncInterval"`
	RateInterval string                       `yaml:"rateInterval" json:"rateInterval"`
	RatePairs    []plugin.Pair                `yaml:"ratePairs" json:"ratePairs"`
}

// ConfigError reports an unusable configuration. It is always fatal.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaVal = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schemaVal, schemaErr
}

// Load reads and parses a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Message: fmt.Sprintf("read %s: %v", path, err), Err: err}
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Config{}, &ConfigError{Message: fmt.Sprintf("decode yaml: %v", err), Err: err}
	}
	return fromDocument(doc)
}

// New returns the default configuration for apiKey.
func New(apiKey string) (Config, error) {
	return fromDocument(document{APIKey: apiKey})
}

func fromDocument(doc document) (Config, error) {
	if doc.APIKey == "" {
		return Config{}, &ConfigError{Field: "apiKey", Message: "apiKey is required"}
	}

	ctx, sch, err := schema()
	if err != nil {
		return Config{}, &ConfigError{Message: err.Error(), Err: err}
	}

	v := sch.Unify(ctx.Encode(sparse(doc)))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, &ConfigError{Message: err.Error(), Err: err}
	}

	var full document
	if err := v.Decode(&full); err != nil {
		return Config{}, &ConfigError{Message: fmt.Sprintf("decode: %v", err), Err: err}
	}

	cfg := Config{
		APIKey:      full.APIKey,
		AppID:       full.AppID,
		AuthServer:  full.AuthServer,
		HideKeys:    full.HideKeys,
		Plugins:     full.Plugins,
		SwapPlugins: full.SwapPlugins,
		RatePairs:   full.RatePairs,
	}
	if cfg.SyncInterval, err = time.ParseDuration(full.SyncInterval); err != nil {
		return Config{}, &ConfigError{Field: "syncInterval", Message: err.Error(), Err: err}
	}
	if cfg.RateInterval, err = time.ParseDuration(full.RateInterval); err != nil {
		return Config{}, &ConfigError{Field: "rateInterval", Message: err.Error(), Err: err}
	}
	return cfg, cfg.Validate()
}

// sparse keeps only the fields that were set, so CUE defaults apply to the
// rest.
func sparse(doc document) map[string]any {
	m := map[string]any{"apiKey": doc.APIKey}
	if doc.AppID != "" {
		m["appId"] = doc.AppID
	}
	if doc.AuthServer != "" {
		m["authServer"] = doc.AuthServer
	}
	if doc.HideKeys {
		m["hideKeys"] = true
	}
	if doc.Plugins != nil {
		m["plugins"] = doc.Plugins
	}
	if doc.SwapPlugins != nil {
		m["swapPlugins"] = doc.SwapPlugins
	}
	if doc.SyncInterval != "" {
		m["syncInterval"] = doc.SyncInterval
	}
	if doc.RateInterval != "" {
		m["rateInterval"] = doc.RateInterval
	}
	if doc.RatePairs != nil {
		pairs := make([]map[string]any, len(doc.RatePairs))
		for i, p := range doc.RatePairs {
			pairs[i] = map[string]any{"from": p.From, "to": p.To}
		}
		m["ratePairs"] = pairs
	}
	return m
}

// Validate checks a Config built in code.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "apiKey", Message: "apiKey is required"}
	}
	if c.SyncInterval <= 0 {
		return &ConfigError{Field: "syncInterval", Message: "must be positive"}
	}
	if c.RateInterval <= 0 {
		return &ConfigError{Field: "rateInterval", Message: "must be positive"}
	}
	seen := make(map[string]bool, len(c.Plugins))
	for _, name := range c.Plugins {
		if name == "" {
			return &ConfigError{Field: "plugins", Message: "empty plugin name"}
		}
		if seen[name] {
			return &ConfigError{Field: "plugins", Message: fmt.Sprintf("duplicate plugin %q", name)}
		}
		seen[name] = true
	}
	for name := range c.SwapPlugins {
		if !seen[name] {
			return &ConfigError{Field: "swapPlugins", Message: fmt.Sprintf("%q is not in plugins", name)}
		}
	}
	return nil
}
