package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config/provider"
)

// Loader loads and watches configuration from a Provider.
type Loader struct {
	provider provider.Provider
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange sets a callback invoked with the freshly parsed config
// whenever the underlying source changes.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader backed by p.
func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{provider: p}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads, parses and validates the configuration:
// provider fetch, YAML/JSON parse, env expansion, mapstructure decode,
// defaults, validation.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rawMap, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded, _ := expandEnvValue(rawMap).(map[string]any)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Watch blocks until ctx is cancelled, reloading on every change signal and
// invoking the onChange callback with the new config. Reload failures are
// logged and the previous config stays in effect.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	if changes == nil {
		slog.Info("Config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Started watching for config changes", "type", l.provider.Type())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				continue
			}
			slog.Info("Configuration reloaded")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases provider resources.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// parseBytes parses raw bytes as YAML, falling back to JSON.
func parseBytes(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
	}
	return result, nil
}

// decodeConfig decodes a map into Config using the yaml tags.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

// Load is the top-level entry point: it resolves the config source (path or
// provider URI), loads it, and returns the config together with the loader
// for optional watching. An empty source, or a plain file path that does not
// exist, yields the built-in defaults and a nil loader.
func Load(ctx context.Context, source string) (*Config, *Loader, error) {
	if source == "" {
		return Default(), nil, nil
	}

	opts, err := provider.ParseURI(source)
	if err != nil {
		return nil, nil, err
	}

	if opts.Type == provider.TypeFile {
		if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
			slog.Info("Config file not found, using defaults", "path", opts.Path)
			return Default(), nil, nil
		}
	}

	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return cfg, loader, nil
}
