// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"github.com/xcross/xcross/internal/target"
)

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific file when set.
	ConfigFilePath string
	// WorkspaceRoot is searched for xcross.toml or Cross.toml.
	WorkspaceRoot string
	// Target selects which CROSS_TARGET_<TRIPLE>_* variables apply. Empty
	// means the configured default target.
	Target target.Triple
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type (
	fileProvider struct{}

	staticProvider struct {
		cfg *Config
	}
)

// NewProvider creates a provider backed by files and the environment.
func NewProvider() Provider {
	return &fileProvider{}
}

// NewStaticProvider returns a provider that always yields a copy of cfg.
func NewStaticProvider(cfg *Config) Provider {
	return &staticProvider{cfg: cfg}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}

// Load returns the fixed configuration.
func (p *staticProvider) Load(ctx context.Context, _ LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := *p.cfg
	if cfg.Targets == nil {
		cfg.Targets = map[string]TargetConfig{}
	}
	return &cfg, nil
}
