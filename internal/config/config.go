// Package config loads the dnsdeck YAML configuration.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/transport"
)

const (
	// PathEnv overrides the configuration file location.
	PathEnv     = "DNSDECK_CONFIG"
	DefaultPath = "configs/dnsdeck.yaml"
)

// Config is the whole configuration file.
type Config struct {
	Transport transport.Config `yaml:"transport"`
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadConfig reads the configuration from the path specified by the
// DNSDECK_CONFIG environment variable, defaulting to "configs/dnsdeck.yaml".
func LoadConfig() (*Config, error) {
	path := os.Getenv(PathEnv)
	if path == "" {
		path = DefaultPath
	}
	return LoadConfigFromPath(path)
}

// LoadConfigFromPath reads the configuration from the given file path.
// Transport fields left unset take their defaults.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("config: no providers configured")
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if err := p.validate(i); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if seen[p.Provider] {
			return nil, fmt.Errorf("config: provider %q configured more than once", p.Provider)
		}
		seen[p.Provider] = true
	}
	cfg.Transport = cfg.Transport.WithDefaults()

	return &cfg, nil
}
