package config

import (
	"fmt"
	"os"
)

// ProviderConfig holds the DNS provider type and its provider-specific
// connection settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

func (p *ProviderConfig) validate(i int) error {
	if p.Provider == "" {
		return fmt.Errorf("providers[%d]: missing required field 'provider'", i)
	}
	if p.Settings == nil {
		p.Settings = map[string]string{}
	}
	// Expand ${ENV_VAR} references in setting values.
	for k, v := range p.Settings {
		p.Settings[k] = os.ExpandEnv(v)
	}
	return nil
}
