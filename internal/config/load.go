package config

import (
	"fmt"

	"github.com/yndnr/pebbl-go/internal/infra/confloader"
)

// Load starts from Default, applies the YAML file at path (if any),
// PEBBL_ environment variables and overrides, then verifies the result.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
