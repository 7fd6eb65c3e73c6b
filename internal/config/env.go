package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv overrides fields from W3SALE_* environment variables. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	return ParseEnv(c)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
