package modhost

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// SiteConfig configures one site served by the host.
type SiteConfig struct {
	// Declarations is the directory scanned for module.yaml files.
	Declarations string `toml:"declarations"`
}

// Config is the host program's TOML configuration.
type Config struct {
	// Listen is the HTTP front end's address.
	Listen string `toml:"listen"`
	// Bindings is the path of the persisted domain binding table.
	Bindings string `toml:"bindings"`
	// Sites maps site identifiers to their configuration.
	Sites map[string]SiteConfig `toml:"sites"`
}

// LoadConfig reads a TOML host configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Bindings == "" {
		c.Bindings = "domains.yaml"
	}
}
