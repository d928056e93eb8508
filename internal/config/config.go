// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SpeakerConfig identifies one speaker to bridge.
type SpeakerConfig struct {
	IP   string `yaml:"ip"`
	GUID string `yaml:"guid"`
	Name string `yaml:"name,omitempty"`
}

// SourceConfig is one extra entry for the source label table, mapping a
// human-facing label to a vendor (source, sourceAccount) pair. Multi-account
// providers match on account_id instead of source_account.
type SourceConfig struct {
	Label         string `yaml:"label"`
	Source        string `yaml:"source"`
	SourceAccount string `yaml:"source_account,omitempty"`
	AccountID     string `yaml:"account_id,omitempty"`
}

// CloudConfig holds the Bose cloud account settings. The tokens come from
// the environment (see cmd/main.go), not from the YAML file.
type CloudConfig struct {
	RefreshMargin time.Duration `yaml:"refresh_margin,omitempty"`
}

// APIConfig configures the local HTTP surface.
type APIConfig struct {
	Port int `yaml:"port,omitempty"`
}

// Config is the root of the daemon configuration.
type Config struct {
	API      APIConfig       `yaml:"api,omitempty"`
	Cloud    CloudConfig     `yaml:"cloud,omitempty"`
	Speakers []SpeakerConfig `yaml:"speakers"`
	Sources  []SourceConfig  `yaml:"sources,omitempty"`
}

// Defaults applied after parsing.
const (
	DefaultAPIPort       = 8080
	DefaultRefreshMargin = 5 * time.Minute
)

// Load reads and validates the configuration file at path.
func Load(path string, logger *zap.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = DefaultAPIPort
	}
	if cfg.Cloud.RefreshMargin == 0 {
		cfg.Cloud.RefreshMargin = DefaultRefreshMargin
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration",
		zap.String("path", path),
		zap.Int("speakers", len(cfg.Speakers)),
		zap.Int("extra_sources", len(cfg.Sources)))
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Speakers) == 0 {
		return fmt.Errorf("config lists no speakers")
	}

	seen := make(map[string]struct{}, len(c.Speakers))
	for i, s := range c.Speakers {
		if s.IP == "" && s.GUID == "" {
			return fmt.Errorf("speaker %d has neither ip nor guid", i)
		}
		if s.GUID != "" {
			if _, dup := seen[s.GUID]; dup {
				return fmt.Errorf("duplicate speaker guid %s", s.GUID)
			}
			seen[s.GUID] = struct{}{}
		}
	}

	for i, s := range c.Sources {
		if s.Label == "" || s.Source == "" {
			return fmt.Errorf("source entry %d needs both label and source", i)
		}
	}
	return nil
}
