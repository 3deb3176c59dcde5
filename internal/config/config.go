package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"scriptstudio/internal/domain"
)

// Config models studio.yml.
type Config struct {
	Studio struct {
		Name string `yaml:"name"`
	} `yaml:"studio"`
	Poll struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"poll"`
	Handoff struct {
		Panels []int `yaml:"panels"`
	} `yaml:"handoff"`
	Tiers    map[string]Tier `yaml:"tiers"`
	Research struct {
		CallCost float64 `yaml:"call_cost"`
	} `yaml:"research"`
}

// Tier describes one quality level: its per-artifact API cost and the
// downstream generation pipeline it selects.
type Tier struct {
	Cost     float64 `yaml:"cost"`
	Pipeline string  `yaml:"pipeline"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run studio init or pass --workspace", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if studio.yml does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Studio.Name == "" {
		return fmt.Errorf("config.studio.name is required")
	}
	if c.Poll.IntervalSeconds < 0 {
		return fmt.Errorf("config.poll.interval_seconds must not be negative")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("config.tiers is required")
	}
	for name, tier := range c.Tiers {
		if !domain.QualityTier(name).Valid() {
			return fmt.Errorf("unknown quality tier %s", name)
		}
		if tier.Cost < 0 {
			return fmt.Errorf("tier %s has negative cost", name)
		}
		if tier.Pipeline == "" {
			return fmt.Errorf("tier %s has no pipeline", name)
		}
	}
	for _, q := range []domain.QualityTier{domain.TierBronze, domain.TierSilver, domain.TierGold} {
		if _, ok := c.Tiers[string(q)]; !ok {
			return fmt.Errorf("tier %s missing from config.tiers", q)
		}
	}
	seen := map[int]bool{}
	for _, p := range c.Handoff.Panels {
		if p <= 0 {
			return fmt.Errorf("handoff panel numbers must be positive, got %d", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate handoff panel %d", p)
		}
		seen[p] = true
	}
	if c.Research.CallCost < 0 {
		return fmt.Errorf("config.research.call_cost must not be negative")
	}
	return nil
}

// TierCost returns the configured API cost for a quality tier.
func (c *Config) TierCost(q domain.QualityTier) float64 {
	return c.Tiers[string(q)].Cost
}

// PollInterval returns the poll interval in seconds, defaulted when unset.
func (c *Config) PollInterval() int {
	if c.Poll.IntervalSeconds == 0 {
		return 30
	}
	return c.Poll.IntervalSeconds
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "studio.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `studio:
  name: scriptstudio

poll:
  interval_seconds: 30

handoff:
  panels: [2, 3]

tiers:
  bronze:
    cost: 0.35
    pipeline: "hooks-3"
  silver:
    cost: 0.63
    pipeline: "hooks-5+review"
  gold:
    cost: 0.93
    pipeline: "hooks-7+review+research"

research:
  call_cost: 0.01
`
