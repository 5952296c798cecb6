package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models sitegate.yml.
type Config struct {
	Project struct {
		ID string `yaml:"id"`
	} `yaml:"project"`
	Budget struct {
		Total        float64 `yaml:"total"`
		DurationDays int     `yaml:"duration_days"`
	} `yaml:"budget"`
	Simulation Simulation `yaml:"simulation"`
}

// Simulation holds the improvement-scenario reference values. The response
// figures are in working days.
type Simulation struct {
	TargetResponseDays      float64 `yaml:"target_response_days"`
	ReferenceResponseDays   float64 `yaml:"reference_response_days"`
	CombinedSavingsFraction float64 `yaml:"combined_savings_fraction"`
	CombinedCostFraction    float64 `yaml:"combined_cost_fraction"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sg config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace, projectID string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(projectID), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Budget.Total <= 0 {
		return fmt.Errorf("config.budget.total must be > 0")
	}
	if c.Budget.DurationDays <= 0 {
		return fmt.Errorf("config.budget.duration_days must be > 0")
	}
	s := c.Simulation
	if s.TargetResponseDays < 0 {
		return fmt.Errorf("config.simulation.target_response_days must be >= 0")
	}
	if s.ReferenceResponseDays <= 0 {
		return fmt.Errorf("config.simulation.reference_response_days must be > 0")
	}
	if s.TargetResponseDays > s.ReferenceResponseDays {
		return fmt.Errorf("config.simulation.target_response_days must not exceed reference_response_days")
	}
	if s.CombinedSavingsFraction < 0 || s.CombinedSavingsFraction > 1 {
		return fmt.Errorf("config.simulation.combined_savings_fraction must be in [0,1]")
	}
	if s.CombinedCostFraction < 0 || s.CombinedCostFraction > 1 {
		return fmt.Errorf("config.simulation.combined_cost_fraction must be in [0,1]")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sitegate.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	cfg.Project.ID = projectID
	return &cfg
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s

budget:
  total: 445245.20
  duration_days: 16

simulation:
  target_response_days: 0.25
  reference_response_days: 4.1
  combined_savings_fraction: 0.6
  combined_cost_fraction: 0.4
`
