// Package config provides configuration loading and management for wbcore.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"wbcore/pkg/correlation"
	"wbcore/pkg/dense"
	"wbcore/pkg/extrema"
)

// Config represents the application configuration loaded from YAML. Keys
// missing from the file take their values from DefaultConfig.
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many workers parallel operations may use
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Smoothing parameters
	Smoothing struct {
		// FixZeros treats zero input voxels as missing data
		FixZeros bool `yaml:"fixZeros"`
	} `yaml:"smoothing"`

	// Extrema-to-ROI parameters
	Extrema struct {
		// Overlap is ALLOW, CLOSEST or EXCLUDE
		Overlap string `yaml:"overlap"`
	} `yaml:"extrema"`

	// Correlation engine parameters
	Correlation struct {
		// Mode is CORRELATION or COVARIANCE
		Mode string `yaml:"mode"`

		FisherZ  bool `yaml:"fisherZ"`
		NoDemean bool `yaml:"noDemean"`
	} `yaml:"correlation"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Structures lists the label names that denote dense volume structures
	Structures []string `yaml:"structures"`
}

// DefaultConfig returns a configuration with default values. Boolean
// options default to false so that an explicit false in a file survives
// merging.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Extrema.Overlap = extrema.Allow.String()
	cfg.Correlation.Mode = correlation.Correlation.String()
	cfg.Structures = dense.DefaultStructureNames()

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, errors.Wrap(err, "error applying config defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", configPath)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks that every enumerated option parses
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return errors.Errorf("processing.numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if _, err := c.OverlapLogic(); err != nil {
		return err
	}
	if _, err := c.CorrelationSettings(); err != nil {
		return err
	}
	if _, err := c.StructureTable(); err != nil {
		return err
	}
	return nil
}

// Workers returns the worker count for parallel operations
func (c *Config) Workers() int {
	if c.Processing.NumCores < 1 {
		return runtime.NumCPU()
	}
	return c.Processing.NumCores
}

// OverlapLogic parses extrema.overlap
func (c *Config) OverlapLogic() (extrema.Overlap, error) {
	return extrema.ParseOverlap(c.Extrema.Overlap)
}

// CorrelationSettings builds engine settings from the correlation section
func (c *Config) CorrelationSettings() (correlation.Settings, error) {
	mode, err := correlation.ParseMode(c.Correlation.Mode)
	if err != nil {
		return correlation.Settings{}, err
	}
	return correlation.NewSettings(mode, c.Correlation.FisherZ, c.Correlation.NoDemean), nil
}

// StructureTable builds the dense structure table from the structures list
func (c *Config) StructureTable() (*dense.StructureTable, error) {
	return dense.NewStructureTable(c.Structures)
}
