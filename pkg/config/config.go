// Package config provides configuration loading and management for hsibatch.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"hsibatch/internal/models"
	"hsibatch/pkg/labels"
	"hsibatch/pkg/logging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Batching parameters
	Batching struct {
		// BatchSize is the number of samples in every full batch
		BatchSize int `yaml:"batchSize"`

		// PatchSize is the side of spatial patches and fixes cube padding
		PatchSize int `yaml:"patchSize"`

		// Mode is pointwise (2D) or spatial (3D)
		Mode string `yaml:"mode"`

		// Seed makes batch sampling reproducible
		Seed uint64 `yaml:"seed"`

		// NumCores bounds parallel image reading; 0 uses every CPU
		NumCores int `yaml:"numCores"`
	} `yaml:"batching"`

	// Labels maps raw ground-truth labels to class ids, e.g. "101": 1
	Labels map[string]int `yaml:"labels"`

	// Input data
	Data struct {
		// CubeDir holds <id>.hdr/<id>.img cube files
		CubeDir string `yaml:"cubeDir"`

		// LabelDir holds <id>.hdr/<id>.img label maps
		LabelDir string `yaml:"labelDir"`

		// IDs lists the images to load, in order
		IDs []string `yaml:"ids"`
	} `yaml:"data"`

	// Output parameters
	Output struct {
		// PreviewDir receives band and label map previews when set
		PreviewDir string `yaml:"previewDir"`

		// PlotFile receives a batch composition chart when set
		PlotFile string `yaml:"plotFile"`
	} `yaml:"output"`

	Logging logging.LogConfig `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Batching.BatchSize = 64
	cfg.Batching.PatchSize = 7
	cfg.Batching.Mode = models.Pointwise.String()
	cfg.Batching.Seed = 0

	cfg.Labels = map[string]int{}

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 30

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Batching.BatchSize < 1 {
		return fmt.Errorf("batching.batchSize must be at least 1, got %d", c.Batching.BatchSize)
	}
	if c.Batching.PatchSize < 1 {
		return fmt.Errorf("batching.patchSize must be at least 1, got %d", c.Batching.PatchSize)
	}
	if c.Batching.NumCores < 0 {
		return fmt.Errorf("batching.numCores must not be negative, got %d", c.Batching.NumCores)
	}
	if _, err := models.ParseMode(c.Batching.Mode); err != nil {
		return fmt.Errorf("batching.mode: %w", err)
	}
	if _, err := labels.ParseClassMap(c.Labels); err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	return nil
}

// Mode returns the parsed batching mode
func (c *Config) Mode() (models.Mode, error) {
	return models.ParseMode(c.Batching.Mode)
}

// ClassMap returns the parsed label mapping
func (c *Config) ClassMap() (labels.ClassMap, error) {
	return labels.ParseClassMap(c.Labels)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
