package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LogLevel   string              `yaml:"log_level"`
	Paths      Paths               `yaml:"paths"`
	Extract    ExtractConfig       `yaml:"extract"`
	Training   TrainingConfig      `yaml:"training"`
	Features   map[string][]string `yaml:"features"`
	FeatureSet string              `yaml:"feature_set"`
}

// Paths groups the locations the tool reads from and writes to.
type Paths struct {
	// BasePath holds one directory of daily CSVs per year.
	BasePath string `yaml:"base_path"`
	// DataDir is the directory of daily CSVs used to build the training set.
	// When empty, <BasePath>/<year> is read for every training year.
	DataDir string `yaml:"data_dir"`
	// Source is an extracted table used instead of DataDir when set.
	Source    string `yaml:"source"`
	OutputDir string `yaml:"output_dir"`
	CacheDir  string `yaml:"cache_dir"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	features := make(map[string][]string, len(DefaultValues.Features))
	for name, list := range DefaultValues.Features {
		features[name] = slices.Clone(list)
	}
	return &Config{
		LogLevel:   DefaultValues.LogLevel,
		Paths:      DefaultValues.Paths,
		Extract:    GetDefaultExtractConfig(),
		Training:   GetDefaultTrainingConfig(),
		Features:   features,
		FeatureSet: DefaultValues.FeatureSet,
	}
}

// Load loads configuration from the specified file on top of the defaults
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

// LoadOrDefault loads filename, falling back to the defaults when it does not exist.
func LoadOrDefault(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(filename)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if err := c.Training.Validate(); err != nil {
		return err
	}
	if c.Training.Ranking == RankingNone {
		if _, ok := c.Features[c.FeatureSet]; !ok {
			return fmt.Errorf("feature_set %q is not defined under features", c.FeatureSet)
		}
	}
	if c.Paths.Source == "" && c.Paths.DataDir == "" && len(c.Training.Years) == 0 {
		return fmt.Errorf("training.years must be set when paths.data_dir and paths.source are empty")
	}
	if c.Extract.Workers < 0 {
		return fmt.Errorf("extract.workers must not be negative, got %d", c.Extract.Workers)
	}
	return nil
}

// SelectedFeatures returns the columns of the configured feature set.
func (c *Config) SelectedFeatures() []string {
	return c.Features[c.FeatureSet]
}
