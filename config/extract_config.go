package config

// ExtractConfig contains defaults for the extract command
type ExtractConfig struct {
	Models  []string `yaml:"models"`
	Years   []string `yaml:"years"`
	Failed  bool     `yaml:"failed"`
	Workers int      `yaml:"workers"`
}

// GetDefaultExtractConfig returns default extract configuration
func GetDefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		Workers: 4,
	}
}
