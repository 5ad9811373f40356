package initialize

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configYamlFile    = "config.yaml"
	datasetDir        = "HDD_dataset"
	outputDir         = "output"
	configYamlContent = `# hddpredict configuration

# Log level: production, development
log_level: development

paths:
  # One directory of Backblaze daily CSVs per year, used by extract
  base_path: ./HDD_dataset
  # Daily CSVs used to build the training set; empty reads
  # <base_path>/<year> for every training year
  data_dir: ""
  # Extracted table to train from instead of data_dir (optional)
  source: ""
  output_dir: ./output
  cache_dir: ./output

extract:
  models: [ST3000DM001]
  years: ["2013"]
  failed: false
  workers: 4

training:
  model: ST3000DM001
  years: ["2013"]
  windowing: 1
  min_days_hdd: 115
  days_considered_as_failure: 7
  test_train_perc: 0.3
  # 0 none, 1 undersample, 2 undersample + oversample, 3 oversample
  oversample_undersample: 2
  balancing_normal_failed: 20
  history_signal: 32
  # RandomForest, TCN or LSTM
  classifier: LSTM
  features_extraction_method: false
  # "None" uses feature_set instead of ranking
  ranking: Ok
  num_features: 18
  overlap: 1
  # random, hdd or date
  technique: random
  seed: 3
  filter:
    time_window: 30
    tolerance: 30
  random_forest:
    n_estimators: 30
    min_samples_split: 10
    random_state: 3
    workers: 4
  lstm:
    lr: 0.001
    batch_size: 256
    epochs: 300
    dropout: 0.1
    # Stop after this many epochs without improvement, 0 disables
    patience: 0
    min_delta: 0
    lstm_hidden_s: 64
    fc1_hidden_s: 16
    num_classes: 2
  tcn:
    lr: 0.001
    batch_size: 256
    epochs: 200
    dropout: 0.1
    patience: 0
    min_delta: 0
    channels: [32, 64, 128]
    kernel_size: 3
    num_classes: 2

# Feature sets live under "features"; total_features and iSTEP are built in.
feature_set: total_features
`
)

// CheckConfig creates the config file and directory layout under root when
// they are missing. It returns the path of the config file.
func CheckConfig(root string) (string, error) {
	configPath := filepath.Join(root, configYamlFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("config.yaml not found, creating from template...")
		if err := os.MkdirAll(root, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", root, err)
		}
		if err := os.WriteFile(configPath, []byte(configYamlContent), 0644); err != nil {
			return "", fmt.Errorf("failed to create config.yaml: %w", err)
		}
		fmt.Printf("Created config file: %s\n", configPath)
	}

	for _, dir := range []string{datasetDir, outputDir} {
		path := filepath.Join(root, dir)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		fmt.Printf("Directory not found, creating: %s\n", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			// Not fatal, the commands create what they write to.
			fmt.Printf("Warning: failed to create directory %s: %v\n", path, err)
		} else {
			fmt.Printf("Created directory: %s\n", path)
		}
	}

	fmt.Println("Configuration initialization completed successfully.")
	return configPath, nil
}
