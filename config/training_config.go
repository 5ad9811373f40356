package config

import (
	"fmt"
	"slices"

	"hddpredict/dataset"
)

// Classifier names accepted by training.classifier.
const (
	ClassifierRandomForest = "RandomForest"
	ClassifierTCN          = "TCN"
	ClassifierLSTM         = "LSTM"
)

// RankingNone disables feature ranking and uses the configured feature set.
const RankingNone = "None"

// TrainingConfig contains the training pipeline configuration
type TrainingConfig struct {
	Model                    string   `yaml:"model"`
	Years                    []string `yaml:"years"`
	Windowing                int      `yaml:"windowing"`
	MinDaysHDD               int      `yaml:"min_days_hdd"`
	DaysConsideredAsFailure  int      `yaml:"days_considered_as_failure"`
	TestTrainPerc            float64  `yaml:"test_train_perc"`
	OversampleUndersample    int      `yaml:"oversample_undersample"`
	BalancingNormalFailed    int      `yaml:"balancing_normal_failed"`
	HistorySignal            int      `yaml:"history_signal"`
	Classifier               string   `yaml:"classifier"`
	FeaturesExtractionMethod bool     `yaml:"features_extraction_method"`
	Ranking                  string   `yaml:"ranking"`
	NumFeatures              int      `yaml:"num_features"`
	Overlap                  int      `yaml:"overlap"`
	Technique                string   `yaml:"technique"`
	Seed                     int64    `yaml:"seed"`
	Metrics                  []string `yaml:"metrics"`

	// Drive filter
	Filter struct {
		TimeWindow int `yaml:"time_window"`
		Tolerance  int `yaml:"tolerance"`
	} `yaml:"filter"`

	RandomForest RandomForestConfig `yaml:"random_forest"`
	LSTM         LSTMConfig         `yaml:"lstm"`
	TCN          TCNConfig          `yaml:"tcn"`
}

// RandomForestConfig mirrors the forest hyper-parameters
type RandomForestConfig struct {
	NEstimators     int   `yaml:"n_estimators"`
	MinSamplesSplit int   `yaml:"min_samples_split"`
	MaxDepth        int   `yaml:"max_depth"`
	RandomState     int64 `yaml:"random_state"`
	Workers         int   `yaml:"workers"`
}

// NetConfig holds the optimisation settings shared by the neural classifiers
type NetConfig struct {
	LR        float64 `yaml:"lr"`
	BatchSize int     `yaml:"batch_size"`
	Epochs    int     `yaml:"epochs"`
	Dropout   float64 `yaml:"dropout"`
	Patience  int     `yaml:"patience"`
	MinDelta  float64 `yaml:"min_delta"`
}

// LSTMConfig configures the FPLSTM network
type LSTMConfig struct {
	NetConfig `yaml:",inline"`

	LSTMHiddenS int `yaml:"lstm_hidden_s"`
	FC1HiddenS  int `yaml:"fc1_hidden_s"`
	NumClasses  int `yaml:"num_classes"`
}

// TCNConfig configures the temporal convolutional network
type TCNConfig struct {
	NetConfig `yaml:",inline"`

	Channels   []int `yaml:"channels"`
	KernelSize int   `yaml:"kernel_size"`
	NumClasses int   `yaml:"num_classes"`
}

// GetDefaultTrainingConfig returns default training configuration
func GetDefaultTrainingConfig() TrainingConfig {
	cfg := TrainingConfig{
		Model:                    "ST3000DM001",
		Years:                    []string{"2013"},
		Windowing:                1,
		MinDaysHDD:               115,
		DaysConsideredAsFailure:  7,
		TestTrainPerc:            0.3,
		OversampleUndersample:    2,
		BalancingNormalFailed:    20,
		HistorySignal:            32,
		Classifier:               ClassifierLSTM,
		FeaturesExtractionMethod: false,
		Ranking:                  "Ok",
		NumFeatures:              18,
		Overlap:                  1,
		Technique:                dataset.TechniqueRandom,
		Seed:                     3,
		Metrics:                  slices.Clone(DefaultValues.Metrics),
		RandomForest: RandomForestConfig{
			NEstimators:     30,
			MinSamplesSplit: 10,
			RandomState:     3,
			Workers:         4,
		},
		LSTM: LSTMConfig{
			NetConfig: NetConfig{
				LR:        0.001,
				BatchSize: 256,
				Epochs:    300,
				Dropout:   0.1,
			},
			LSTMHiddenS: 64,
			FC1HiddenS:  16,
			NumClasses:  2,
		},
		TCN: TCNConfig{
			NetConfig: NetConfig{
				LR:        0.001,
				BatchSize: 256,
				Epochs:    200,
				Dropout:   0.1,
			},
			Channels:   []int{32, 64, 128},
			KernelSize: 3,
			NumClasses: 2,
		},
	}
	cfg.Filter.TimeWindow = 30
	cfg.Filter.Tolerance = 30
	return cfg
}

// Validate checks the training section.
func (t *TrainingConfig) Validate() error {
	switch t.Classifier {
	case ClassifierRandomForest, ClassifierTCN, ClassifierLSTM:
	default:
		return fmt.Errorf("unknown classifier %q", t.Classifier)
	}
	switch t.Technique {
	case dataset.TechniqueRandom, dataset.TechniqueHDD, dataset.TechniqueDate:
	default:
		return fmt.Errorf("unknown partition technique %q", t.Technique)
	}
	if t.Model == "" {
		return fmt.Errorf("training.model must be set")
	}
	if t.TestTrainPerc <= 0 || t.TestTrainPerc >= 1 {
		return fmt.Errorf("test_train_perc must be in (0, 1), got %v", t.TestTrainPerc)
	}
	if t.Windowing != 0 && t.Windowing != 1 {
		return fmt.Errorf("windowing must be 0 or 1, got %d", t.Windowing)
	}
	if t.Windowing == 1 && t.HistorySignal < 1 {
		return fmt.Errorf("history_signal must be positive when windowing, got %d", t.HistorySignal)
	}
	if t.OversampleUndersample < 0 || t.OversampleUndersample > 3 {
		return fmt.Errorf("oversample_undersample must be 0-3, got %d", t.OversampleUndersample)
	}
	if t.Ranking != RankingNone && t.NumFeatures < 1 {
		return fmt.Errorf("num_features must be positive, got %d", t.NumFeatures)
	}
	if t.RandomForest.NEstimators < 1 {
		return fmt.Errorf("random_forest.n_estimators must be positive")
	}
	for name, n := range map[string]NetConfig{"lstm": t.LSTM.NetConfig, "tcn": t.TCN.NetConfig} {
		if n.BatchSize < 1 || n.Epochs < 1 || n.LR <= 0 {
			return fmt.Errorf("%s: batch_size, epochs and lr must be positive", name)
		}
		if n.Dropout < 0 || n.Dropout >= 1 {
			return fmt.Errorf("%s: dropout must be in [0, 1), got %v", name, n.Dropout)
		}
	}
	if len(t.TCN.Channels) == 0 || t.TCN.KernelSize < 1 {
		return fmt.Errorf("tcn: channels and kernel_size must be set")
	}
	for i, c := range t.TCN.Channels {
		if c < 1 {
			return fmt.Errorf("tcn: channels[%d] must be positive, got %d", i, c)
		}
	}
	if t.LSTM.LSTMHiddenS < 1 || t.LSTM.FC1HiddenS < 1 {
		return fmt.Errorf("lstm: lstm_hidden_s and fc1_hidden_s must be positive")
	}
	// Labels are 0 (healthy) and 1 (failing).
	if t.LSTM.NumClasses < 2 || t.TCN.NumClasses < 2 {
		return fmt.Errorf("num_classes must be at least 2, got lstm %d and tcn %d", t.LSTM.NumClasses, t.TCN.NumClasses)
	}
	return nil
}

// CacheName is the cached dataset file name for the configured model.
func (t *TrainingConfig) CacheName() string {
	return fmt.Sprintf("cache_%s_Dataset.sqlite", t.Model)
}
