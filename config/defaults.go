package config

// DefaultValues contains all default configuration values in one place
var DefaultValues = struct {
	LogLevel   string
	Paths      Paths
	FeatureSet string
	Features   map[string][]string
	Metrics    []string
}{
	LogLevel: "development",
	Paths: Paths{
		BasePath:  "./HDD_dataset",
		OutputDir: "./output",
		CacheDir:  "./output",
	},
	FeatureSet: "total_features",
	Features: map[string][]string{
		"total_features": {
			"date", "serial_number", "model", "failure",
			"smart_1_normalized", "smart_5_normalized", "smart_5_raw",
			"smart_7_normalized", "smart_9_raw", "smart_12_raw",
			"smart_183_raw", "smart_184_normalized", "smart_184_raw",
			"smart_187_normalized", "smart_187_raw", "smart_189_normalized",
			"smart_193_normalized", "smart_193_raw", "smart_197_normalized",
			"smart_197_raw", "smart_198_normalized", "smart_198_raw",
			"smart_199_raw",
		},
		"iSTEP": {
			"date", "serial_number", "model", "failure",
			"smart_5_raw", "smart_3_raw", "smart_10_raw",
			"smart_12_raw", "smart_4_raw", "smart_194_raw",
			"smart_1_raw", "smart_9_raw", "smart_192_raw",
			"smart_193_raw", "smart_197_raw", "smart_198_raw",
			"smart_199_raw",
		},
	},
	Metrics: []string{"RMSE", "MAE", "FDR", "FAR", "F1", "recall", "precision"},
}
