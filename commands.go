package main

import (
	"fmt"
	"strings"

	"hddpredict/config"
	"hddpredict/extract"
	"hddpredict/initialize"
	"hddpredict/ml_trainer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hddpredict",
		Short: "Hard-drive failure prediction from SMART telemetry",
		Long: `hddpredict extracts per-model drive histories from Backblaze daily
snapshots and trains failure classifiers (RandomForest, TCN, LSTM) on them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				level := opts.logLevel
				if level == "" {
					level = config.DefaultValues.LogLevel
				}
				initLogger(level)
				return nil
			}
			cfg, err := config.LoadOrDefault(opts.configPath)
			if err != nil {
				// Cannot use logger yet
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config: %v\n", err)
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			initLogger(cfg.LogLevel)
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "production or development, overrides log_level")

	cmd.AddCommand(newInitCmd(opts), newExtractCmd(opts), newTrainCmd(opts))
	return cmd
}

func newInitCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a template config.yaml and create the data directories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := initialize.CheckConfig(dir)
			if err != nil {
				return err
			}
			logger.Info("Configuration ready", zap.String("path", path))
			return nil
		},
	}
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	var (
		models, years       string
		basePath, outputDir string
		failed              bool
		workers             int
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Filter daily snapshots down to the drives of a serial-number set",
		Long: `Walks <base_path>/<year> for every year, keeps the rows of the given
models whose serial number is listed in
<output_dir>/HDD_<years>_<all|failed>_<models>.npy, drops non-standard SMART
columns and writes the concatenated table next to the serial set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			opts := extract.Options{
				Models:    cfg.Extract.Models,
				Years:     cfg.Extract.Years,
				Failed:    cfg.Extract.Failed,
				BasePath:  cfg.Paths.BasePath,
				OutputDir: cfg.Paths.OutputDir,
				Workers:   cfg.Extract.Workers,
			}
			flags := cmd.Flags()
			if flags.Changed("model") {
				opts.Models = extract.ParseList(models)
			}
			if flags.Changed("years") {
				opts.Years = extract.ParseList(years)
			}
			if flags.Changed("failed") {
				opts.Failed = failed
			}
			if flags.Changed("base_path") {
				opts.BasePath = basePath
			}
			if flags.Changed("output_dir") {
				opts.OutputDir = outputDir
			}
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if len(opts.Models) == 0 {
				return fmt.Errorf("--model is required")
			}
			if len(opts.Years) == 0 {
				return fmt.Errorf("--years is required")
			}

			msg, err := extract.NewExtractor(opts, logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&models, "model", "", "comma separated drive models")
	f.StringVar(&years, "years", "", "comma separated years")
	f.StringVar(&basePath, "base_path", config.DefaultValues.Paths.BasePath, "directory holding one folder per year")
	f.StringVar(&outputDir, "output_dir", config.DefaultValues.Paths.OutputDir, "directory of the serial set and the output table")
	f.BoolVar(&failed, "failed", false, "use the serial set of failed drives only")
	f.IntVar(&workers, "workers", config.GetDefaultExtractConfig().Workers, "files read in parallel")
	return cmd
}

func newTrainCmd(root *rootOptions) *cobra.Command {
	var classifier string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build or load the cached dataset and train a classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if classifier != "" {
				cfg.Training.Classifier = classifier
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger.Info("Starting training",
				zap.String("model", cfg.Training.Model),
				zap.String("classifier", cfg.Training.Classifier))
			return ml_trainer.NewMLTrainer(cfg, logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&classifier, "classifier", "",
		"override training.classifier ("+strings.Join([]string{
			config.ClassifierRandomForest, config.ClassifierTCN, config.ClassifierLSTM,
		}, ", ")+")")
	return cmd
}
