package ml_trainer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"hddpredict/config"
	"hddpredict/dataset"
	"hddpredict/frame"
	"hddpredict/interfaces"
	"hddpredict/snapshot"
	"hddpredict/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ensure MLTrainer implements Job interface
var _ interfaces.Job = (*MLTrainer)(nil)

// MLTrainer builds the labelled dataset, partitions it and trains the
// configured classifier.
type MLTrainer struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMLTrainer creates a new MLTrainer.
func NewMLTrainer(cfg *config.Config, logger *zap.Logger) *MLTrainer {
	return &MLTrainer{
		cfg:    cfg,
		logger: logger,
	}
}

// CachePath is where the processed dataset of the configured model is kept.
func (m *MLTrainer) CachePath() string {
	return filepath.Join(m.cfg.Paths.CacheDir, m.cfg.Training.CacheName())
}

// DataDirs lists the snapshot directories the dataset is built from:
// paths.data_dir when set, else <base_path>/<year> for every training year.
func (m *MLTrainer) DataDirs() []string {
	if m.cfg.Paths.DataDir != "" {
		return []string{m.cfg.Paths.DataDir}
	}
	dirs := make([]string, len(m.cfg.Training.Years))
	for i, year := range m.cfg.Training.Years {
		dirs[i] = filepath.Join(m.cfg.Paths.BasePath, year)
	}
	return dirs
}

// loadSnapshots concatenates the daily CSVs of every data directory. A
// directory without snapshots is logged and skipped.
func (m *MLTrainer) loadSnapshots() (*frame.Frame, error) {
	dirs := m.DataDirs()
	var parts []*frame.Frame
	for _, dir := range dirs {
		df, err := snapshot.LoadDir(dir, m.logger)
		if errors.Is(err, snapshot.ErrNoCSVFiles) {
			m.logger.Warn("No snapshots found", zap.String("dir", dir))
			continue
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, df)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w in %v", snapshot.ErrNoCSVFiles, dirs)
	}
	return frame.Concat(parts...), nil
}

// LoadOrBuild returns the processed dataset, from the cache when present.
// Otherwise the raw snapshots are read from paths.source (an extracted
// table) or the data directories, processed and cached.
func (m *MLTrainer) LoadOrBuild(ctx context.Context) (*frame.Frame, error) {
	cachePath := m.CachePath()
	if store.Exists(cachePath) {
		m.logger.Info("Loading cached dataset", zap.String("path", cachePath))
		return store.Load(ctx, cachePath)
	}

	m.logger.Info("Loading and processing raw data")
	var (
		raw *frame.Frame
		err error
	)
	if src := m.cfg.Paths.Source; src != "" {
		m.logger.Info("Loading extracted table", zap.String("path", src))
		raw, err = store.Load(ctx, src)
	} else {
		raw, err = m.loadSnapshots()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load raw data: %w", err)
	}

	df, err := BuildDataset(raw, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, cachePath, df); err != nil {
		return nil, fmt.Errorf("failed to cache dataset: %w", err)
	}
	m.logger.Info("Dataset cached", zap.String("path", cachePath))
	return df, nil
}

// BuildDataset keeps the configured model, drops unreliable drives, adds the
// failure labels and selects the feature columns.
func BuildDataset(raw *frame.Frame, cfg *config.Config, logger *zap.Logger) (*frame.Frame, error) {
	t := cfg.Training
	df, err := dataset.FilterModel(raw, t.Model)
	if err != nil {
		return nil, err
	}
	if df.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows for model %s", dataset.ErrEmptyDataset, t.Model)
	}

	res, err := dataset.FilterDrives(df, dataset.FilterOptions{
		MinDays:    t.MinDaysHDD,
		TimeWindow: t.Filter.TimeWindow,
		Tolerance:  t.Filter.Tolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter drives: %w", err)
	}
	logger.Info("Filtered drives",
		zap.Int("bad_missing", len(res.BadMissing)),
		zap.Int("bad_power", len(res.BadPower)),
		zap.Int("rows", res.Frame.Len()))
	df = res.Frame
	if df.Len() == 0 {
		return nil, fmt.Errorf("%w: no %s drive passed the filters", dataset.ErrEmptyDataset, t.Model)
	}

	if err := dataset.AddFailureLabels(df, t.DaysConsideredAsFailure, t.HistorySignal); err != nil {
		return nil, fmt.Errorf("failed to generate labels: %w", err)
	}

	if t.Ranking != config.RankingNone {
		selected, ranked, err := dataset.FeatureSelection(df, t.NumFeatures)
		if err != nil {
			return nil, fmt.Errorf("feature selection failed: %w", err)
		}
		names := make([]string, len(ranked))
		for i, r := range ranked {
			names[i] = r.Feature
		}
		logger.Info("Selected features", zap.Strings("features", names))
		return selected, nil
	}

	selected, missing, err := dataset.SelectFeatures(df, cfg.SelectedFeatures())
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		logger.Warn("Feature set columns not in dataset",
			zap.String("feature_set", cfg.FeatureSet),
			zap.Strings("missing", missing))
	}
	return selected, nil
}

func (m *MLTrainer) partitionOptions() dataset.PartitionOptions {
	t := m.cfg.Training
	return dataset.PartitionOptions{
		Windowing:     t.Windowing == 1,
		WindowDim:     t.HistorySignal,
		Overlap:       t.Overlap,
		Technique:     t.Technique,
		TestTrainPerc: t.TestTrainPerc,
		Resample:      dataset.ResampleMode(t.OversampleUndersample),
		Balancing:     t.BalancingNormalFailed,
		Seed:          t.Seed,
	}
}

// Run trains once and writes the run report.
func (m *MLTrainer) Run(ctx context.Context) error {
	_, err := m.Execute(ctx)
	return err
}

// Execute runs the whole pipeline and returns the written report.
func (m *MLTrainer) Execute(ctx context.Context) (*Report, error) {
	started := time.Now()
	df, err := m.LoadOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	failures := dataset.CountFailures(df)
	m.logger.Info("Dataset ready",
		zap.Int("rows", df.Len()),
		zap.Int("columns", df.Width()),
		zap.Int("failures", failures))

	split, err := dataset.Partition(df, m.partitionOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to partition dataset: %w", err)
	}
	if m.cfg.Training.FeaturesExtractionMethod {
		split.Train = dataset.ExtractFeatures(split.Train)
		split.Test = dataset.ExtractFeatures(split.Test)
	}
	n, steps, width := split.Train.Shape()
	m.logger.Info("Dataset partitioned",
		zap.Int("train", n),
		zap.Int("test", len(split.Test)),
		zap.Int("steps", steps),
		zap.Int("features", width))

	outcome, err := m.Classification(ctx, m.cfg.Training.Classifier, split)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Classification finished", outcome.Report.Fields()...)

	report := newReport(uuid.NewString(), started, m.cfg, df.Len(), failures, split, outcome)
	if err := report.write(m.cfg.Paths.OutputDir); err != nil {
		return nil, err
	}
	m.logger.Info("Report written", zap.String("path", report.Path))
	return report, nil
}
