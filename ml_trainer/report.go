package ml_trainer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hddpredict/config"
	"hddpredict/dataset"
	"hddpredict/metrics"

	"gopkg.in/yaml.v3"
)

// SampleCounts is the class balance of a sample set.
type SampleCounts struct {
	Healthy int `yaml:"healthy"`
	Failed  int `yaml:"failed"`
}

// Report is the record of one training run written to the output directory.
type Report struct {
	RunID      string                `yaml:"run_id"`
	Started    time.Time             `yaml:"started"`
	Duration   string                `yaml:"duration"`
	Classifier string                `yaml:"classifier"`
	Model      string                `yaml:"model"`
	Rows       int                   `yaml:"rows"`
	Failures   int                   `yaml:"failures"`
	Features   []string              `yaml:"features"`
	Train      SampleCounts          `yaml:"train"`
	Test       SampleCounts          `yaml:"test"`
	Epochs     int                   `yaml:"epochs,omitempty"`
	Metrics    map[string]float64    `yaml:"metrics"`
	Confusion  metrics.Confusion     `yaml:"confusion"`
	Training   config.TrainingConfig `yaml:"training"`

	// Path is where the report was written.
	Path string `yaml:"-"`
}

func counts(s dataset.Set) SampleCounts {
	h, f := s.Counts()
	return SampleCounts{Healthy: h, Failed: f}
}

func newReport(runID string, started time.Time, cfg *config.Config, rows, failures int, split *dataset.Split, out *Outcome) *Report {
	return &Report{
		RunID:      runID,
		Started:    started,
		Duration:   time.Since(started).Round(time.Millisecond).String(),
		Classifier: out.Classifier,
		Model:      cfg.Training.Model,
		Rows:       rows,
		Failures:   failures,
		Features:   split.Features,
		Train:      counts(split.Train),
		Test:       counts(split.Test),
		Epochs:     out.Epochs,
		Metrics:    out.Report.Values,
		Confusion:  out.Report.Confusion,
		Training:   cfg.Training,
	}
}

func (r *Report) write(dir string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	r.Path = filepath.Join(dir, fmt.Sprintf("report_%s.yaml", r.RunID))
	if err := os.WriteFile(r.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
