package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hddpredict/frame"
	"hddpredict/load"
	"hddpredict/serials"
	"hddpredict/snapshot"
	"hddpredict/store"
)

// nonStandardAttributes are SMART ids not reported by every drive model.
var nonStandardAttributes = map[int]bool{22: true, 220: true, 222: true, 224: true, 226: true}

// Options selects what to extract.
type Options struct {
	Models    []string
	Years     []string
	Failed    bool
	BasePath  string
	OutputDir string
	Workers   int
}

// ParseList splits a comma separated flag value and trims each entry.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SerialsPath is where the precomputed serial-number set is expected.
func (o Options) SerialsPath() string {
	return filepath.Join(o.OutputDir, serials.FileName(o.Years, o.Failed, o.Models))
}

// OutputPath is where the extracted table is written.
func (o Options) OutputPath() string {
	return filepath.Join(o.OutputDir, serials.Prefix(o.Years, o.Failed, o.Models)+"_appended.sqlite")
}

// Extractor filters daily snapshots down to the drives of a serial set.
type Extractor struct {
	opts     Options
	logger   *zap.Logger
	progress load.Progress
}

// NewExtractor creates an Extractor.
func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Extractor{opts: opts, logger: logger}
}

// Progress exposes the counters of the last run.
func (e *Extractor) Progress() *load.Progress {
	return &e.progress
}

// Run performs the extraction and returns a human readable summary.
func (e *Extractor) Run(ctx context.Context) (string, error) {
	result, err := e.run(ctx)
	if err != nil {
		e.logger.Error("Fatal error during extraction", zap.Error(err))
		return "", err
	}
	return result, nil
}

func (e *Extractor) run(ctx context.Context) (string, error) {
	o := e.opts
	e.logger.Info("Starting extraction",
		zap.Strings("models", o.Models),
		zap.Strings("years", o.Years),
		zap.Bool("failed", o.Failed))

	serialsPath := o.SerialsPath()
	e.logger.Info("Looking for serial set", zap.String("path", serialsPath))
	if _, err := os.Stat(serialsPath); err != nil {
		return "", fmt.Errorf("required .npy file not found: %s: %w", serialsPath, err)
	}

	set, err := serials.Read(serialsPath)
	if err != nil {
		return "", fmt.Errorf("error loading .npy file: %w", err)
	}
	e.logger.Info("Loaded serial numbers", zap.Int("serials", len(set)))

	var parts []*frame.Frame
	for _, year := range o.Years {
		yearFrames, err := e.processYear(ctx, year, set)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			e.logger.Error("Error processing year", zap.String("year", year), zap.Error(err))
			continue
		}
		parts = append(parts, yearFrames...)
	}

	database := frame.Concat(parts...)
	e.logger.Info("Total rows in final database",
		zap.Int("rows", database.Len()),
		zap.Int64("files_read", e.progress.FilesRead.Get()),
		zap.Int64("files_skipped", e.progress.FilesSkipped.Get()),
		zap.Int64("rows_matched", e.progress.RowsMatched.Get()),
		zap.Int64("rows_kept", e.progress.RowsKept.Get()))

	out := o.OutputPath()
	if err := store.Save(ctx, out, database); err != nil {
		return "", fmt.Errorf("error saving table file: %w", err)
	}
	return "Data saved to " + out, nil
}

// processYear returns the selected rows of one year directory, in file then
// model order.
func (e *Extractor) processYear(ctx context.Context, year string, set serials.Set) ([]*frame.Frame, error) {
	yearPath := filepath.Join(e.opts.BasePath, year)
	if _, err := os.Stat(yearPath); err != nil {
		e.logger.Warn("Year directory not found", zap.String("path", yearPath))
		return nil, nil
	}

	oldTime, err := time.Parse(snapshot.DateLayout, year+"-01-01")
	if err != nil {
		return nil, fmt.Errorf("invalid year %q: %w", year, err)
	}

	files, err := snapshot.ListDailyFiles(yearPath)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Found CSV files", zap.Int("files", len(files)), zap.String("dir", yearPath))

	results := make([][]*frame.Frame, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.processFile(filepath.Join(yearPath, file), oldTime, set)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*frame.Frame
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// processFile never fails the run; problems with a single file are logged.
func (e *Extractor) processFile(path string, oldTime time.Time, set serials.Set) []*frame.Frame {
	name := filepath.Base(path)
	fileDate, err := snapshot.FileDate(name)
	if err != nil {
		e.logger.Warn("Error processing file", zap.String("file", name), zap.Error(err))
		e.progress.FilesSkipped.Increment()
		return nil
	}
	if fileDate.Before(oldTime) {
		e.progress.FilesSkipped.Increment()
		return nil
	}

	e.logger.Debug("Processing file", zap.String("file", name))
	df, err := snapshot.ReadCSV(path)
	if err != nil {
		e.logger.Warn("Error reading CSV file", zap.String("file", name), zap.Error(err))
		e.progress.FilesSkipped.Increment()
		return nil
	}
	e.progress.FilesRead.Increment()
	e.logger.Debug("CSV loaded", zap.String("file", name), zap.Int("rows", df.Len()), zap.Int("columns", df.Width()))

	var out []*frame.Frame
	for _, model := range e.opts.Models {
		matched, rows, err := selectRows(df, model, set)
		if err != nil {
			e.logger.Warn("Error processing model",
				zap.String("model", model), zap.String("file", name), zap.Error(err))
			continue
		}
		e.progress.RowsMatched.Add(matched)
		if rows.Len() == 0 {
			continue
		}
		e.logger.Debug("Found relevant rows",
			zap.String("model", model), zap.String("file", name), zap.Int("rows", rows.Len()))
		e.progress.RowsKept.Add(rows.Len())
		out = append(out, rows.Drop(NonStandardColumns(rows.Columns())...))
	}
	return out
}

// selectRows keeps the rows of model whose serial is in set. matched counts
// the rows of model before the serial filter.
func selectRows(df *frame.Frame, model string, set serials.Set) (matched int, rows *frame.Frame, err error) {
	if !df.Has("model") {
		return 0, nil, fmt.Errorf("column %q not found", "model")
	}
	if !df.Has("serial_number") {
		return 0, nil, fmt.Errorf("column %q not found", "serial_number")
	}
	rows = df.Filter(func(i int) bool {
		if df.Value(i, "model") != model {
			return false
		}
		matched++
		return set.Contains(df.Value(i, "serial_number"))
	})
	return matched, rows, nil
}

// NonStandardColumns returns the smart_<id>_* columns whose id is reported
// by only some drive models.
func NonStandardColumns(columns []string) []string {
	var out []string
	for _, c := range columns {
		parts := strings.Split(c, "_")
		if len(parts) < 2 || parts[0] != "smart" {
			continue
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if nonStandardAttributes[id] {
			out = append(out, c)
		}
	}
	return out
}
