package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"hddpredict/frame"
)

// DateLayout is the layout of Backblaze file names and the date column.
const DateLayout = "2006-01-02"

// ErrNoCSVFiles is returned when a directory yields no readable snapshot.
var ErrNoCSVFiles = errors.New("no valid CSV files found")

// FileDate parses the snapshot date from a file name such as 2013-04-10.csv.
func FileDate(name string) (time.Time, error) {
	stem := filepath.Base(name)
	if i := strings.Index(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	t, err := time.Parse(DateLayout, stem)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot file name %q: %w", name, err)
	}
	return t, nil
}

// ListDailyFiles returns the sorted names of the .csv files in dir.
func ListDailyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadCSV loads one daily snapshot. The first record is the header.
func ReadCSV(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV stream whose first record is the header.
func Parse(r io.Reader) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV file")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	out := frame.New(columns)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if err := out.Append(rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadDir reads every .csv file in dir and concatenates them. Unreadable
// files are logged and skipped.
func LoadDir(dir string, logger *zap.Logger) (*frame.Frame, error) {
	logger.Info("Loading data", zap.String("dir", dir))
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", dir, err)
	}
	sort.Strings(files)
	logger.Info("Found snapshot files", zap.Int("files", len(files)))

	frames := make([]*frame.Frame, 0, len(files))
	for _, file := range files {
		df, err := ReadCSV(file)
		if err != nil {
			logger.Warn("Error reading snapshot", zap.String("file", file), zap.Error(err))
			continue
		}
		frames = append(frames, df)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCSVFiles, dir)
	}

	combined := frame.Concat(frames...)
	logger.Info("Total records", zap.Int("rows", combined.Len()))
	return combined, nil
}
