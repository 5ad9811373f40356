// Package dataset turns per-day SMART snapshots into labelled samples: it
// filters unreliable drives, marks the days preceding a failure, ranks
// features and cuts per-drive histories into train and test windows.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hddpredict/frame"
	"hddpredict/snapshot"
)

// Column names of the Backblaze schema and of the generated labels.
const (
	ColDate     = "date"
	ColSerial   = "serial_number"
	ColModel    = "model"
	ColFailure  = "failure"
	ColPredict  = "predict_val"
	ColValidate = "validate_val"
	ColPowerOn  = "smart_9_raw"
)

var (
	// ErrEmptyDataset is returned when no sample can be built.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// metadataColumns are kept by every feature selection.
var metadataColumns = []string{ColDate, ColSerial, ColModel, ColFailure, ColPredict, ColValidate}

// IsFeature reports whether a column holds a SMART attribute.
func IsFeature(column string) bool {
	return strings.HasPrefix(column, "smart_")
}

// FeatureColumns returns the SMART attribute columns of f in order.
func FeatureColumns(f *frame.Frame) []string {
	var out []string
	for _, c := range f.Columns() {
		if IsFeature(c) {
			out = append(out, c)
		}
	}
	return out
}

func requireColumns(f *frame.Frame, columns ...string) error {
	for _, c := range columns {
		if !f.Has(c) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

// FilterModel keeps the rows of one drive model.
func FilterModel(f *frame.Frame, model string) (*frame.Frame, error) {
	if err := requireColumns(f, ColModel); err != nil {
		return nil, err
	}
	return f.Filter(func(i int) bool { return f.Value(i, ColModel) == model }), nil
}

// CountFailures returns the number of rows whose failure flag is set.
func CountFailures(f *frame.Frame) int {
	if !f.Has(ColFailure) {
		return 0
	}
	n := 0
	for i := 0; i < f.Len(); i++ {
		if frame.ParseFloat(f.Value(i, ColFailure)) == 1 {
			n++
		}
	}
	return n
}

// driveRows is the date-ordered view of one drive's rows.
type driveRows struct {
	serial string
	// positions into the source frame, one per distinct day
	positions []int
	dates     []time.Time
}

// groupDrives groups rows by serial number (sorted), orders each group by
// date and keeps the first row seen for a given day. Rows with an unreadable
// date are ignored.
func groupDrives(f *frame.Frame) ([]driveRows, error) {
	if err := requireColumns(f, ColSerial, ColDate); err != nil {
		return nil, err
	}
	keys, groups, err := f.GroupBy(ColSerial)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	drives := make([]driveRows, 0, len(keys))
	for _, serial := range keys {
		type dated struct {
			pos  int
			date time.Time
		}
		rows := make([]dated, 0, len(groups[serial]))
		for _, p := range groups[serial] {
			d, err := time.Parse(snapshot.DateLayout, f.Value(p, ColDate))
			if err != nil {
				continue
			}
			rows = append(rows, dated{pos: p, date: d})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

		dr := driveRows{serial: serial}
		for i, r := range rows {
			if i > 0 && r.date.Equal(rows[i-1].date) {
				continue
			}
			dr.positions = append(dr.positions, r.pos)
			dr.dates = append(dr.dates, r.date)
		}
		if len(dr.positions) > 0 {
			drives = append(drives, dr)
		}
	}
	return drives, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
