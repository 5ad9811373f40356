package dataset

import (
	"strconv"
	"time"

	"hddpredict/frame"
	"hddpredict/snapshot"
)

// GenerateFailureLabels marks the rows preceding a drive failure. For a drive
// whose first failure is reported on day F, a row dated d has predict set
// when F-d < days and validate set when F-d < days+window. Rows of drives
// that never fail are 0. The returned slices are aligned with f's rows.
func GenerateFailureLabels(f *frame.Frame, days, window int) (predict, validate []int, err error) {
	if err := requireColumns(f, ColFailure); err != nil {
		return nil, nil, err
	}
	drives, err := groupDrives(f)
	if err != nil {
		return nil, nil, err
	}

	predict = make([]int, f.Len())
	validate = make([]int, f.Len())
	_, groups, _ := f.GroupBy(ColSerial)
	for _, d := range drives {
		var failDate time.Time
		failed := false
		for i, p := range d.positions {
			if frame.ParseFloat(f.Value(p, ColFailure)) == 1 {
				failDate, failed = d.dates[i], true
				break
			}
		}
		if !failed {
			continue
		}
		// Duplicate same-day rows share the label of their day.
		for _, p := range groups[d.serial] {
			date, err := time.Parse(snapshot.DateLayout, f.Value(p, ColDate))
			if err != nil {
				continue
			}
			before := daysBetween(date, failDate)
			if before < 0 {
				continue
			}
			if before < days {
				predict[p] = 1
			}
			if before < days+window {
				validate[p] = 1
			}
		}
	}
	return predict, validate, nil
}

// AddFailureLabels stores the labels of GenerateFailureLabels as the
// predict_val and validate_val columns.
func AddFailureLabels(f *frame.Frame, days, window int) error {
	predict, validate, err := GenerateFailureLabels(f, days, window)
	if err != nil {
		return err
	}
	if err := f.SetColumn(ColPredict, itoa(predict)); err != nil {
		return err
	}
	return f.SetColumn(ColValidate, itoa(validate))
}

func itoa(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

// labelColumn reads a 0/1 column; anything other than 1 is 0.
func labelColumn(f *frame.Frame, column string) ([]int, error) {
	if err := requireColumns(f, column); err != nil {
		return nil, err
	}
	values, _ := f.Floats(column)
	out := make([]int, len(values))
	for i, v := range values {
		if v == 1 {
			out[i] = 1
		}
	}
	return out, nil
}
