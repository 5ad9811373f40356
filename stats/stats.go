package stats

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
)

// ErrNoValues is returned when every value passed in is missing.
var ErrNoValues = errors.New("no non-missing values")

// Summary describes one feature column.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	P50    float64
	P90    float64
}

// dropNaN returns the values that are not NaN.
func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Summarize computes descriptive statistics, ignoring NaN values.
func Summarize(values []float64) (Summary, error) {
	data := dropNaN(values)
	if len(data) == 0 {
		return Summary{}, ErrNoValues
	}

	s := Summary{Count: len(data)}
	var err error
	if s.Min, err = stats.Min(data); err != nil {
		return Summary{}, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return Summary{}, err
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, err
	}
	if s.StdDev, err = stats.StandardDeviationPopulation(data); err != nil {
		return Summary{}, err
	}
	if s.P50, err = stats.Median(data); err != nil {
		return Summary{}, err
	}
	if s.P90, err = stats.Percentile(data, 90); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// PointBiserial returns the correlation between a numeric feature and a 0/1
// label. Pairs with a NaN feature are skipped. Constant inputs give 0.
func PointBiserial(values []float64, labels []int) float64 {
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		if i >= len(labels) || math.IsNaN(v) {
			continue
		}
		xs = append(xs, v)
		ys = append(ys, float64(labels[i]))
	}
	if len(xs) < 2 {
		return 0
	}
	r, err := stats.Correlation(xs, ys)
	if err != nil || math.IsNaN(r) {
		return 0
	}
	return r
}

// Scaler maps every feature into [0, 1] using the range seen at fit time.
type Scaler struct {
	min []float64
	max []float64
}

// FitScaler learns per-column ranges from rows. NaN values are ignored.
func FitScaler(rows [][]float64) *Scaler {
	if len(rows) == 0 {
		return &Scaler{}
	}
	width := len(rows[0])
	s := &Scaler{min: make([]float64, width), max: make([]float64, width)}
	column := make([]float64, 0, len(rows))
	for j := 0; j < width; j++ {
		column = column[:0]
		for _, r := range rows {
			column = append(column, r[j])
		}
		sum, err := Summarize(column)
		if err != nil {
			continue
		}
		s.min[j], s.max[j] = sum.Min, sum.Max
	}
	return s
}

// Width returns the number of features the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.min)
}

// Transform scales row in place. Constant columns and NaN map to 0. Values
// outside the fitted range scale past [0, 1] and are not clipped.
func (s *Scaler) Transform(row []float64) {
	for j := range row {
		if j >= len(s.min) {
			return
		}
		span := s.max[j] - s.min[j]
		if span == 0 || math.IsNaN(row[j]) {
			row[j] = 0
			continue
		}
		row[j] = (row[j] - s.min[j]) / span
	}
}
