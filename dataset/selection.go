package dataset

import (
	"math"
	"sort"

	"hddpredict/frame"
	"hddpredict/stats"
)

// Ranked is a feature with its relevance score.
type Ranked struct {
	Feature string
	Score   float64
}

// RankFeatures scores every SMART column by the absolute point-biserial
// correlation with predict_val, best first. Ties keep column order.
func RankFeatures(f *frame.Frame) ([]Ranked, error) {
	labels, err := labelColumn(f, ColPredict)
	if err != nil {
		return nil, err
	}
	features := FeatureColumns(f)
	ranked := make([]Ranked, 0, len(features))
	for _, c := range features {
		values, _ := f.Floats(c)
		ranked = append(ranked, Ranked{Feature: c, Score: math.Abs(stats.PointBiserial(values, labels))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// FeatureSelection keeps the n best ranked SMART columns together with the
// metadata and label columns. Selected columns stay in their original order.
func FeatureSelection(f *frame.Frame, n int) (*frame.Frame, []Ranked, error) {
	ranked, err := RankFeatures(f)
	if err != nil {
		return nil, nil, err
	}
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	chosen := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		chosen[r.Feature] = true
	}

	var columns []string
	for _, c := range f.Columns() {
		if chosen[c] || isMetadata(c) {
			columns = append(columns, c)
		}
	}
	out, err := f.Select(columns...)
	if err != nil {
		return nil, nil, err
	}
	return out, ranked, nil
}

// SelectFeatures keeps a fixed list of columns plus the label columns. It
// returns the listed columns that f does not have.
func SelectFeatures(f *frame.Frame, columns []string) (*frame.Frame, []string, error) {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}
	var missing []string
	for _, c := range columns {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}

	var keep []string
	for _, c := range f.Columns() {
		if want[c] || c == ColPredict || c == ColValidate {
			keep = append(keep, c)
		}
	}
	out, err := f.Select(keep...)
	if err != nil {
		return nil, nil, err
	}
	return out, missing, nil
}

func isMetadata(column string) bool {
	for _, m := range metadataColumns {
		if m == column {
			return true
		}
	}
	return false
}
