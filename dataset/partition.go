package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"hddpredict/frame"
	"hddpredict/stats"
)

// Partition techniques.
const (
	TechniqueRandom = "random"
	TechniqueHDD    = "hdd"
	TechniqueDate   = "date"
)

// ResampleMode selects how the training set is rebalanced.
type ResampleMode int

const (
	// ResampleNone leaves the training set as built.
	ResampleNone ResampleMode = iota
	// ResampleUndersample keeps at most Balancing healthy samples per failed one.
	ResampleUndersample
	// ResampleCombined undersamples healthy samples, then duplicates failed
	// samples until both classes have the same size.
	ResampleCombined
	// ResampleOversample duplicates failed samples until there is at least
	// one per Balancing healthy samples.
	ResampleOversample
)

// Sample is one model input: a window of consecutive daily readings of a
// drive, labelled by its last day.
type Sample struct {
	Serial string
	// Date is the day of the last reading in Seq.
	Date time.Time
	// Seq holds one row of feature values per day. Rows may be shared with
	// overlapping samples and must not be modified.
	Seq      [][]float64
	Label    int
	Validate int
}

// Set is a list of samples.
type Set []Sample

// Labels returns the label of every sample.
func (s Set) Labels() []int {
	out := make([]int, len(s))
	for i, smp := range s {
		out[i] = smp.Label
	}
	return out
}

// Counts returns the number of healthy and failed samples.
func (s Set) Counts() (healthy, failed int) {
	for _, smp := range s {
		if smp.Label == 1 {
			failed++
		} else {
			healthy++
		}
	}
	return healthy, failed
}

// Flatten concatenates each sample's rows into a single vector.
func (s Set) Flatten() [][]float64 {
	out := make([][]float64, len(s))
	for i, smp := range s {
		var v []float64
		for _, row := range smp.Seq {
			v = append(v, row...)
		}
		out[i] = v
	}
	return out
}

// Shape returns the number of samples, timesteps and features.
func (s Set) Shape() (n, steps, features int) {
	if len(s) == 0 || len(s[0].Seq) == 0 {
		return len(s), 0, 0
	}
	return len(s), len(s[0].Seq), len(s[0].Seq[0])
}

// PartitionOptions configures Partition.
type PartitionOptions struct {
	// Windowing builds WindowDim-day samples; otherwise every day is a sample.
	Windowing bool
	WindowDim int
	// Overlap 1 slides windows one day at a time; any other value tiles them.
	Overlap       int
	Technique     string
	TestTrainPerc float64
	Resample      ResampleMode
	// Balancing is the healthy-to-failed ratio targeted by resampling.
	Balancing int
	Seed      int64
}

// Split is the result of Partition.
type Split struct {
	Train    Set
	Test     Set
	Features []string
}

type driveSeries struct {
	serial   string
	dates    []time.Time
	rows     [][]float64
	predict  []int
	validate []int
	failed   bool
}

type windowRef struct {
	drive *driveSeries
	end   int
}

func (w windowRef) label() int    { return w.drive.predict[w.end] }
func (w windowRef) validate() int { return w.drive.validate[w.end] }

// Partition converts a labelled frame into scaled, resampled train and test
// sets. Missing readings are forward-filled per drive, then set to 0.
// Scaling is fitted on the training rows only.
func Partition(f *frame.Frame, opts PartitionOptions) (*Split, error) {
	if err := requireColumns(f, ColPredict, ColValidate); err != nil {
		return nil, err
	}
	features := FeatureColumns(f)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no smart_* feature columns", ErrEmptyDataset)
	}
	if opts.TestTrainPerc <= 0 || opts.TestTrainPerc >= 1 {
		return nil, fmt.Errorf("test fraction must be in (0, 1), got %v", opts.TestTrainPerc)
	}

	series, err := buildSeries(f, features)
	if err != nil {
		return nil, err
	}

	length, stride := 1, 1
	if opts.Windowing {
		if opts.WindowDim < 1 {
			return nil, fmt.Errorf("window dimension must be positive, got %d", opts.WindowDim)
		}
		length = opts.WindowDim
		if opts.Overlap != 1 {
			stride = opts.WindowDim
		}
	}

	var windows []windowRef
	for _, s := range series {
		for end := length - 1; end < len(s.rows); end += stride {
			windows = append(windows, windowRef{drive: s, end: end})
		}
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: no drive has %d consecutive readings", ErrEmptyDataset, length)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	train, test, err := splitWindows(windows, series, opts, rng)
	if err != nil {
		return nil, err
	}

	kept := train[:0]
	for _, w := range train {
		if w.label() == 0 && w.validate() == 1 {
			continue
		}
		kept = append(kept, w)
	}
	train = kept
	if len(train) == 0 {
		return nil, fmt.Errorf("%w: training split has no samples", ErrEmptyDataset)
	}

	scaleSeries(series, train, length)

	split := &Split{
		Train:    materialize(train, length),
		Test:     materialize(test, length),
		Features: features,
	}
	split.Train = Resample(split.Train, opts.Resample, opts.Balancing, rng)
	rng.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	return split, nil
}

func buildSeries(f *frame.Frame, features []string) ([]*driveSeries, error) {
	drives, err := groupDrives(f)
	if err != nil {
		return nil, err
	}
	predict, err := labelColumn(f, ColPredict)
	if err != nil {
		return nil, err
	}
	validate, err := labelColumn(f, ColValidate)
	if err != nil {
		return nil, err
	}
	columns := make([][]float64, len(features))
	for j, c := range features {
		columns[j], _ = f.Floats(c)
	}

	out := make([]*driveSeries, 0, len(drives))
	for _, d := range drives {
		s := &driveSeries{
			serial:   d.serial,
			dates:    d.dates,
			rows:     make([][]float64, len(d.positions)),
			predict:  make([]int, len(d.positions)),
			validate: make([]int, len(d.positions)),
		}
		last := make([]float64, len(features))
		for j := range last {
			last[j] = math.NaN()
		}
		for i, p := range d.positions {
			row := make([]float64, len(features))
			for j := range features {
				v := columns[j][p]
				if math.IsNaN(v) {
					v = last[j]
				} else {
					last[j] = v
				}
				if math.IsNaN(v) {
					v = 0
				}
				row[j] = v
			}
			s.rows[i] = row
			s.predict[i] = predict[p]
			s.validate[i] = validate[p]
			if predict[p] == 1 {
				s.failed = true
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func testCount(n int, perc float64) int {
	return int(math.Round(perc * float64(n)))
}

func splitWindows(windows []windowRef, series []*driveSeries, opts PartitionOptions, rng *rand.Rand) (train, test []windowRef, err error) {
	switch opts.Technique {
	case TechniqueRandom, "":
		rng.Shuffle(len(windows), func(i, j int) { windows[i], windows[j] = windows[j], windows[i] })
		n := testCount(len(windows), opts.TestTrainPerc)
		return windows[n:], windows[:n], nil

	case TechniqueHDD:
		var failed, healthy []*driveSeries
		for _, s := range series {
			if s.failed {
				failed = append(failed, s)
			} else {
				healthy = append(healthy, s)
			}
		}
		inTest := make(map[*driveSeries]bool)
		for _, group := range [][]*driveSeries{failed, healthy} {
			rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
			for _, s := range group[:testCount(len(group), opts.TestTrainPerc)] {
				inTest[s] = true
			}
		}
		for _, w := range windows {
			if inTest[w.drive] {
				test = append(test, w)
			} else {
				train = append(train, w)
			}
		}
		return train, test, nil

	case TechniqueDate:
		sort.SliceStable(windows, func(i, j int) bool {
			return windows[i].drive.dates[windows[i].end].Before(windows[j].drive.dates[windows[j].end])
		})
		cut := len(windows) - testCount(len(windows), opts.TestTrainPerc)
		return windows[:cut], windows[cut:], nil
	}
	return nil, nil, fmt.Errorf("unknown partition technique %q", opts.Technique)
}

// scaleSeries fits a min-max scaler on the rows covered by training windows
// and rescales every drive once, so overlapping windows share scaled rows.
func scaleSeries(series []*driveSeries, train []windowRef, length int) {
	covered := make(map[*driveSeries][]bool)
	var rows [][]float64
	for _, w := range train {
		mark, ok := covered[w.drive]
		if !ok {
			mark = make([]bool, len(w.drive.rows))
			covered[w.drive] = mark
		}
		for i := w.end - length + 1; i <= w.end; i++ {
			if !mark[i] {
				mark[i] = true
				rows = append(rows, w.drive.rows[i])
			}
		}
	}

	scaler := stats.FitScaler(rows)
	for _, s := range series {
		for _, row := range s.rows {
			scaler.Transform(row)
		}
	}
}

func materialize(windows []windowRef, length int) Set {
	out := make(Set, len(windows))
	for i, w := range windows {
		d := w.drive
		out[i] = Sample{
			Serial:   d.serial,
			Date:     d.dates[w.end],
			Seq:      d.rows[w.end-length+1 : w.end+1],
			Label:    w.label(),
			Validate: w.validate(),
		}
	}
	return out
}

// Resample rebalances a training set. Sets without failed samples, or a
// ratio below 1, are returned unchanged.
func Resample(set Set, mode ResampleMode, ratio int, rng *rand.Rand) Set {
	var healthy, failed Set
	for _, s := range set {
		if s.Label == 1 {
			failed = append(failed, s)
		} else {
			healthy = append(healthy, s)
		}
	}
	if mode == ResampleNone || len(failed) == 0 || ratio < 1 {
		return set
	}

	undersample := func() {
		if limit := ratio * len(failed); len(healthy) > limit {
			rng.Shuffle(len(healthy), func(i, j int) { healthy[i], healthy[j] = healthy[j], healthy[i] })
			healthy = healthy[:limit]
		}
	}
	oversample := func(target int) {
		n := len(failed)
		for len(failed) < target {
			failed = append(failed, failed[rng.Intn(n)])
		}
	}

	switch mode {
	case ResampleUndersample:
		undersample()
	case ResampleCombined:
		undersample()
		oversample(len(healthy))
	case ResampleOversample:
		oversample(int(math.Ceil(float64(len(healthy)) / float64(ratio))))
	}

	out := make(Set, 0, len(healthy)+len(failed))
	out = append(out, healthy...)
	return append(out, failed...)
}

// ExtractFeatures summarises each window into one row holding, per feature,
// its mean, standard deviation, minimum, maximum and last-minus-first change.
func ExtractFeatures(set Set) Set {
	out := make(Set, len(set))
	for i, smp := range set {
		n, width := len(smp.Seq), 0
		if n > 0 {
			width = len(smp.Seq[0])
		}
		vec := make([]float64, 0, 5*width)
		column := make([]float64, n)
		for j := 0; j < width; j++ {
			for t := 0; t < n; t++ {
				column[t] = smp.Seq[t][j]
			}
			sum, err := stats.Summarize(column)
			if err != nil {
				vec = append(vec, 0, 0, 0, 0, 0)
				continue
			}
			vec = append(vec, sum.Mean, sum.StdDev, sum.Min, sum.Max, column[n-1]-column[0])
		}
		smp.Seq = [][]float64{vec}
		out[i] = smp
	}
	return out
}
