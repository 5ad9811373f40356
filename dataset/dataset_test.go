package dataset

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hddpredict/frame"
)

var day0 = time.Date(2013, 4, 10, 0, 0, 0, 0, time.UTC)

type driveSpec struct {
	serial string
	days   []int // offsets from day0
	failAt int   // offset of the failure day, -1 when healthy
	// power overrides smart_9_raw per index when set
	power []string
}

func buildFrame(t *testing.T, specs ...driveSpec) *frame.Frame {
	t.Helper()
	f := frame.New([]string{ColDate, ColSerial, ColModel, ColFailure, "smart_5_raw", ColPowerOn, "smart_12_raw"})
	for _, s := range specs {
		for i, d := range s.days {
			fail := "0"
			if d == s.failAt {
				fail = "1"
			}
			// smart_5_raw grows as the failure approaches, smart_12 is constant.
			reallocated := "0"
			if s.failAt >= 0 && s.failAt-d < 5 {
				reallocated = strconv.Itoa(100 - 10*(s.failAt-d))
			}
			power := strconv.Itoa(24 * d)
			if s.power != nil {
				power = s.power[i]
			}
			require.NoError(t, f.Append([]string{
				day0.AddDate(0, 0, d).Format("2006-01-02"), s.serial, "ST3000DM001", fail, reallocated, power, "7",
			}))
		}
	}
	return f
}

func span(from, to int) []int {
	var out []int
	for d := from; d <= to; d++ {
		out = append(out, d)
	}
	return out
}

func TestFilterDrives(t *testing.T) {
	gappy := append(span(0, 9), span(25, 40)...)
	f := buildFrame(t,
		driveSpec{serial: "OK", days: span(0, 19), failAt: -1},
		driveSpec{serial: "SHORT", days: span(0, 4), failAt: -1},
		driveSpec{serial: "GAP", days: gappy, failAt: -1},
		driveSpec{serial: "POWER", days: span(0, 19), failAt: -1, power: func() []string {
			p := make([]string, 20)
			for i := range p {
				p[i] = strconv.Itoa(100 + i)
			}
			p[10] = "5"
			return p
		}()},
	)

	res, err := FilterDrives(f, FilterOptions{MinDays: 10, TimeWindow: 10, Tolerance: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"GAP", "SHORT"}, res.BadMissing)
	assert.Equal(t, []string{"POWER"}, res.BadPower)
	assert.Equal(t, 20, res.Frame.Len())
	assert.Equal(t, "OK", res.Frame.Value(0, ColSerial))
}

func TestFilterDrivesToleranceAndOrdering(t *testing.T) {
	// shuffled input with one duplicated day and three missing days in total
	f := buildFrame(t, driveSpec{serial: "B", days: []int{5, 0, 1, 1, 3, 7}, failAt: -1})

	res, err := FilterDrives(f, FilterOptions{MinDays: 5, TimeWindow: 30, Tolerance: 3})
	require.NoError(t, err)
	require.Empty(t, res.BadMissing)
	dates, _ := res.Frame.Strings(ColDate)
	assert.Equal(t, []string{"2013-04-10", "2013-04-11", "2013-04-13", "2013-04-15", "2013-04-17"}, dates)

	res, err = FilterDrives(f, FilterOptions{MinDays: 5, TimeWindow: 30, Tolerance: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, res.BadMissing)
}

func TestFilterDrivesRequiresColumns(t *testing.T) {
	_, err := FilterDrives(frame.New([]string{ColDate}), FilterOptions{})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestGenerateFailureLabels(t *testing.T) {
	f := buildFrame(t,
		driveSpec{serial: "F", days: span(0, 9), failAt: 9},
		driveSpec{serial: "H", days: span(0, 9), failAt: -1},
	)

	predict, validate, err := GenerateFailureLabels(f, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 1, 1, 1}, predict[:10])
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 1, 1, 1, 1}, validate[:10])
	assert.Equal(t, make([]int, 10), predict[10:])
	assert.Equal(t, make([]int, 10), validate[10:])

	require.NoError(t, AddFailureLabels(f, 3, 4))
	assert.Equal(t, "1", f.Value(9, ColPredict))
	assert.Equal(t, "0", f.Value(19, ColValidate))
}

func TestFeatureSelection(t *testing.T) {
	f := buildFrame(t,
		driveSpec{serial: "F", days: span(0, 19), failAt: 19},
		driveSpec{serial: "H", days: span(0, 19), failAt: -1},
	)
	require.NoError(t, AddFailureLabels(f, 5, 0))

	ranked, err := RankFeatures(f)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "smart_5_raw", ranked[0].Feature)
	assert.Equal(t, 0.0, ranked[2].Score)
	assert.Equal(t, "smart_12_raw", ranked[2].Feature)

	out, top, err := FeatureSelection(f, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, []string{ColDate, ColSerial, ColModel, ColFailure, "smart_5_raw", ColPredict, ColValidate}, out.Columns())

	_, _, err = FeatureSelection(frame.New([]string{"smart_1_raw"}), 1)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestSelectFeatures(t *testing.T) {
	f := buildFrame(t, driveSpec{serial: "H", days: span(0, 2), failAt: -1})
	require.NoError(t, AddFailureLabels(f, 5, 0))

	out, missing, err := SelectFeatures(f, []string{ColDate, ColSerial, "smart_5_raw", "smart_199_raw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"smart_199_raw"}, missing)
	assert.Equal(t, []string{ColDate, ColSerial, "smart_5_raw", ColPredict, ColValidate}, out.Columns())
}

func labelled(t *testing.T, failed, healthy, days int) *frame.Frame {
	t.Helper()
	var specs []driveSpec
	for i := 0; i < failed; i++ {
		specs = append(specs, driveSpec{serial: fmt.Sprintf("F%02d", i), days: span(0, days-1), failAt: days - 1})
	}
	for i := 0; i < healthy; i++ {
		specs = append(specs, driveSpec{serial: fmt.Sprintf("H%02d", i), days: span(0, days-1), failAt: -1})
	}
	f := buildFrame(t, specs...)
	require.NoError(t, AddFailureLabels(f, 3, 2))
	return f
}

func TestPartitionWindows(t *testing.T) {
	f := labelled(t, 2, 8, 20)

	split, err := Partition(f, PartitionOptions{
		Windowing:     true,
		WindowDim:     5,
		Overlap:       1,
		Technique:     TechniqueHDD,
		TestTrainPerc: 0.5,
		Seed:          1,
	})
	require.NoError(t, err)

	// 16 windows per drive, 5 drives in each half
	assert.Len(t, split.Test, 5*16)
	n, steps, width := split.Train.Shape()
	assert.Equal(t, 3, width)
	assert.Equal(t, 5, steps)
	// the failed drive in train loses its 2 ambiguous windows
	assert.Equal(t, 5*16-2, n)
	assert.Equal(t, []string{"smart_5_raw", "smart_9_raw", "smart_12_raw"}, split.Features)

	trainSerials := map[string]bool{}
	for _, s := range split.Train {
		trainSerials[s.Serial] = true
		for _, row := range s.Seq {
			for _, v := range row {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
	for _, s := range split.Test {
		assert.False(t, trainSerials[s.Serial], "drive %s is in both splits", s.Serial)
	}
	_, failedTest := split.Test.Counts()
	assert.Equal(t, 3, failedTest)
}

func TestPartitionTilesWithoutOverlap(t *testing.T) {
	f := labelled(t, 1, 1, 20)
	split, err := Partition(f, PartitionOptions{
		Windowing: true, WindowDim: 5, Overlap: 0,
		Technique: TechniqueDate, TestTrainPerc: 0.25, Seed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, len(split.Train)+len(split.Test))
	assert.Len(t, split.Test, 2)
	for _, s := range split.Test {
		assert.Equal(t, day0.AddDate(0, 0, 19), s.Date)
	}
}

func TestPartitionRowsAndErrors(t *testing.T) {
	f := labelled(t, 1, 3, 10)
	split, err := Partition(f, PartitionOptions{Technique: TechniqueRandom, TestTrainPerc: 0.25, Seed: 7})
	require.NoError(t, err)
	assert.Len(t, split.Test, 10)
	_, steps, _ := split.Test.Shape()
	assert.Equal(t, 1, steps)

	_, err = Partition(f, PartitionOptions{Windowing: true, WindowDim: 50, Technique: TechniqueRandom, TestTrainPerc: 0.3})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Partition(f, PartitionOptions{Technique: "weekly", TestTrainPerc: 0.3})
	assert.Error(t, err)

	_, err = Partition(buildFrame(t, driveSpec{serial: "X", days: span(0, 3), failAt: -1}), PartitionOptions{TestTrainPerc: 0.3})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestPartitionIsDeterministic(t *testing.T) {
	opts := PartitionOptions{Windowing: true, WindowDim: 3, Overlap: 1, Technique: TechniqueRandom,
		TestTrainPerc: 0.3, Resample: ResampleCombined, Balancing: 4, Seed: 42}
	a, err := Partition(labelled(t, 2, 5, 12), opts)
	require.NoError(t, err)
	b, err := Partition(labelled(t, 2, 5, 12), opts)
	require.NoError(t, err)
	assert.Equal(t, a.Train.Labels(), b.Train.Labels())
	assert.Equal(t, a.Test.Flatten(), b.Test.Flatten())
}

func set(healthy, failed int) Set {
	var s Set
	for i := 0; i < healthy; i++ {
		s = append(s, Sample{Label: 0})
	}
	for i := 0; i < failed; i++ {
		s = append(s, Sample{Label: 1})
	}
	return s
}

func TestResample(t *testing.T) {
	tests := []struct {
		name            string
		mode            ResampleMode
		healthy, failed int
		wantH, wantF    int
	}{
		{"none", ResampleNone, 100, 2, 100, 2},
		{"undersample", ResampleUndersample, 100, 2, 40, 2},
		{"undersample below ratio", ResampleUndersample, 10, 2, 10, 2},
		{"combined", ResampleCombined, 100, 2, 40, 40},
		{"oversample", ResampleOversample, 100, 2, 100, 5},
		{"no failures", ResampleCombined, 100, 0, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resample(set(tt.healthy, tt.failed), tt.mode, 20, rand.New(rand.NewSource(1)))
			h, f := out.Counts()
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantF, f)
		})
	}
}

func TestExtractFeatures(t *testing.T) {
	s := Set{{Label: 1, Seq: [][]float64{{1, 10}, {3, 10}, {5, 10}}}}
	out := ExtractFeatures(s)
	require.Len(t, out[0].Seq, 1)
	vec := out[0].Seq[0]
	require.Len(t, vec, 10)
	assert.InDelta(t, 3.0, vec[0], 1e-12)
	assert.Equal(t, 1.0, vec[2])
	assert.Equal(t, 5.0, vec[3])
	assert.Equal(t, 4.0, vec[4])
	assert.Equal(t, 0.0, vec[6])
	assert.Equal(t, 1, out[0].Label)
	// source windows are untouched
	assert.Len(t, s[0].Seq, 3)
}

func TestCountFailuresAndFilterModel(t *testing.T) {
	f := buildFrame(t, driveSpec{serial: "F", days: span(0, 4), failAt: 4})
	assert.Equal(t, 1, CountFailures(f))

	out, err := FilterModel(f, "WDC")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}
