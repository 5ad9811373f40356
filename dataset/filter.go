package dataset

import (
	"math"

	"hddpredict/frame"
)

// FilterOptions bounds how incomplete a drive history may be.
type FilterOptions struct {
	// MinDays is the minimum number of distinct days a drive must report.
	MinDays int
	// TimeWindow is the longest tolerated gap, in days, between readings.
	TimeWindow int
	// Tolerance is the total number of missing days tolerated per drive.
	Tolerance int
}

// FilterResult is the outcome of FilterDrives.
type FilterResult struct {
	BadMissing []string
	BadPower   []string
	Frame      *frame.Frame
}

// FilterDrives removes drives whose history is too short or too sparse
// (BadMissing) and drives whose power-on hour counter goes backwards
// (BadPower). The returned frame is ordered by serial number, then date,
// with one row per drive and day.
func FilterDrives(f *frame.Frame, opts FilterOptions) (*FilterResult, error) {
	drives, err := groupDrives(f)
	if err != nil {
		return nil, err
	}

	var powerOn []float64
	if f.Has(ColPowerOn) {
		powerOn, _ = f.Floats(ColPowerOn)
	}

	res := &FilterResult{}
	var keep []int
	for _, d := range drives {
		missing := isMissingData(d, opts)
		power := powerOn != nil && isPowerAnomaly(d, powerOn)
		if missing {
			res.BadMissing = append(res.BadMissing, d.serial)
		}
		if power {
			res.BadPower = append(res.BadPower, d.serial)
		}
		if !missing && !power {
			keep = append(keep, d.positions...)
		}
	}
	res.Frame = f.Take(keep)
	return res, nil
}

func isMissingData(d driveRows, opts FilterOptions) bool {
	if len(d.dates) < opts.MinDays {
		return true
	}
	missing := 0
	for i := 1; i < len(d.dates); i++ {
		gap := daysBetween(d.dates[i-1], d.dates[i])
		if opts.TimeWindow > 0 && gap >= opts.TimeWindow {
			return true
		}
		missing += gap - 1
	}
	return missing > opts.Tolerance
}

func isPowerAnomaly(d driveRows, powerOn []float64) bool {
	prev := math.NaN()
	for _, p := range d.positions {
		v := powerOn[p]
		if math.IsNaN(v) {
			continue
		}
		if !math.IsNaN(prev) && v < prev {
			return true
		}
		prev = v
	}
	return false
}
