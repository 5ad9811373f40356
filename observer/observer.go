package observer

import (
	"sync"
	"time"

	"hddpredict/interfaces"

	"github.com/montanaflynn/stats"
)

// Ensure Observer implements EpochObserver interface
var _ interfaces.EpochObserver = (*Observer)(nil)

// Observer records training epochs and decides when to stop early.
type Observer struct {
	mutex     sync.RWMutex
	epochs    []interfaces.EpochResult
	durations []float64
	patience  int
	minDelta  float64
	bestLoss  float64
	bestEpoch int
	stale     int
}

// NewObserver creates a new Observer. Training stops once patience epochs
// pass without the train loss improving by more than minDelta. A patience
// of 0 never stops.
func NewObserver(patience int, minDelta float64) *Observer {
	return &Observer{
		epochs:    make([]interfaces.EpochResult, 0, 64),
		durations: make([]float64, 0, 64),
		patience:  patience,
		minDelta:  minDelta,
	}
}

// RecordEpoch records an epoch and reports whether training should stop.
func (o *Observer) RecordEpoch(r interfaces.EpochResult) bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.epochs = append(o.epochs, r)
	o.durations = append(o.durations, float64(r.Duration.Milliseconds()))

	if o.bestEpoch == 0 || o.bestLoss-r.TrainLoss > o.minDelta {
		o.bestLoss = r.TrainLoss
		o.bestEpoch = r.Epoch
		o.stale = 0
		return false
	}
	o.stale++
	return o.patience > 0 && o.stale >= o.patience
}

// Best returns the lowest train loss seen and its epoch.
func (o *Observer) Best() (float64, int) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.bestLoss, o.bestEpoch
}

// Epochs returns a copy of every recorded epoch.
func (o *Observer) Epochs() []interfaces.EpochResult {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return append([]interfaces.EpochResult(nil), o.epochs...)
}

// EpochDuration returns the given percentile of epoch durations, or 0 when
// nothing was recorded.
func (o *Observer) EpochDuration(percent float64) time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	p, err := stats.Percentile(o.durations, percent)
	if err != nil {
		return 0
	}
	return time.Duration(p) * time.Millisecond
}

// P50 returns the median epoch duration.
func (o *Observer) P50() time.Duration { return o.EpochDuration(50) }

// P95 returns the 95th percentile of epoch durations.
func (o *Observer) P95() time.Duration { return o.EpochDuration(95) }
