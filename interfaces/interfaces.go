package interfaces

import (
	"context"
	"time"
)

// EpochResult summarizes one training epoch of a neural classifier.
type EpochResult struct {
	Epoch     int
	TrainLoss float64
	TestLoss  float64
	// Metrics holds the test-set metrics by name.
	Metrics  map[string]float64
	Duration time.Duration
}

// EpochObserver defines the interface for observing training progress
type EpochObserver interface {
	// RecordEpoch stores an epoch result and reports whether training
	// should stop early.
	RecordEpoch(r EpochResult) bool
}

// ProgressCounter defines the interface for shared progress counters
type ProgressCounter interface {
	// Get returns the current count
	Get() int64

	// Increment adds one to the count
	Increment()

	// Add adds n to the count
	Add(n int)
}

// Job defines a unit of pipeline work started from the command line.
// The job should stop when the context is cancelled.
type Job interface {
	Run(ctx context.Context) error
}
