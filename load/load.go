package load

import (
	"sync/atomic"

	"hddpredict/interfaces"
)

// Ensure Counter implements ProgressCounter interface
var _ interfaces.ProgressCounter = (*Counter)(nil)

// Counter is a thread-safe tally shared by extraction workers.
type Counter struct {
	value int64
}

// NewCounter creates a new Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Increment increments the counter by 1.
func (c *Counter) Increment() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds n to the counter.
func (c *Counter) Add(n int) {
	atomic.AddInt64(&c.value, int64(n))
}

// Get returns the current value of the counter.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// Progress groups the counters reported at the end of an extraction.
type Progress struct {
	FilesRead    Counter
	FilesSkipped Counter
	RowsMatched  Counter
	RowsKept     Counter
}
