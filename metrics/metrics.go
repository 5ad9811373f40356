package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// ErrUnknownMetric is returned for a metric name Report does not know.
var ErrUnknownMetric = errors.New("unknown metric")

// Confusion counts binary predictions, with 1 meaning "will fail".
type Confusion struct {
	TP, FP, TN, FN int
}

// NewConfusion tallies predictions against the true labels.
func NewConfusion(yTrue, yPred []int) (Confusion, error) {
	var c Confusion
	if len(yTrue) != len(yPred) {
		return c, fmt.Errorf("label count %d does not match prediction count %d", len(yTrue), len(yPred))
	}
	for i, y := range yTrue {
		switch {
		case y == 1 && yPred[i] == 1:
			c.TP++
		case y == 1:
			c.FN++
		case yPred[i] == 1:
			c.FP++
		default:
			c.TN++
		}
	}
	return c, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Recall is the share of failing samples that were caught.
func (c Confusion) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// Precision is the share of alarms that were real failures.
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// FDR is the fault detection rate, the same quantity as recall.
func (c Confusion) FDR() float64 { return c.Recall() }

// FAR is the false alarm rate among healthy samples.
func (c Confusion) FAR() float64 { return ratio(c.FP, c.FP+c.TN) }

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Result holds the requested metrics in request order.
type Result struct {
	Names     []string
	Values    map[string]float64
	Confusion Confusion
}

// Fields renders the result for structured logging.
func (r *Result) Fields() []zap.Field {
	fields := make([]zap.Field, 0, len(r.Names)+4)
	for _, n := range r.Names {
		fields = append(fields, zap.Float64(n, r.Values[n]))
	}
	return append(fields,
		zap.Int("tp", r.Confusion.TP),
		zap.Int("fp", r.Confusion.FP),
		zap.Int("tn", r.Confusion.TN),
		zap.Int("fn", r.Confusion.FN))
}

// Report computes the named metrics. Accepted names are RMSE, MAE, FDR, FAR,
// F1, recall and precision.
func Report(yTrue, yPred []int, names []string) (*Result, error) {
	c, err := NewConfusion(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	res := &Result{Names: names, Values: make(map[string]float64, len(names)), Confusion: c}
	for _, n := range names {
		var v float64
		switch n {
		case "RMSE":
			v = rmse(yTrue, yPred)
		case "MAE":
			v = mae(yTrue, yPred)
		case "FDR":
			v = c.FDR()
		case "FAR":
			v = c.FAR()
		case "F1":
			v = c.F1()
		case "recall":
			v = c.Recall()
		case "precision":
			v = c.Precision()
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, n)
		}
		res.Values[n] = v
	}
	return res, nil
}

func errorsOf(yTrue, yPred []int) []float64 {
	out := make([]float64, len(yTrue))
	for i := range yTrue {
		out[i] = float64(yTrue[i] - yPred[i])
	}
	return out
}

func rmse(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sq := errorsOf(yTrue, yPred)
	for i, e := range sq {
		sq[i] = e * e
	}
	m, err := stats.Mean(sq)
	if err != nil {
		return 0
	}
	return math.Sqrt(m)
}

func mae(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	abs := errorsOf(yTrue, yPred)
	for i, e := range abs {
		abs[i] = math.Abs(e)
	}
	m, err := stats.Mean(abs)
	if err != nil {
		return 0
	}
	return m
}
