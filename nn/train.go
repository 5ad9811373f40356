package nn

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"hddpredict/dataset"
	"hddpredict/interfaces"
	"hddpredict/metrics"

	"go.uber.org/zap"
)

// Model is a sequence classifier trained one sample at a time.
type Model interface {
	// Params returns every trainable parameter.
	Params() []*Param
	// Step runs a forward and backward pass on one sample, adds the
	// gradients to the parameters and returns the sample loss. rng drives
	// dropout.
	Step(seq [][]float64, label int, rng *rand.Rand) float64
	// Probs returns class probabilities with dropout disabled.
	Probs(seq [][]float64) []float64
}

// TrainConfig controls the optimisation loop.
type TrainConfig struct {
	Epochs    int
	BatchSize int
	LR        float64
	Seed      int64
	Metrics   []string
}

// Result is the outcome of Train, evaluated on the test set after the last
// epoch that ran.
type Result struct {
	Epochs      int
	Predictions []int
	Report      *metrics.Result
}

// Train fits model on train with mini-batch Adam. After each epoch the test
// set is evaluated and the epoch is reported to obs, which may stop
// training early. obs may be nil.
func Train(ctx context.Context, model Model, train, test dataset.Set, cfg TrainConfig, obs interfaces.EpochObserver, logger *zap.Logger) (*Result, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("train set: %w", dataset.ErrEmptyDataset)
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 {
		return nil, fmt.Errorf("epochs and batch size must be positive, got %d and %d", cfg.Epochs, cfg.BatchSize)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := NewAdam(cfg.LR)
	params := model.Params()
	res := &Result{}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		order := rng.Perm(len(train))
		total := 0.0
		for lo := 0; lo < len(order); lo += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			hi := min(lo+cfg.BatchSize, len(order))
			for _, i := range order[lo:hi] {
				total += model.Step(train[i].Seq, train[i].Label, rng)
			}
			opt.Step(params, 1/float64(hi-lo))
		}

		preds, testLoss := Evaluate(model, test)
		report, err := metrics.Report(test.Labels(), preds, cfg.Metrics)
		if err != nil {
			return nil, err
		}
		res.Epochs, res.Predictions, res.Report = epoch, preds, report

		r := interfaces.EpochResult{
			Epoch:     epoch,
			TrainLoss: total / float64(len(train)),
			TestLoss:  testLoss,
			Metrics:   report.Values,
			Duration:  time.Since(start),
		}
		logger.Debug("Epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", r.TrainLoss),
			zap.Float64("test_loss", r.TestLoss),
			zap.Duration("duration", r.Duration))
		if obs != nil && obs.RecordEpoch(r) {
			logger.Info("Early stopping", zap.Int("epoch", epoch))
			break
		}
	}
	return res, nil
}

// Evaluate returns the predicted class of every sample and the mean
// cross-entropy over the set.
func Evaluate(model Model, set dataset.Set) ([]int, float64) {
	preds := make([]int, len(set))
	if len(set) == 0 {
		return preds, 0
	}
	loss := 0.0
	for i, smp := range set {
		probs := model.Probs(smp.Seq)
		preds[i] = argmax(probs)
		loss -= math.Log(math.Max(probs[smp.Label], 1e-12))
	}
	return preds, loss / float64(len(set))
}

func argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
