package nn

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"hddpredict/dataset"
	"hddpredict/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func randomSeq(rng *rand.Rand, steps, features int) [][]float64 {
	seq := make([][]float64, steps)
	for t := range seq {
		seq[t] = make([]float64, features)
		for j := range seq[t] {
			seq[t][j] = rng.Float64()
		}
	}
	return seq
}

func lossOf(m Model, seq [][]float64, label int) float64 {
	return -math.Log(m.Probs(seq)[label])
}

// checkGradients compares the backward pass with central differences.
func checkGradients(t *testing.T, m Model, seq [][]float64, label int) {
	t.Helper()
	const eps = 1e-5
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
	m.Step(seq, label, nil)

	for _, p := range m.Params() {
		w, g := p.weights(), p.grads()
		for i := range w {
			orig := w[i]
			w[i] = orig + eps
			plus := lossOf(m, seq, label)
			w[i] = orig - eps
			minus := lossOf(m, seq, label)
			w[i] = orig

			num := (plus - minus) / (2 * eps)
			assert.InDelta(t, num, g[i], 1e-6+1e-4*math.Abs(num), "%s[%d]", p.Name, i)
		}
	}
}

func TestFPLSTMGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewFPLSTM(3, 4, 2, 2, 0, 7)
	checkGradients(t, m, randomSeq(rng, 4, 2), 1)
	checkGradients(t, m, randomSeq(rng, 1, 2), 0)
}

func TestTCNGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m, err := NewTCN(2, []int{3, 2}, 2, 0, 2, 9)
	require.NoError(t, err)
	checkGradients(t, m, randomSeq(rng, 5, 2), 1)

	same, err := NewTCN(2, []int{2, 2}, 3, 0, 2, 9)
	require.NoError(t, err)
	checkGradients(t, same, randomSeq(rng, 6, 2), 0)
}

func TestNewTCNRejectsBadShape(t *testing.T) {
	_, err := NewTCN(2, nil, 3, 0, 2, 1)
	assert.Error(t, err)
	_, err = NewTCN(2, []int{4}, 0, 0, 2, 1)
	assert.Error(t, err)
}

func TestConvIsCausal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := newConv1d("c", 2, 3, 3, 2, rng)
	x := randomSeq(rng, 6, 2)
	before, _ := c.forward(x)

	x[5] = []float64{9, -9}
	after, _ := c.forward(x)
	for step := 0; step < 5; step++ {
		assert.Equal(t, before[step], after[step])
	}
	assert.NotEqual(t, before[5], after[5])
}

func TestDropoutOnlyWhenTraining(t *testing.T) {
	assert.Nil(t, dropoutMask(4, 0.5, nil))
	assert.Nil(t, dropoutMask(4, 0, rand.New(rand.NewSource(1))))

	mask := dropoutMask(1000, 0.5, rand.New(rand.NewSource(1)))
	kept := 0
	for _, v := range mask {
		if v != 0 {
			assert.Equal(t, 2.0, v)
			kept++
		}
	}
	assert.InDelta(t, 500, kept, 60)

	m := NewFPLSTM(4, 3, 2, 2, 0.5, 1)
	seq := randomSeq(rand.New(rand.NewSource(4)), 3, 2)
	assert.Equal(t, m.Probs(seq), m.Probs(seq))
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	p := newParam("w", 1, 1)
	opt := NewAdam(0.01)
	for i := 0; i < 2000; i++ {
		p.grads()[0] = 2 * (p.weights()[0] - 3)
		opt.Step([]*Param{p}, 1)
	}
	assert.InDelta(t, 3.0, p.weights()[0], 0.05)
	assert.Zero(t, p.grads()[0])
}

// toySet builds sequences whose values sit near 0.8 for failing drives and
// near 0.2 for healthy ones.
func toySet(n int, seed int64) dataset.Set {
	rng := rand.New(rand.NewSource(seed))
	set := make(dataset.Set, n)
	for i := range set {
		label := i % 2
		centre := 0.2 + 0.6*float64(label)
		seq := make([][]float64, 5)
		for step := range seq {
			seq[step] = []float64{centre + 0.1*(rng.Float64()-0.5), rng.Float64()}
		}
		set[i] = dataset.Sample{Seq: seq, Label: label}
	}
	return set
}

type stopAfter struct {
	epochs  int
	results []interfaces.EpochResult
}

func (s *stopAfter) RecordEpoch(r interfaces.EpochResult) bool {
	s.results = append(s.results, r)
	return len(s.results) >= s.epochs
}

func TestTrainLearnsToySequences(t *testing.T) {
	train, test := toySet(80, 1), toySet(40, 2)
	cfg := TrainConfig{Epochs: 30, BatchSize: 8, LR: 0.01, Seed: 5, Metrics: []string{"F1", "FAR"}}

	lstm := NewFPLSTM(6, 4, 2, 2, 0.1, 1)
	res, err := Train(context.Background(), lstm, train, test, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 30, res.Epochs)
	assert.GreaterOrEqual(t, res.Report.Values["F1"], 0.9)

	tcn, err := NewTCN(2, []int{8, 8}, 2, 0.1, 2, 1)
	require.NoError(t, err)
	res, err = Train(context.Background(), tcn, train, test, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Report.Values["F1"], 0.9)
	assert.Len(t, res.Predictions, len(test))
}

func TestTrainStopsWhenObserverAsks(t *testing.T) {
	obs := &stopAfter{epochs: 2}
	cfg := TrainConfig{Epochs: 10, BatchSize: 16, LR: 0.01, Metrics: []string{"recall"}}
	res, err := Train(context.Background(), NewFPLSTM(3, 2, 2, 2, 0, 1), toySet(20, 1), toySet(10, 2), cfg, obs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Epochs)
	require.Len(t, obs.results, 2)
	assert.Equal(t, 2, obs.results[1].Epoch)
	assert.Greater(t, obs.results[0].TrainLoss, 0.0)
	assert.Greater(t, obs.results[0].Duration, time.Duration(0))
	assert.Contains(t, obs.results[0].Metrics, "recall")
}

func TestTrainErrors(t *testing.T) {
	m := NewFPLSTM(3, 2, 2, 2, 0, 1)
	cfg := TrainConfig{Epochs: 1, BatchSize: 4, LR: 0.01}

	_, err := Train(context.Background(), m, nil, nil, cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	_, err = Train(context.Background(), m, toySet(4, 1), nil, TrainConfig{}, nil, zap.NewNop())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Train(ctx, m, toySet(4, 1), nil, cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)

	cfg.Metrics = []string{"accuracy"}
	_, err = Train(context.Background(), m, toySet(4, 1), toySet(2, 2), cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
