package forest

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// separable returns points labelled 1 when the first feature exceeds 0.5;
// the other features are noise.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		x[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		if x[i][0] > 0.5 {
			y[i] = 1
		}
	}
	return x, y
}

func accuracy(pred, y []int) float64 {
	ok := 0
	for i := range y {
		if pred[i] == y[i] {
			ok++
		}
	}
	return float64(ok) / float64(len(y))
}

func TestForestLearnsThreshold(t *testing.T) {
	x, y := separable(400, 1)
	f := New(Config{NEstimators: 30, MinSamplesSplit: 10, RandomState: 3, Workers: 4})
	require.NoError(t, f.Fit(context.Background(), x, y))

	xt, yt := separable(200, 2)
	assert.GreaterOrEqual(t, accuracy(f.Predict(xt), yt), 0.9)

	probs := f.PredictProba([]float64{0.95, 0.5, 0.5, 0.5})
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], 0.5)
}

func TestForestIsDeterministic(t *testing.T) {
	x, y := separable(200, 5)
	xt, _ := separable(100, 6)

	a := New(Config{NEstimators: 8, MinSamplesSplit: 4, RandomState: 11, Workers: 1})
	b := New(Config{NEstimators: 8, MinSamplesSplit: 4, RandomState: 11, Workers: 8})
	require.NoError(t, a.Fit(context.Background(), x, y))
	require.NoError(t, b.Fit(context.Background(), x, y))
	assert.Equal(t, a.Predict(xt), b.Predict(xt))
}

func TestForestSingleClassAndDepth(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	f := New(Config{NEstimators: 2, MaxDepth: 1})
	require.NoError(t, f.Fit(context.Background(), x, []int{0, 0, 0}))
	assert.Equal(t, []int{0, 0}, f.Predict([][]float64{{0}, {10}}))
}

func TestForestRejectsBadInput(t *testing.T) {
	f := New(Config{})
	assert.Error(t, f.Fit(context.Background(), nil, nil))
	assert.Error(t, f.Fit(context.Background(), [][]float64{{1}}, []int{0, 1}))
	assert.Error(t, f.Fit(context.Background(), [][]float64{{1}, {1, 2}}, []int{0, 1}))
	assert.Error(t, f.Fit(context.Background(), [][]float64{{1}}, []int{-1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, y := separable(20, 1)
	assert.ErrorIs(t, f.Fit(ctx, x, y), context.Canceled)
}
