package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeSkipsNaN(t *testing.T) {
	s, err := Summarize([]float64{4, math.NaN(), 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.StdDev, 1e-12)
	assert.InDelta(t, 2.5, s.P50, 1e-12)

	_, err = Summarize([]float64{math.NaN()})
	assert.ErrorIs(t, err, ErrNoValues)
}

func TestPointBiserial(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1}
	assert.InDelta(t, 1.0, PointBiserial([]float64{0, 0, 0, 1, 1}, labels), 1e-9)
	assert.InDelta(t, -1.0, PointBiserial([]float64{5, 5, 5, 2, 2}, labels), 1e-9)
	assert.Equal(t, 0.0, PointBiserial([]float64{7, 7, 7, 7, 7}, labels))
	assert.Equal(t, 0.0, PointBiserial([]float64{math.NaN(), 1, math.NaN(), math.NaN(), math.NaN()}, labels))
}

func TestScaler(t *testing.T) {
	s := FitScaler([][]float64{
		{0, 10, 3},
		{5, 20, 3},
		{10, math.NaN(), 3},
	})
	require.Equal(t, 3, s.Width())

	row := []float64{5, 15, 3}
	s.Transform(row)
	assert.Equal(t, []float64{0.5, 0.5, 0}, row)

	// Test rows may fall outside the training range.
	out := []float64{20, -10, math.NaN()}
	s.Transform(out)
	assert.Equal(t, []float64{2, -2, 0}, out)
}
