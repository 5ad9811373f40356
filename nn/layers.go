package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

func vec(x []float64) *mat.VecDense {
	return mat.NewVecDense(len(x), x)
}

// mulVec returns w·x.
func mulVec(w *mat.Dense, x []float64) []float64 {
	r, _ := w.Dims()
	out := mat.NewVecDense(r, nil)
	out.MulVec(w, vec(x))
	return out.RawVector().Data
}

// mulVecT returns wᵀ·y.
func mulVecT(w *mat.Dense, y []float64) []float64 {
	_, c := w.Dims()
	out := mat.NewVecDense(c, nil)
	out.MulVec(w.T(), vec(y))
	return out.RawVector().Data
}

// accumOuter adds dy·xᵀ to g.
func accumOuter(g *mat.Dense, dy, x []float64) {
	g.RankOne(g, 1, vec(dy), vec(x))
}

func addTo(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func relu(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

// reluBackward masks dy where the pre-activation z was not positive.
func reluBackward(z, dy []float64) []float64 {
	out := make([]float64, len(dy))
	for i, v := range z {
		if v > 0 {
			out[i] = dy[i]
		}
	}
	return out
}

// dropoutMask returns inverted-dropout multipliers, or nil when dropout is
// disabled or rng is nil (evaluation).
func dropoutMask(n int, p float64, rng *rand.Rand) []float64 {
	if p <= 0 || rng == nil {
		return nil
	}
	mask := make([]float64, n)
	keep := 1 / (1 - p)
	for i := range mask {
		if rng.Float64() >= p {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(x, mask []float64) []float64 {
	if mask == nil {
		return x
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * mask[i]
	}
	return out
}

func softmax(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// crossEntropy returns -log p[label] and its gradient w.r.t. the logits.
func crossEntropy(probs []float64, label int) (float64, []float64) {
	d := make([]float64, len(probs))
	copy(d, probs)
	d[label]--
	return -math.Log(math.Max(probs[label], 1e-12)), d
}

// dense is a fully connected layer y = W·x + b.
type dense struct {
	w, b *Param
}

func newDense(name string, in, out int, rng *rand.Rand) *dense {
	bound := 1 / math.Sqrt(float64(in))
	return &dense{
		w: newParam(name+".weight", out, in).uniform(rng, bound),
		b: newParam(name+".bias", out, 1).uniform(rng, bound),
	}
}

func (d *dense) params() []*Param { return []*Param{d.w, d.b} }

func (d *dense) forward(x []float64) []float64 {
	y := mulVec(d.w.W, x)
	addTo(y, d.b.weights())
	return y
}

// backward accumulates gradients for input x and returns dL/dx.
func (d *dense) backward(x, dy []float64) []float64 {
	accumOuter(d.w.G, dy, x)
	addTo(d.b.grads(), dy)
	return mulVecT(d.w.W, dy)
}

// conv1d is a causal dilated convolution over time. Output t only sees
// inputs t, t-dil, ..., t-(k-1)·dil; earlier positions are zero padded.
type conv1d struct {
	w, b          *Param
	in, out, k, d int
}

func newConv1d(name string, in, out, kernel, dilation int, rng *rand.Rand) *conv1d {
	bound := 1 / math.Sqrt(float64(in*kernel))
	return &conv1d{
		w:   newParam(name+".weight", out, in*kernel).uniform(rng, bound),
		b:   newParam(name+".bias", out, 1).uniform(rng, bound),
		in:  in,
		out: out,
		k:   kernel,
		d:   dilation,
	}
}

func (c *conv1d) params() []*Param { return []*Param{c.w, c.b} }

// offset is how far back tap j of the kernel looks.
func (c *conv1d) offset(j int) int {
	return (c.k - 1 - j) * c.d
}

// column gathers the receptive field of step t into a single vector.
func (c *conv1d) column(x [][]float64, t int) []float64 {
	col := make([]float64, c.k*c.in)
	for j := 0; j < c.k; j++ {
		src := t - c.offset(j)
		if src < 0 {
			continue
		}
		copy(col[j*c.in:(j+1)*c.in], x[src])
	}
	return col
}

func (c *conv1d) forward(x [][]float64) (y, cols [][]float64) {
	y = make([][]float64, len(x))
	cols = make([][]float64, len(x))
	bias := c.b.weights()
	for t := range x {
		cols[t] = c.column(x, t)
		y[t] = mulVec(c.w.W, cols[t])
		addTo(y[t], bias)
	}
	return y, cols
}

func (c *conv1d) backward(dy, cols [][]float64) [][]float64 {
	dx := make([][]float64, len(dy))
	for t := range dx {
		dx[t] = make([]float64, c.in)
	}
	bg := c.b.grads()
	for t := range dy {
		accumOuter(c.w.G, dy[t], cols[t])
		addTo(bg, dy[t])
		dcol := mulVecT(c.w.W, dy[t])
		for j := 0; j < c.k; j++ {
			src := t - c.offset(j)
			if src < 0 {
				continue
			}
			addTo(dx[src], dcol[j*c.in:(j+1)*c.in])
		}
	}
	return dx
}
