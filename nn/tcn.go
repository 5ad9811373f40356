package nn

import (
	"fmt"
	"math/rand"
)

// temporalBlock is two causal convolutions with ReLU and dropout, added to a
// residual connection. The residual goes through a 1x1 convolution when the
// channel count changes.
type temporalBlock struct {
	conv1, conv2 *conv1d
	down         *conv1d
	dropout      float64
}

type blockTrace struct {
	x            [][]float64
	cols1, cols2 [][]float64
	colsDown     [][]float64
	y1, y2       [][]float64
	m1, m2       [][]float64
	sum          [][]float64
	out          [][]float64
}

func newTemporalBlock(name string, in, out, kernel, dilation int, dropout float64, rng *rand.Rand) *temporalBlock {
	b := &temporalBlock{
		conv1:   newConv1d(name+".conv1", in, out, kernel, dilation, rng),
		conv2:   newConv1d(name+".conv2", out, out, kernel, dilation, rng),
		dropout: dropout,
	}
	if in != out {
		b.down = newConv1d(name+".downsample", in, out, 1, 1, rng)
	}
	return b
}

func (b *temporalBlock) params() []*Param {
	ps := append(b.conv1.params(), b.conv2.params()...)
	if b.down != nil {
		ps = append(ps, b.down.params()...)
	}
	return ps
}

func (b *temporalBlock) forward(x [][]float64, rng *rand.Rand) *blockTrace {
	tr := &blockTrace{x: x}
	tr.y1, tr.cols1 = b.conv1.forward(x)
	h1 := make([][]float64, len(x))
	tr.m1 = make([][]float64, len(x))
	for t := range x {
		tr.m1[t] = dropoutMask(b.conv1.out, b.dropout, rng)
		h1[t] = applyMask(relu(tr.y1[t]), tr.m1[t])
	}

	tr.y2, tr.cols2 = b.conv2.forward(h1)
	res := x
	if b.down != nil {
		res, tr.colsDown = b.down.forward(x)
	}
	tr.m2 = make([][]float64, len(x))
	tr.sum = make([][]float64, len(x))
	tr.out = make([][]float64, len(x))
	for t := range x {
		tr.m2[t] = dropoutMask(b.conv2.out, b.dropout, rng)
		tr.sum[t] = applyMask(relu(tr.y2[t]), tr.m2[t])
		addTo(tr.sum[t], res[t])
		tr.out[t] = relu(tr.sum[t])
	}
	return tr
}

func (b *temporalBlock) backward(tr *blockTrace, dout [][]float64) [][]float64 {
	dsum := make([][]float64, len(dout))
	dy2 := make([][]float64, len(dout))
	for t := range dout {
		dsum[t] = reluBackward(tr.sum[t], dout[t])
		dy2[t] = reluBackward(tr.y2[t], applyMask(dsum[t], tr.m2[t]))
	}

	dh1 := b.conv2.backward(dy2, tr.cols2)
	dy1 := make([][]float64, len(dh1))
	for t := range dh1 {
		dy1[t] = reluBackward(tr.y1[t], applyMask(dh1[t], tr.m1[t]))
	}
	dx := b.conv1.backward(dy1, tr.cols1)

	dres := dsum
	if b.down != nil {
		dres = b.down.backward(dsum, tr.colsDown)
	}
	for t := range dx {
		addTo(dx[t], dres[t])
	}
	return dx
}

// TCN is a temporal convolutional network: stacked residual blocks with
// dilation 1, 2, 4, ... followed by a linear head on the last time step.
type TCN struct {
	blocks []*temporalBlock
	head   *dense
}

// NewTCN creates a network with one block per entry in channels.
func NewTCN(inputs int, channels []int, kernel int, dropout float64, classes int, seed int64) (*TCN, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("tcn needs at least one block")
	}
	if kernel < 1 {
		return nil, fmt.Errorf("invalid kernel size %d", kernel)
	}
	rng := rand.New(rand.NewSource(seed))
	m := &TCN{}
	in := inputs
	for i, out := range channels {
		name := fmt.Sprintf("tcn.block%d", i)
		m.blocks = append(m.blocks, newTemporalBlock(name, in, out, kernel, 1<<i, dropout, rng))
		in = out
	}
	m.head = newDense("linear", in, classes, rng)
	return m, nil
}

// Params implements Model.
func (m *TCN) Params() []*Param {
	var ps []*Param
	for _, b := range m.blocks {
		ps = append(ps, b.params()...)
	}
	return append(ps, m.head.params()...)
}

func (m *TCN) forward(seq [][]float64, rng *rand.Rand) ([]*blockTrace, []float64) {
	traces := make([]*blockTrace, len(m.blocks))
	x := seq
	for i, b := range m.blocks {
		traces[i] = b.forward(x, rng)
		x = traces[i].out
	}
	return traces, m.head.forward(x[len(x)-1])
}

// Probs implements Model.
func (m *TCN) Probs(seq [][]float64) []float64 {
	_, logits := m.forward(seq, nil)
	return softmax(logits)
}

// Step implements Model.
func (m *TCN) Step(seq [][]float64, label int, rng *rand.Rand) float64 {
	traces, logits := m.forward(seq, rng)
	loss, dlogits := crossEntropy(softmax(logits), label)

	last := traces[len(traces)-1].out
	dx := make([][]float64, len(last))
	for t := range dx {
		dx[t] = make([]float64, len(last[t]))
	}
	dx[len(dx)-1] = m.head.backward(last[len(last)-1], dlogits)
	for i := len(m.blocks) - 1; i >= 0; i-- {
		dx = m.blocks[i].backward(traces[i], dx)
	}
	return loss
}
