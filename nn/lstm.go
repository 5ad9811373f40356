package nn

import (
	"math"
	"math/rand"
)

// FPLSTM is a single-layer LSTM whose last hidden state feeds two fully
// connected layers.
type FPLSTM struct {
	hidden  int
	dropout float64

	// Gate rows are ordered input, forget, cell, output.
	wx, wh, b *Param
	fc1, fc2  *dense
}

// NewFPLSTM creates a network for sequences of inputs features.
func NewFPLSTM(lstmHidden, fc1Hidden, inputs, classes int, dropout float64, seed int64) *FPLSTM {
	rng := rand.New(rand.NewSource(seed))
	bound := 1 / math.Sqrt(float64(lstmHidden))
	m := &FPLSTM{
		hidden:  lstmHidden,
		dropout: dropout,
		wx:      newParam("lstm.weight_ih", 4*lstmHidden, inputs).uniform(rng, bound),
		wh:      newParam("lstm.weight_hh", 4*lstmHidden, lstmHidden).uniform(rng, bound),
		b:       newParam("lstm.bias", 4*lstmHidden, 1).uniform(rng, bound),
	}
	bias := m.b.weights()
	for k := lstmHidden; k < 2*lstmHidden; k++ {
		bias[k] = 1
	}
	m.fc1 = newDense("fc1", lstmHidden, fc1Hidden, rng)
	m.fc2 = newDense("fc2", fc1Hidden, classes, rng)
	return m
}

// Params implements Model.
func (m *FPLSTM) Params() []*Param {
	ps := []*Param{m.wx, m.wh, m.b}
	ps = append(ps, m.fc1.params()...)
	return append(ps, m.fc2.params()...)
}

type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	c, tc           []float64
}

type lstmTrace struct {
	steps  []lstmStep
	mask   []float64
	hd     []float64
	z1     []float64
	a1     []float64
	logits []float64
}

func (m *FPLSTM) forward(seq [][]float64, rng *rand.Rand) *lstmTrace {
	H := m.hidden
	tr := &lstmTrace{steps: make([]lstmStep, len(seq))}
	h := make([]float64, H)
	c := make([]float64, H)
	bias := m.b.weights()
	for t, x := range seq {
		zx := mulVec(m.wx.W, x)
		zh := mulVec(m.wh.W, h)
		st := lstmStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H),
			g: make([]float64, H), o: make([]float64, H),
			c: make([]float64, H), tc: make([]float64, H),
		}
		hNext := make([]float64, H)
		for k := 0; k < H; k++ {
			st.i[k] = sigmoid(zx[k] + zh[k] + bias[k])
			st.f[k] = sigmoid(zx[H+k] + zh[H+k] + bias[H+k])
			st.g[k] = math.Tanh(zx[2*H+k] + zh[2*H+k] + bias[2*H+k])
			st.o[k] = sigmoid(zx[3*H+k] + zh[3*H+k] + bias[3*H+k])
			st.c[k] = st.f[k]*c[k] + st.i[k]*st.g[k]
			st.tc[k] = math.Tanh(st.c[k])
			hNext[k] = st.o[k] * st.tc[k]
		}
		tr.steps[t] = st
		h, c = hNext, st.c
	}

	tr.mask = dropoutMask(H, m.dropout, rng)
	tr.hd = applyMask(h, tr.mask)
	tr.z1 = m.fc1.forward(tr.hd)
	tr.a1 = relu(tr.z1)
	tr.logits = m.fc2.forward(tr.a1)
	return tr
}

// Probs implements Model.
func (m *FPLSTM) Probs(seq [][]float64) []float64 {
	return softmax(m.forward(seq, nil).logits)
}

// Step implements Model. Gradients flow back through time from the last
// hidden state.
func (m *FPLSTM) Step(seq [][]float64, label int, rng *rand.Rand) float64 {
	tr := m.forward(seq, rng)
	loss, dlogits := crossEntropy(softmax(tr.logits), label)

	da1 := m.fc2.backward(tr.a1, dlogits)
	dz1 := reluBackward(tr.z1, da1)
	dh := applyMask(m.fc1.backward(tr.hd, dz1), tr.mask)

	H := m.hidden
	dc := make([]float64, H)
	dz := make([]float64, 4*H)
	bg := m.b.grads()
	for t := len(tr.steps) - 1; t >= 0; t-- {
		st := tr.steps[t]
		for k := 0; k < H; k++ {
			do := dh[k] * st.tc[k]
			dck := dc[k] + dh[k]*st.o[k]*(1-st.tc[k]*st.tc[k])
			di := dck * st.g[k]
			dg := dck * st.i[k]
			df := dck * st.cPrev[k]
			dc[k] = dck * st.f[k]

			dz[k] = di * st.i[k] * (1 - st.i[k])
			dz[H+k] = df * st.f[k] * (1 - st.f[k])
			dz[2*H+k] = dg * (1 - st.g[k]*st.g[k])
			dz[3*H+k] = do * st.o[k] * (1 - st.o[k])
		}
		accumOuter(m.wx.G, dz, st.x)
		accumOuter(m.wh.G, dz, st.hPrev)
		addTo(bg, dz)
		dh = mulVecT(m.wh.W, dz)
	}
	return loss
}
