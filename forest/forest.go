package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Config holds the forest hyper-parameters.
type Config struct {
	NEstimators     int
	MinSamplesSplit int
	// MaxDepth of 0 grows trees until leaves are pure or too small to split.
	MaxDepth int
	// MaxFeatures tried per split; 0 means sqrt of the feature count.
	MaxFeatures int
	RandomState int64
	Workers     int
}

// Forest is a bagged ensemble of CART classification trees.
type Forest struct {
	cfg      Config
	trees    []*node
	classes  int
	features int
}

// New creates an untrained Forest.
func New(cfg Config) *Forest {
	if cfg.NEstimators < 1 {
		cfg.NEstimators = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Forest{cfg: cfg}
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	// probs is set on leaves only.
	probs []float64
}

func (n *node) leaf() bool { return n.probs != nil }

// Fit grows every tree on its own bootstrap sample. Trees are built in
// parallel; tree i draws from a generator seeded with RandomState+i so the
// result does not depend on scheduling.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("no training samples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("got %d samples and %d labels", len(x), len(y))
	}
	f.features = len(x[0])
	f.classes = 0
	for i, label := range y {
		if label < 0 {
			return fmt.Errorf("negative label %d at %d", label, i)
		}
		if len(x[i]) != f.features {
			return fmt.Errorf("sample %d has %d features, expected %d", i, len(x[i]), f.features)
		}
		if label+1 > f.classes {
			f.classes = label + 1
		}
	}

	trees := make([]*node, f.cfg.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &builder{
				cfg:     f.cfg,
				x:       x,
				y:       y,
				classes: f.classes,
				mtry:    f.mtry(),
				rng:     rand.New(rand.NewSource(f.cfg.RandomState + int64(i))),
			}
			sample := make([]int, len(x))
			for j := range sample {
				sample[j] = b.rng.Intn(len(x))
			}
			trees[i] = b.grow(sample, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.trees = trees
	return nil
}

func (f *Forest) mtry() int {
	if f.cfg.MaxFeatures > 0 && f.cfg.MaxFeatures <= f.features {
		return f.cfg.MaxFeatures
	}
	m := int(math.Sqrt(float64(f.features)))
	if m < 1 {
		m = 1
	}
	return m
}

// PredictProba averages the leaf class distributions of all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	out := make([]float64, f.classes)
	for _, t := range f.trees {
		n := t
		for !n.leaf() {
			if x[n.feature] <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		for c, p := range n.probs {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.trees))
	}
	return out
}

// Predict returns the most probable class of every sample.
func (f *Forest) Predict(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		probs := f.PredictProba(row)
		best := 0
		for c, p := range probs {
			if p > probs[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out
}

type builder struct {
	cfg     Config
	x       [][]float64
	y       []int
	classes int
	mtry    int
	rng     *rand.Rand
}

func (b *builder) counts(sample []int) []float64 {
	c := make([]float64, b.classes)
	for _, i := range sample {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

func (b *builder) makeLeaf(counts []float64, total float64) *node {
	probs := make([]float64, len(counts))
	for i, c := range counts {
		probs[i] = c / total
	}
	return &node{probs: probs}
}

func (b *builder) grow(sample []int, depth int) *node {
	counts := b.counts(sample)
	total := float64(len(sample))
	impurity := gini(counts, total)
	if len(sample) < b.cfg.MinSamplesSplit || impurity == 0 ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return b.makeLeaf(counts, total)
	}

	feature, threshold, ok := b.bestSplit(sample, impurity)
	if !ok {
		return b.makeLeaf(counts, total)
	}

	var left, right []int
	for _, i := range sample {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.makeLeaf(counts, total)
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit scans mtry random features and returns the threshold with the
// largest Gini decrease.
func (b *builder) bestSplit(sample []int, parent float64) (int, float64, bool) {
	features := b.rng.Perm(len(b.x[0]))[:b.mtry]
	total := float64(len(sample))

	bestFeature, bestThreshold := -1, 0.0
	bestGain := 1e-12
	order := make([]int, len(sample))
	for _, feat := range features {
		copy(order, sample)
		sort.Slice(order, func(i, j int) bool { return b.x[order[i]][feat] < b.x[order[j]][feat] })

		left := make([]float64, b.classes)
		right := b.counts(order)
		for k := 0; k < len(order)-1; k++ {
			c := b.y[order[k]]
			left[c]++
			right[c]--
			v, next := b.x[order[k]][feat], b.x[order[k+1]][feat]
			if v == next {
				continue
			}
			nl := float64(k + 1)
			nr := total - nl
			gain := parent - (nl/total)*gini(left, nl) - (nr/total)*gini(right, nr)
			if gain > bestGain {
				bestGain = gain
				bestFeature = feat
				bestThreshold = v + (next-v)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
