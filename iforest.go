package main

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	errEmptyTrainingSet = errors.New("empty training set")
	errBadContamination = errors.New("contamination must be in (0, 0.5]")
	errNoTrees          = errors.New("forest needs at least one tree")
)

const (
	maxSubsample = 256
	eulerGamma   = 0.5772156649015329
)

type itreeNode struct {
	split       float64
	left, right *itreeNode
	size        int
}

func (n *itreeNode) leaf() bool {
	return n.left == nil
}

// isolationForest is a one-dimensional isolation forest. It is immutable
// once fitted and safe for concurrent use.
type isolationForest struct {
	trees     []*itreeNode
	subsample int
	threshold float64
}

// trainAnomalyModel draws the synthetic training set and fits the forest on it.
// The same seeded source feeds both steps so a given config always produces
// the same model.
func trainAnomalyModel(cfg ModelConfig) (*isolationForest, []float64, error) {
	src := rand.NewSource(cfg.Seed)

	normal := distuv.Normal{Mu: cfg.Mean, Sigma: cfg.StdDev, Src: src}
	data := make([]float64, cfg.Samples)
	for i := range data {
		data[i] = normal.Rand()
	}

	forest, err := fitIsolationForest(data, cfg.Trees, cfg.Contamination, rand.New(src))
	if err != nil {
		return nil, nil, fmt.Errorf("fit isolation forest: %w", err)
	}

	return forest, data, nil
}

func fitIsolationForest(data []float64, trees int, contamination float64, rng *rand.Rand) (*isolationForest, error) {
	if len(data) == 0 {
		return nil, errEmptyTrainingSet
	}
	if contamination <= 0 || contamination > 0.5 {
		return nil, errBadContamination
	}
	if trees <= 0 {
		return nil, errNoTrees
	}

	psi := len(data)
	if psi > maxSubsample {
		psi = maxSubsample
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	f := &isolationForest{
		trees:     make([]*itreeNode, trees),
		subsample: psi,
	}

	sample := make([]float64, psi)
	for t := range f.trees {
		for i, j := range rng.Perm(len(data))[:psi] {
			sample[i] = data[j]
		}
		f.trees[t] = growTree(sample, 0, maxDepth, rng)
	}

	scores := make([]float64, len(data))
	for i, x := range data {
		scores[i] = f.Score(x)
	}
	sort.Float64s(scores)
	f.threshold = stat.Quantile(1-contamination, stat.LinInterp, scores, nil)

	return f, nil
}

// growTree partitions sample in place.
func growTree(sample []float64, depth, maxDepth int, rng *rand.Rand) *itreeNode {
	if depth >= maxDepth || len(sample) <= 1 {
		return &itreeNode{size: len(sample)}
	}

	lo, hi := sample[0], sample[0]
	for _, x := range sample[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		return &itreeNode{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)

	i := 0
	for j := range sample {
		if sample[j] <= split {
			sample[i], sample[j] = sample[j], sample[i]
			i++
		}
	}

	return &itreeNode{
		split: split,
		left:  growTree(sample[:i], depth+1, maxDepth, rng),
		right: growTree(sample[i:], depth+1, maxDepth, rng),
		size:  len(sample),
	}
}

func pathLength(x float64, n *itreeNode) float64 {
	depth := 0.0
	for !n.leaf() {
		if x <= n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}

	return depth + averagePathLength(n.size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}

	m := float64(n)
	return 2*(math.Log(m-1)+eulerGamma) - 2*(m-1)/m
}

// Score returns the anomaly score in (0, 1]. Higher is more anomalous.
func (f *isolationForest) Score(x float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(x, t)
	}

	norm := averagePathLength(f.subsample)
	if norm == 0 {
		norm = 1
	}

	return math.Pow(2, -(sum/float64(len(f.trees)))/norm)
}

func (f *isolationForest) Threshold() float64 {
	return f.threshold
}

func (f *isolationForest) Predict(errorRate int) AIStatus {
	if f.Score(float64(errorRate)) > f.threshold {
		return StatusAnomalyDetected
	}

	return StatusNormal
}
