package predictor

import (
	"math/rand"
	"sort"
)

// node is one split or leaf of a regression tree. Leaves have feature -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// regressionTree is a CART tree that splits on squared-error reduction.
type regressionTree struct {
	nodes      []node
	importance []float64 // total squared-error reduction per feature
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
}

// fitTree grows a tree on a bootstrap sample of the rows of x drawn with rng.
func fitTree(x [][]float64, y []float64, params treeParams, rng *rand.Rand) *regressionTree {
	sample := make([]int, len(y))
	for i := range sample {
		sample[i] = rng.Intn(len(y))
	}

	t := &regressionTree{importance: make([]float64, len(x[0]))}
	t.grow(x, y, sample, 0, params)
	return t
}

func (t *regressionTree) grow(x [][]float64, y []float64, idx []int, depth int, params treeParams) int {
	mean, sse := meanSSE(y, idx)
	at := len(t.nodes)
	t.nodes = append(t.nodes, node{feature: -1, value: mean})

	if depth >= params.maxDepth || len(idx) < params.minSamplesSplit || sse <= 0 {
		return at
	}

	s, ok := bestSplit(x, y, idx, sse)
	if !ok {
		return at
	}
	t.importance[s.feature] += s.gain

	var left, right []int
	for _, i := range idx {
		if x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(x, y, left, depth+1, params)
	r := t.grow(x, y, right, depth+1, params)
	t.nodes[at] = node{feature: s.feature, threshold: s.threshold, left: l, right: r, value: mean}
	return at
}

func (t *regressionTree) predict(row []float64) float64 {
	n := t.nodes[0]
	for n.feature >= 0 {
		if row[n.feature] <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n.value
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans every feature for the threshold with the largest
// squared-error reduction. Ties keep the earliest feature.
func bestSplit(x [][]float64, y []float64, idx []int, parentSSE float64) (split, bool) {
	var best split
	found := false

	var total float64
	for _, i := range idx {
		total += y[i]
	}
	n := float64(len(idx))

	order := make([]int, len(idx))
	for f := range x[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})

		var sumL, sqL, sqAll float64
		for _, i := range order {
			sqAll += y[i] * y[i]
		}

		for p := 0; p < len(order)-1; p++ {
			v := y[order[p]]
			sumL += v
			sqL += v * v

			lo, hi := x[order[p]][f], x[order[p+1]][f]
			if lo == hi {
				continue
			}

			nL := float64(p + 1)
			nR := n - nL
			sumR := total - sumL
			sseL := sqL - sumL*sumL/nL
			sseR := (sqAll - sqL) - sumR*sumR/nR
			gain := parentSSE - sseL - sseR

			if gain > best.gain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}

	return best, found
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))

	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
