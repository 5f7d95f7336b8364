package predictor

import (
	"math/rand"

	"github.com/sourcegraph/conc/iter"
)

// forest is a bagged ensemble of regression trees.
type forest struct {
	trees     []*regressionTree
	nFeatures int
}

// fitForest grows numTrees trees in parallel. Each tree gets its own source
// seeded from rng, so the result depends only on the state of rng.
func fitForest(x [][]float64, y []float64, numTrees int, params treeParams, rng *rand.Rand) *forest {
	seeds := make([]int64, numTrees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := iter.Map(seeds, func(seed *int64) *regressionTree {
		return fitTree(x, y, params, rand.New(rand.NewSource(*seed)))
	})

	return &forest{trees: trees, nFeatures: len(x[0])}
}

func (f *forest) predict(row []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.trees))
}

// importance averages the per-tree normalized squared-error reductions.
// A forest that never split reports a uniform distribution.
func (f *forest) importance() []float64 {
	out := make([]float64, f.nFeatures)
	contributing := 0
	for _, t := range f.trees {
		var total float64
		for _, v := range t.importance {
			total += v
		}
		if total <= 0 {
			continue
		}
		contributing++
		for i, v := range t.importance {
			out[i] += v / total
		}
	}

	if contributing == 0 {
		for i := range out {
			out[i] = 1 / float64(f.nFeatures)
		}
		return out
	}

	for i := range out {
		out[i] /= float64(contributing)
	}
	return out
}
