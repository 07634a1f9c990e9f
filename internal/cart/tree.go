// Package cart grows binary classification trees that split on the gini impurity.
package cart

import (
	"math/rand/v2"
	"slices"
)

// Params controls how a tree is grown.
type Params struct {
	// MaxFeatures is the number of features drawn at each node. A node keeps drawing past MaxFeatures
	// until it has found a feature that isn't constant within the node.
	MaxFeatures int

	// MaxDepth of 0 grows the tree until every leaf is pure or cannot be split.
	MaxDepth int

	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int
}

const leaf = -1

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	// proba is the fraction of the node's samples labelled 0 and 1.
	proba [2]float64
}

// Tree is a fitted classification tree. Rows go left when row[feature] <= threshold.
type Tree struct {
	nodes []node
	width int
}

type builder struct {
	rows   [][]float64
	labels []int
	params Params
	rng    *rand.Rand
	tree   *Tree
}

// Grow fits a tree to the rows selected by sample. Indices may repeat, which is how bootstrap samples are passed.
func Grow(rows [][]float64, labels []int, sample []int, params Params, rng *rand.Rand) *Tree {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}

	if params.MaxFeatures <= 0 || params.MaxFeatures > width {
		params.MaxFeatures = width
	}

	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}

	b := &builder{
		rows:   rows,
		labels: labels,
		params: params,
		rng:    rng,
		tree:   &Tree{width: width},
	}

	b.grow(slices.Clone(sample), 0)

	return b.tree
}

// grow appends the subtree for idx and returns its root.
func (b *builder) grow(idx []int, depth int) int {
	counts := b.counts(idx)

	id := len(b.tree.nodes)
	n := node{feature: leaf, left: leaf, right: leaf}

	if len(idx) > 0 {
		n.proba = [2]float64{
			float64(counts[0]) / float64(len(idx)),
			float64(counts[1]) / float64(len(idx)),
		}
	}

	b.tree.nodes = append(b.tree.nodes, n)

	if b.isLeaf(idx, counts, depth) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left, right := partition(idx, b.rows, feature, threshold)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	b.tree.nodes[id].feature = feature
	b.tree.nodes[id].threshold = threshold
	b.tree.nodes[id].left = l
	b.tree.nodes[id].right = r

	return id
}

func (b *builder) isLeaf(idx []int, counts [2]int, depth int) bool {
	if len(idx) < b.params.MinSamplesSplit {
		return true
	}

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}

	return counts[0] == 0 || counts[1] == 0
}

func (b *builder) counts(idx []int) [2]int {
	var c [2]int
	for _, i := range idx {
		c[b.labels[i]]++
	}

	return c
}

// bestSplit searches a random subset of features for the split with the lowest weighted child impurity.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	var (
		bestFeature   int
		bestThreshold float64
		bestScore     float64
		found         bool
		visited       int
		nonConstant   int
	)

	order := b.rng.Perm(b.tree.width)
	sorted := slices.Clone(idx)

	for _, f := range order {
		if visited >= b.params.MaxFeatures && nonConstant > 0 {
			break
		}

		visited++

		slices.SortFunc(sorted, func(i, j int) int {
			switch {
			case b.rows[i][f] < b.rows[j][f]:
				return -1
			case b.rows[i][f] > b.rows[j][f]:
				return 1
			default:
				return 0
			}
		})

		if b.rows[sorted[0]][f] == b.rows[sorted[len(sorted)-1]][f] {
			continue
		}

		nonConstant++

		threshold, score := b.scanFeature(sorted, f)
		if !found || score < bestScore {
			bestFeature, bestThreshold, bestScore, found = f, threshold, score, true
		}
	}

	return bestFeature, bestThreshold, found
}

// scanFeature sweeps idx, sorted by feature f, and returns the best threshold and its weighted gini impurity.
func (b *builder) scanFeature(sorted []int, f int) (float64, float64) {
	total := b.counts(sorted)

	var (
		left          [2]int
		bestThreshold float64
		bestScore     float64
		found         bool
	)

	for k := 0; k < len(sorted)-1; k++ {
		left[b.labels[sorted[k]]]++

		lo, hi := b.rows[sorted[k]][f], b.rows[sorted[k+1]][f]
		if lo == hi {
			continue
		}

		right := [2]int{total[0] - left[0], total[1] - left[1]}
		score := weightedGini(left) + weightedGini(right)

		if !found || score < bestScore {
			bestScore, found = score, true

			bestThreshold = lo + (hi-lo)/2
			if bestThreshold >= hi {
				bestThreshold = lo
			}
		}
	}

	return bestThreshold, bestScore
}

// weightedGini is the gini impurity of counts multiplied by the number of samples.
func weightedGini(counts [2]int) float64 {
	n := float64(counts[0] + counts[1])
	if n == 0 {
		return 0
	}

	p0, p1 := float64(counts[0])/n, float64(counts[1])/n

	return n * (1 - p0*p0 - p1*p1)
}

func partition(idx []int, rows [][]float64, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return left, right
}

// Proba returns the fraction of training samples labelled 0 and 1 in the leaf that row falls into.
//
// row must have the width the tree was grown on.
func (t *Tree) Proba(row []float64) [2]float64 {
	id := 0
	for t.nodes[id].feature != leaf {
		n := t.nodes[id]
		if row[n.feature] <= n.threshold {
			id = n.left
		} else {
			id = n.right
		}
	}

	return t.nodes[id].proba
}

// Depth is the number of edges on the longest path from the root to a leaf.
func (t *Tree) Depth() int {
	var depth func(id int) int
	depth = func(id int) int {
		n := t.nodes[id]
		if n.feature == leaf {
			return 0
		}

		return 1 + max(depth(n.left), depth(n.right))
	}

	return depth(0)
}

// Leaves is the number of leaf nodes.
func (t *Tree) Leaves() int {
	c := 0
	for _, n := range t.nodes {
		if n.feature == leaf {
			c++
		}
	}

	return c
}

// Width is the number of features of the rows the tree was grown on.
func (t *Tree) Width() int {
	return t.width
}
