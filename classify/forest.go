package classify

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/tcassar-diss/memtrace/internal/cart"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RandomForest is an ensemble of fully grown gini trees, each fit to a bootstrap sample and considering
// sqrt(features) candidate features per split.
type RandomForest struct {
	logger *zap.SugaredLogger

	Trees int

	// Seed makes fitting reproducible: tree i draws from a generator seeded with (Seed, i), so the
	// result does not depend on Workers.
	Seed uint64

	// Workers is the number of trees grown concurrently.
	Workers int

	// MaxDepth of 0 means unlimited.
	MaxDepth int
}

func NewRandomForest(logger *zap.SugaredLogger, trees int, seed uint64) *RandomForest {
	return &RandomForest{
		logger:  logger,
		Trees:   trees,
		Seed:    seed,
		Workers: runtime.GOMAXPROCS(0),
	}
}

func (f *RandomForest) Name() string {
	return "Random Forest Classifier"
}

// Fit grows f.Trees trees in parallel. A training set with a single class is allowed.
func (f *RandomForest) Fit(ctx context.Context, rows [][]float64, labels []int) (Model, error) {
	ts, err := newTrainingSet(rows, labels)
	if err != nil {
		return nil, err
	}

	if f.Trees < 1 {
		return nil, fmt.Errorf("random forest needs at least one tree, got %d", f.Trees)
	}

	n, p := ts.dims()

	data := make([][]float64, n)
	for i := range data {
		data[i] = ts.x.RawRowView(i)
	}

	params := cart.Params{
		MaxFeatures: max(1, int(math.Sqrt(float64(p)))),
		MaxDepth:    f.MaxDepth,
	}

	trees := make([]*cart.Tree, f.Trees)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, f.Workers))

	for i := range trees {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(f.Seed, uint64(i)))

			sample := make([]int, n)
			for k := range sample {
				sample[k] = rng.IntN(n)
			}

			trees[i] = cart.Grow(data, ts.labels, sample, params, rng)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to grow random forest: %w", err)
	}

	depth := 0
	for _, t := range trees {
		depth = max(depth, t.Depth())
	}

	f.logger.Infow(
		"fitted random forest",
		"rows", n,
		"features", p,
		"trees", len(trees),
		"max_features", params.MaxFeatures,
		"max_depth", depth,
	)

	return &forestModel{trees: trees}, nil
}

// forestModel always holds at least one tree.
type forestModel struct {
	trees []*cart.Tree
}

// Predict averages the class probabilities of every tree. Ties go to 0.
func (m *forestModel) Predict(row []float64) (int, error) {
	if err := checkWidth(row, m.trees[0].Width()); err != nil {
		return 0, err
	}

	var sum [2]float64
	for _, t := range m.trees {
		p := t.Proba(row)
		sum[0] += p[0]
		sum[1] += p[1]
	}

	if sum[1] > sum[0] {
		return 1, nil
	}

	return 0, nil
}
