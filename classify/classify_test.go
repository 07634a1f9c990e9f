package classify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/memtrace/classify"
	"go.uber.org/zap"
)

var (
	separableRows = [][]float64{
		{1, 0}, {2, 0}, {1, 1},
		{0, 5}, {0, 6}, {1, 7},
	}
	separableLabels = []int{0, 0, 0, 1, 1, 1}
)

func classifiers(c float64) []classify.Classifier {
	logger := zap.NewNop().Sugar()

	return []classify.Classifier{
		classify.NewLogisticRegression(logger, c),
		classify.NewLinearSVC(logger, c),
		classify.NewRandomForest(logger, 100, 42),
	}
}

func TestFitValidation(t *testing.T) {
	cases := []struct {
		name   string
		rows   [][]float64
		labels []int
		err    error
	}{
		{
			name:   "empty dataset",
			rows:   [][]float64{},
			labels: []int{},
			err:    classify.ErrEmptyDataset,
		},
		{
			name:   "label count",
			rows:   [][]float64{{1}, {2}},
			labels: []int{0},
			err:    classify.ErrLabelCount,
		},
		{
			name:   "ragged rows",
			rows:   [][]float64{{1, 2}, {2}, {3, 4}},
			labels: []int{0, 1, 0},
			err:    classify.ErrInconsistentDimensions,
		},
		{
			name:   "invalid label",
			rows:   [][]float64{{1}, {2}},
			labels: []int{0, 2},
			err:    classify.ErrInvalidLabel,
		},
		{
			name:   "no features",
			rows:   [][]float64{{}, {}},
			labels: []int{0, 1},
			err:    classify.ErrNoFeatures,
		},
	}

	for _, clf := range classifiers(1) {
		for _, c := range cases {
			t.Run(clf.Name()+"/"+c.name, func(t *testing.T) {
				_, err := clf.Fit(context.Background(), c.rows, c.labels)
				require.ErrorIs(t, err, c.err)
			})
		}
	}
}

func TestFitSeparable(t *testing.T) {
	cases := []struct {
		name     string
		row      []float64
		expected int
	}{
		{name: "large second feature", row: []float64{0, 8}, expected: 1},
		{name: "large first feature", row: []float64{3, 0}, expected: 0},
	}

	for _, clf := range classifiers(10) {
		model, err := clf.Fit(context.Background(), separableRows, separableLabels)
		require.NoError(t, err, clf.Name())

		for _, c := range cases {
			t.Run(clf.Name()+"/"+c.name, func(t *testing.T) {
				label, err := model.Predict(c.row)
				require.NoError(t, err)
				require.Equal(t, c.expected, label)
			})
		}
	}
}

func TestPredictWidth(t *testing.T) {
	for _, clf := range classifiers(10) {
		t.Run(clf.Name(), func(t *testing.T) {
			model, err := clf.Fit(context.Background(), separableRows, separableLabels)
			require.NoError(t, err)

			_, err = model.Predict([]float64{1, 2, 3})
			require.ErrorIs(t, err, classify.ErrInconsistentDimensions)
		})
	}
}

func TestSingleClass(t *testing.T) {
	rows := [][]float64{{1, 0}, {2, 1}, {3, 0}}
	labels := []int{1, 1, 1}
	logger := zap.NewNop().Sugar()

	_, err := classify.NewLogisticRegression(logger, 0.01).Fit(context.Background(), rows, labels)
	require.ErrorIs(t, err, classify.ErrSingleClass)

	_, err = classify.NewLinearSVC(logger, 0.01).Fit(context.Background(), rows, labels)
	require.ErrorIs(t, err, classify.ErrSingleClass)

	model, err := classify.NewRandomForest(logger, 10, 1).Fit(context.Background(), rows, labels)
	require.NoError(t, err)

	label, err := model.Predict([]float64{0, 0})
	require.NoError(t, err)
	require.Equal(t, 1, label)
}

func TestForestIsDeterministic(t *testing.T) {
	rows := [][]float64{
		{3, 0, 1}, {1, 4, 0}, {0, 2, 2}, {5, 1, 0},
		{2, 2, 2}, {0, 0, 7}, {4, 3, 1}, {1, 1, 1},
	}
	labels := []int{0, 1, 1, 0, 1, 1, 0, 0}
	logger := zap.NewNop().Sugar()

	serial := classify.NewRandomForest(logger, 50, 7)
	serial.Workers = 1

	parallel := classify.NewRandomForest(logger, 50, 7)
	parallel.Workers = 8

	a, err := serial.Fit(context.Background(), rows, labels)
	require.NoError(t, err)

	b, err := parallel.Fit(context.Background(), rows, labels)
	require.NoError(t, err)

	for x := 0.0; x < 6; x++ {
		for y := 0.0; y < 6; y++ {
			row := []float64{x, y, x + y}

			la, err := a.Predict(row)
			require.NoError(t, err)

			lb, err := b.Predict(row)
			require.NoError(t, err)

			require.Equal(t, la, lb, "row %v", row)
		}
	}
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, clf := range classifiers(10) {
		t.Run(clf.Name(), func(t *testing.T) {
			_, err := clf.Fit(ctx, separableRows, separableLabels)
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}
