// Package classify provides binary classifiers over dense feature rows.
//
// Every classifier learns labels 0 and 1 from rows of equal width and returns a Model that labels
// single rows of that same width.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcassar-diss/memtrace/dataset"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyDataset           = dataset.ErrEmpty
	ErrNoFeatures             = dataset.ErrNoFeatures
	ErrInconsistentDimensions = dataset.ErrInconsistentDimensions

	ErrLabelCount   = errors.New("label count does not match row count")
	ErrInvalidLabel = errors.New("labels must be 0 or 1")
	ErrSingleClass  = errors.New("training labels contain a single class")
)

// Classifier fits a Model to labelled rows.
type Classifier interface {
	Name() string
	Fit(ctx context.Context, rows [][]float64, labels []int) (Model, error)
}

// Model labels a single row with 0 or 1.
type Model interface {
	Predict(row []float64) (int, error)
}

// trainingSet is validated training input.
type trainingSet struct {
	x      *mat.Dense
	labels []int
	// positives is the number of rows labelled 1.
	positives int
}

func (t *trainingSet) dims() (int, int) {
	return t.x.Dims()
}

func (t *trainingSet) bothClasses() bool {
	n, _ := t.dims()
	return t.positives > 0 && t.positives < n
}

// sign maps label 0 to -1 and label 1 to +1.
func (t *trainingSet) sign(i int) float64 {
	if t.labels[i] == 1 {
		return 1
	}

	return -1
}

func newTrainingSet(rows [][]float64, labels []int) (*trainingSet, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}

	if len(labels) != len(rows) {
		return nil, fmt.Errorf("%w: %d labels for %d rows", ErrLabelCount, len(labels), len(rows))
	}

	positives := 0

	for i, l := range labels {
		switch l {
		case 0:
		case 1:
			positives++
		default:
			return nil, fmt.Errorf("%w: label %d of row %d", ErrInvalidLabel, l, i)
		}
	}

	x, err := dataset.Matrix(rows)
	if err != nil {
		return nil, err
	}

	return &trainingSet{x: x, labels: labels, positives: positives}, nil
}

func checkWidth(row []float64, width int) error {
	if len(row) != width {
		return fmt.Errorf("%w: row has %d columns, model was fit on %d", ErrInconsistentDimensions, len(row), width)
	}

	return nil
}
