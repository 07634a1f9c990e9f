package dataset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tcassar-diss/memtrace/trace"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty                  = errors.New("empty dataset")
	ErrNoFeatures             = errors.New("dataset has no feature columns")
	ErrInconsistentDimensions = errors.New("inconsistent feature dimensionality")
	ErrRowIndex               = errors.New("row index out of range")
)

// AffectedSet holds the syscall ids that are labelled as the positive class.
type AffectedSet map[int]struct{}

// DefaultAffected contains mmap.
var DefaultAffected = NewAffectedSet(9)

func NewAffectedSet(ids ...int) AffectedSet {
	a := make(AffectedSet, len(ids))
	for _, id := range ids {
		a[id] = struct{}{}
	}

	return a
}

func (a AffectedSet) Label(syscallID int) int {
	if _, ok := a[syscallID]; ok {
		return 1
	}

	return 0
}

// Dataset is one dense row per syscall event, in trace order.
//
// Column i of every row is the count of bucket Keys[i].
type Dataset struct {
	Keys       []int
	Rows       [][]float64
	Labels     []int
	SyscallIDs []int
}

// Assemble aligns every event's histogram to the sorted set of feature keys.
//
// features is not modified.
func Assemble(events []trace.Event, features []int, affected AffectedSet) *Dataset {
	keys := slices.Clone(features)
	slices.Sort(keys)

	d := &Dataset{
		Keys:       keys,
		Rows:       make([][]float64, 0, len(events)),
		Labels:     make([]int, 0, len(events)),
		SyscallIDs: make([]int, 0, len(events)),
	}

	for _, e := range events {
		row := make([]float64, len(keys))
		for i, k := range keys {
			row[i] = float64(e.Histogram[k])
		}

		d.Rows = append(d.Rows, row)
		d.Labels = append(d.Labels, affected.Label(e.SyscallID))
		d.SyscallIDs = append(d.SyscallIDs, e.SyscallID)
	}

	return d
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Training returns every row but the last one. The split is fixed: rows are never shuffled.
func (d *Dataset) Training() ([][]float64, []int) {
	if d.Len() < 2 {
		return [][]float64{}, []int{}
	}

	n := d.Len() - 1

	return d.Rows[:n], d.Labels[:n]
}

// Row returns row i. Negative indices count back from the end, so -1 is the last row.
func (d *Dataset) Row(i int) ([]float64, int, error) {
	idx := i
	if idx < 0 {
		idx += d.Len()
	}

	if idx < 0 || idx >= d.Len() {
		return nil, 0, fmt.Errorf("%w: %d with %d rows", ErrRowIndex, i, d.Len())
	}

	return d.Rows[idx], d.Labels[idx], nil
}

// Histogram maps a row back to the bucket counts it was built from, dropping zero columns.
func (d *Dataset) Histogram(row []float64) (map[int]int, error) {
	if len(row) != len(d.Keys) {
		return nil, fmt.Errorf("%w: row has %d columns, expected %d", ErrInconsistentDimensions, len(row), len(d.Keys))
	}

	h := make(map[int]int)
	for i, v := range row {
		if v == 0 {
			continue
		}

		h[d.Keys[i]] = int(v)
	}

	return h, nil
}

// Matrix copies the rows into a dense matrix.
func (d *Dataset) Matrix() (*mat.Dense, error) {
	return Matrix(d.Rows)
}

// Matrix copies rows into a dense matrix, refusing ragged or empty input.
func Matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	cols := len(rows[0])
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, row 0 has %d", ErrInconsistentDimensions, i, len(r), cols)
		}
	}

	// mat.NewDense panics on a zero dimension
	if cols == 0 {
		return nil, ErrNoFeatures
	}

	m := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}

	return m, nil
}

// RowLengths returns the distinct lengths of rows in ascending order.
func RowLengths(rows [][]float64) []int {
	lengths := make([]int, 0, 1)
	for _, r := range rows {
		if !slices.Contains(lengths, len(r)) {
			lengths = append(lengths, len(r))
		}
	}

	slices.Sort(lengths)

	return lengths
}
