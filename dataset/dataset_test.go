package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/memtrace/dataset"
	"github.com/tcassar-diss/memtrace/trace"
)

var events = []trace.Event{
	{SyscallID: 12, Histogram: map[int]int{1: 1, 3: 4}},
	{SyscallID: 9, Histogram: map[int]int{1: 2, 2: 1}},
	{SyscallID: 0, Histogram: map[int]int{}},
	{SyscallID: 9, Histogram: map[int]int{0: 7}},
}

func TestAssemble(t *testing.T) {
	features := []int{1, 3, 2, 0}

	d := dataset.Assemble(events, features, dataset.DefaultAffected)

	require.Equal(t, []int{0, 1, 2, 3}, d.Keys)
	require.Equal(t, []int{1, 3, 2, 0}, features, "features must not be sorted in place")

	require.Equal(t, [][]float64{
		{0, 1, 0, 4},
		{0, 2, 1, 0},
		{0, 0, 0, 0},
		{7, 0, 0, 0},
	}, d.Rows)
	require.Equal(t, []int{0, 1, 0, 1}, d.Labels)
	require.Equal(t, []int{12, 9, 0, 9}, d.SyscallIDs)
}

func TestAssembleEmpty(t *testing.T) {
	d := dataset.Assemble([]trace.Event{}, []int{}, dataset.DefaultAffected)

	require.Zero(t, d.Len())

	rows, labels := d.Training()
	require.Empty(t, rows)
	require.Empty(t, labels)

	_, err := d.Matrix()
	require.ErrorIs(t, err, dataset.ErrEmpty)

	_, _, err = d.Row(-2)
	require.ErrorIs(t, err, dataset.ErrRowIndex)
}

func TestAssembleCustomAffected(t *testing.T) {
	d := dataset.Assemble(events, []int{0, 1, 2, 3}, dataset.NewAffectedSet(0, 12))

	require.Equal(t, []int{1, 0, 1, 0}, d.Labels)
}

func TestHistogramRoundTrip(t *testing.T) {
	d := dataset.Assemble(events, []int{1, 3, 2, 0}, dataset.DefaultAffected)

	for i, e := range events {
		h, err := d.Histogram(d.Rows[i])
		require.NoError(t, err)
		require.Equal(t, e.Histogram, h)
	}

	_, err := d.Histogram([]float64{1})
	require.ErrorIs(t, err, dataset.ErrInconsistentDimensions)
}

func TestTraining(t *testing.T) {
	d := dataset.Assemble(events, []int{1, 3, 2, 0}, dataset.DefaultAffected)

	rows, labels := d.Training()
	require.Equal(t, d.Rows[:3], rows)
	require.Equal(t, []int{0, 1, 0}, labels)

	single := dataset.Assemble(events[:1], []int{1, 3}, dataset.DefaultAffected)
	rows, labels = single.Training()
	require.Empty(t, rows)
	require.Empty(t, labels)
}

func TestRow(t *testing.T) {
	d := dataset.Assemble(events, []int{1, 3, 2, 0}, dataset.DefaultAffected)

	cases := []struct {
		name  string
		index int
		row   []float64
		label int
	}{
		{name: "first", index: 0, row: []float64{0, 1, 0, 4}, label: 0},
		{name: "last", index: -1, row: []float64{7, 0, 0, 0}, label: 1},
		{name: "second to last", index: -2, row: []float64{0, 0, 0, 0}, label: 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			row, label, err := d.Row(c.index)
			require.NoError(t, err)
			require.Equal(t, c.row, row)
			require.Equal(t, c.label, label)
		})
	}

	_, _, err := d.Row(4)
	require.ErrorIs(t, err, dataset.ErrRowIndex)

	_, _, err = d.Row(-5)
	require.ErrorIs(t, err, dataset.ErrRowIndex)
}

func TestMatrix(t *testing.T) {
	m, err := dataset.Matrix([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)

	r, c := m.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 2, c)
	require.Equal(t, 4.0, m.At(1, 1))

	_, err = dataset.Matrix([][]float64{{1, 2}, {3}})
	require.ErrorIs(t, err, dataset.ErrInconsistentDimensions)

	_, err = dataset.Matrix([][]float64{{}, {1}})
	require.ErrorIs(t, err, dataset.ErrInconsistentDimensions)

	_, err = dataset.Matrix([][]float64{{}, {}})
	require.ErrorIs(t, err, dataset.ErrNoFeatures)
}

func TestRowLengths(t *testing.T) {
	require.Equal(t, []int{2}, dataset.RowLengths([][]float64{{1, 2}, {3, 4}}))
	require.Equal(t, []int{1, 2}, dataset.RowLengths([][]float64{{1, 2}, {3}, {4, 5}}))
	require.Equal(t, []int{}, dataset.RowLengths(nil))
}
