package classify

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	// svcSufficientDecrease and svcMaxLineSearch control the backtracking line search of each coordinate step.
	svcSufficientDecrease = 0.01
	svcMaxLineSearch      = 20

	svcMinHessian = 1e-12
)

// LinearSVC is a linear support vector classifier with an L1 penalty and squared hinge loss, solved in the
// primal with coordinate descent.
//
// The intercept is learnt as the weight of a constant feature of value 1 and is penalised like any other weight.
type LinearSVC struct {
	logger *zap.SugaredLogger

	// C weighs the loss against the L1 penalty: smaller values give sparser weights.
	C float64

	// Tol stops the solver once the summed optimality violation falls below Tol times its initial value.
	Tol float64

	// MaxIter bounds the number of passes over all coordinates.
	MaxIter int
}

func NewLinearSVC(logger *zap.SugaredLogger, c float64) *LinearSVC {
	return &LinearSVC{
		logger:  logger,
		C:       c,
		Tol:     1e-4,
		MaxIter: 1000,
	}
}

func (s *LinearSVC) Name() string {
	return "Support Vector Machines"
}

// Fit minimises |w|_1 + C*sum(max(0, 1 - s_i*w.x_i)^2) with s_i in {-1, 1}.
func (s *LinearSVC) Fit(ctx context.Context, rows [][]float64, labels []int) (Model, error) {
	ts, err := newTrainingSet(rows, labels)
	if err != nil {
		return nil, err
	}

	if !ts.bothClasses() {
		return nil, ErrSingleClass
	}

	n, p := ts.dims()

	// cols[j][i] is s_i*x_ij, the last column is the constant intercept feature
	cols := make([][]float64, p+1)
	for j := 0; j <= p; j++ {
		cols[j] = make([]float64, n)

		for i := 0; i < n; i++ {
			v := 1.0
			if j < p {
				v = ts.x.At(i, j)
			}

			cols[j][i] = ts.sign(i) * v
		}
	}

	cd := &coordinateDescent{
		c:    s.C,
		cols: cols,
		w:    make([]float64, p+1),
		// all weights start at zero, so every margin slack is 1
		b:       make([]float64, n),
		scratch: make([]float64, n),
	}
	for i := range cd.b {
		cd.b[i] = 1
	}

	var (
		initial float64
		iter    int
	)

	for iter = 0; iter < s.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("linear svc cancelled: %w", err)
		}

		violation := cd.pass()

		if iter == 0 {
			initial = violation
		}

		if violation <= s.Tol*initial {
			break
		}
	}

	if iter == s.MaxIter {
		s.logger.Warnw("linear svc did not converge", "iterations", iter)
	}

	nonZero := 0
	for _, w := range cd.w[:p] {
		if w != 0 {
			nonZero++
		}
	}

	s.logger.Infow(
		"fitted linear svc",
		"rows", n,
		"features", p,
		"iterations", iter,
		"non_zero_weights", nonZero,
	)

	return &linearModel{
		weights:   cd.w[:p],
		intercept: cd.w[p],
	}, nil
}

// coordinateDescent holds the state of an L1 regularised squared hinge loss solve.
//
// b[i] is the margin slack 1 - s_i*w.x_i, kept up to date as w changes.
type coordinateDescent struct {
	c       float64
	cols    [][]float64
	w       []float64
	b       []float64
	scratch []float64
}

// pass updates every coordinate once and returns the summed optimality violation seen before the updates.
func (cd *coordinateDescent) pass() float64 {
	violation := 0.0

	for j := range cd.w {
		g, h := cd.derivatives(j)
		violation += cd.violation(j, g)

		d := cd.newtonDirection(j, g, h)
		if math.Abs(d) < 1e-12 {
			continue
		}

		cd.lineSearch(j, g, d)
	}

	return violation
}

// derivatives returns the first and second derivative of the loss term along coordinate j.
func (cd *coordinateDescent) derivatives(j int) (float64, float64) {
	var g, h float64

	col := cd.cols[j]

	for i, b := range cd.b {
		if b <= 0 || col[i] == 0 {
			continue
		}

		g -= 2 * cd.c * col[i] * b
		h += 2 * cd.c * col[i] * col[i]
	}

	return g, math.Max(h, svcMinHessian)
}

// violation measures how far the subgradient of the objective at w[j] is from containing zero.
func (cd *coordinateDescent) violation(j int, g float64) float64 {
	gp, gn := g+1, g-1

	switch {
	case cd.w[j] > 0:
		return math.Abs(gp)
	case cd.w[j] < 0:
		return math.Abs(gn)
	default:
		return math.Max(0, math.Max(-gp, gn))
	}
}

// newtonDirection minimises the second order model of the loss plus |w[j]+d|.
func (cd *coordinateDescent) newtonDirection(j int, g, h float64) float64 {
	gp, gn := g+1, g-1
	wj := cd.w[j]

	switch {
	case gp < h*wj:
		return -gp / h
	case gn > h*wj:
		return -gn / h
	default:
		return -wj
	}
}

func (cd *coordinateDescent) lineSearch(j int, g, d float64) {
	col := cd.cols[j]
	wj := cd.w[j]
	delta := g*d + math.Abs(wj+d) - math.Abs(wj)

	oldLoss := cd.loss(cd.b)
	step := 1.0

	for k := 0; k < svcMaxLineSearch; k++ {
		copy(cd.scratch, cd.b)
		floats.AddScaled(cd.scratch, -step*d, col)

		change := math.Abs(wj+step*d) - math.Abs(wj) + cd.loss(cd.scratch) - oldLoss
		if change <= svcSufficientDecrease*step*delta {
			cd.w[j] = wj + step*d
			cd.b, cd.scratch = cd.scratch, cd.b

			return
		}

		step /= 2
	}
}

func (cd *coordinateDescent) loss(b []float64) float64 {
	sum := 0.0
	for _, v := range b {
		if v > 0 {
			sum += v * v
		}
	}

	return cd.c * sum
}
