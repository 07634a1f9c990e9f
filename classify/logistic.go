package classify

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is L2 regularised logistic regression with an unpenalised intercept.
type LogisticRegression struct {
	logger *zap.SugaredLogger

	// C is the inverse of the regularisation strength: smaller values give a simpler boundary.
	C float64

	// MaxIter bounds the number of LBFGS iterations.
	MaxIter int

	// Tol stops the solver once the largest gradient component drops below it.
	Tol float64
}

func NewLogisticRegression(logger *zap.SugaredLogger, c float64) *LogisticRegression {
	return &LogisticRegression{
		logger:  logger,
		C:       c,
		MaxIter: 100,
		Tol:     1e-4,
	}
}

func (lr *LogisticRegression) Name() string {
	return "logistical regression"
}

// Fit minimises mean(log(1 + exp(-s_i*(w.x_i + b)))) + |w|^2/(2*C*n) with s_i in {-1, 1}.
//
// This has the same minimum as 0.5*|w|^2 + C*sum(loss) but keeps Tol independent of C and n.
func (lr *LogisticRegression) Fit(ctx context.Context, rows [][]float64, labels []int) (Model, error) {
	ts, err := newTrainingSet(rows, labels)
	if err != nil {
		return nil, err
	}

	if !ts.bothClasses() {
		return nil, ErrSingleClass
	}

	n, p := ts.dims()

	// z and r are scratch space shared by Func and Grad, LBFGS evaluates serially.
	z := mat.NewVecDense(n, nil)
	r := mat.NewVecDense(n, nil)

	// margins leaves w.x_i in z, the intercept is added by the caller.
	margins := func(theta []float64) {
		z.MulVec(ts.x, mat.NewVecDense(p, theta[:p]))
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			margins(theta)

			loss := 0.0
			for i := 0; i < n; i++ {
				loss += softplus(-ts.sign(i) * (z.AtVec(i) + theta[p]))
			}

			w := theta[:p]

			return loss/float64(n) + floats.Dot(w, w)/(2*lr.C*float64(n))
		},
		Grad: func(grad, theta []float64) {
			margins(theta)

			for i := 0; i < n; i++ {
				s := ts.sign(i)
				r.SetVec(i, -s*sigmoid(-s*(z.AtVec(i)+theta[p]))/float64(n))
			}

			gw := mat.NewVecDense(p, grad[:p])
			gw.MulVec(ts.x.T(), r)
			floats.AddScaled(grad[:p], 1/(lr.C*float64(n)), theta[:p])

			grad[p] = mat.Sum(r)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}

			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: lr.Tol,
		MajorIterations:   lr.MaxIter,
	}

	result, err := optimize.Minimize(problem, make([]float64, p+1), settings, &optimize.LBFGS{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("logistic regression cancelled: %w", ctxErr)
	}

	if err != nil {
		if result == nil {
			return nil, fmt.Errorf("failed to fit logistic regression: %w", err)
		}

		lr.logger.Warnw("logistic regression stopped early", "status", result.Status.String(), "err", err)
	}

	if result.Status == optimize.IterationLimit {
		lr.logger.Warnw("logistic regression did not converge", "iterations", result.MajorIterations)
	}

	lr.logger.Infow(
		"fitted logistic regression",
		"rows", n,
		"features", p,
		"status", result.Status.String(),
		"objective", result.F,
	)

	return &linearModel{
		weights:   append([]float64(nil), result.X[:p]...),
		intercept: result.X[p],
	}, nil
}

// linearModel labels a row 1 when w.x + b > 0.
type linearModel struct {
	weights   []float64
	intercept float64
}

func (m *linearModel) Predict(row []float64) (int, error) {
	if err := checkWidth(row, len(m.weights)); err != nil {
		return 0, err
	}

	if floats.Dot(m.weights, row)+m.intercept > 0 {
		return 1, nil
	}

	return 0, nil
}

// softplus is log(1 + exp(t)) without overflow.
func softplus(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}

	return math.Log1p(math.Exp(t))
}

func sigmoid(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}

	e := math.Exp(t)

	return e / (1 + e)
}
