package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is an L2-penalized binary logistic classifier. The fitted
// objective is C*sum(logloss) + ||w||^2/2; the intercept is not penalized.
type LogisticRegression struct {
	C       float64 `json:"c"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`

	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`

	Iterations int    `json:"iterations"`
	Status     string `json:"status"`
}

// NewLogisticRegression returns an unfitted classifier. Zero arguments fall
// back to C=1, 100 iterations and a gradient tolerance of 1e-4.
func NewLogisticRegression(c float64, maxIter int, tol float64) *LogisticRegression {
	if c <= 0 {
		c = 1.0
	}
	if maxIter <= 0 {
		maxIter = 100
	}
	if tol <= 0 {
		tol = 1e-4
	}
	return &LogisticRegression{C: c, MaxIter: maxIter, Tol: tol}
}

// Fit minimizes the penalized log loss with L-BFGS. Labels must be 0 or 1 and
// both classes must be present.
func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) error {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.New("logistic: cannot fit on empty matrix")
	}
	if len(y) != n {
		return fmt.Errorf("logistic: %d samples but %d labels", n, len(y))
	}

	target := make([]float64, n)
	var pos int
	for i, v := range y {
		switch v {
		case 0:
		case 1:
			target[i] = 1
			pos++
		default:
			return fmt.Errorf("logistic: label %d at row %d is not 0 or 1", v, i)
		}
	}
	if pos == 0 || pos == n {
		return errors.New("logistic: need samples of both classes")
	}

	dense := mat.DenseCopyOf(X)
	z := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)

	// z <- X*w + b
	margins := func(theta []float64) {
		w := mat.NewVecDense(d, theta[:d])
		z.MulVec(dense, w)
		b := theta[d]
		for i := 0; i < n; i++ {
			z.SetVec(i, z.AtVec(i)+b)
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			margins(theta)
			var loss float64
			for i := 0; i < n; i++ {
				zi := z.AtVec(i)
				loss += softplus(zi) - target[i]*zi
			}
			w := theta[:d]
			return lr.C*loss + 0.5*floats.Dot(w, w)
		},
		Grad: func(grad, theta []float64) {
			margins(theta)
			var sum float64
			for i := 0; i < n; i++ {
				r := sigmoid(z.AtVec(i)) - target[i]
				resid.SetVec(i, r)
				sum += r
			}
			g := mat.NewVecDense(d, grad[:d])
			g.MulVec(dense.T(), resid)
			for j := 0; j < d; j++ {
				grad[j] = lr.C*grad[j] + theta[j]
			}
			grad[d] = lr.C * sum
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   lr.MaxIter,
		GradientThreshold: lr.Tol,
	}

	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic: optimization failed: %w", err)
	}
	if err != nil {
		log.Warn().Err(err).Str("status", result.Status.String()).Msg("logistic regression did not converge cleanly, keeping best point")
	}
	if result.Status == optimize.IterationLimit {
		log.Warn().Int("max_iter", lr.MaxIter).Msg("logistic regression hit the iteration limit")
	}

	lr.Coef = append([]float64(nil), result.X[:d]...)
	lr.Intercept = result.X[d]
	lr.Iterations = result.MajorIterations
	lr.Status = result.Status.String()
	return nil
}

// Fitted reports whether coefficients are present.
func (lr *LogisticRegression) Fitted() bool {
	return lr != nil && len(lr.Coef) > 0
}

// DecisionFunction returns w·x + b.
func (lr *LogisticRegression) DecisionFunction(x []float64) (float64, error) {
	if !lr.Fitted() {
		return 0, errors.New("logistic: not fitted")
	}
	if len(x) != len(lr.Coef) {
		return 0, fmt.Errorf("logistic: expected %d features, got %d", len(lr.Coef), len(x))
	}
	return floats.Dot(lr.Coef, x) + lr.Intercept, nil
}

// PredictProba returns [P(class 0), P(class 1)].
func (lr *LogisticRegression) PredictProba(x []float64) ([2]float64, error) {
	z, err := lr.DecisionFunction(x)
	if err != nil {
		return [2]float64{}, err
	}
	p1 := sigmoid(z)
	return [2]float64{1 - p1, p1}, nil
}

// Predict returns 1 when the decision function is positive, else 0.
func (lr *LogisticRegression) Predict(x []float64) (int, error) {
	z, err := lr.DecisionFunction(x)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

// softplus computes log(1+exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
