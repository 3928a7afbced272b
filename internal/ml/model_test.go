package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	s := &StandardScaler{}
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	// constant column keeps scale 1
	assert.Equal(t, 1.0, s.Scale[1])

	var sum float64
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
		assert.Equal(t, 0.0, out.At(i, 1))
	}
	assert.InDelta(t, 0, sum, 1e-12)

	// input is not modified
	assert.Equal(t, 1.0, X.At(0, 0))
}

func TestStandardScaler_TransformVector(t *testing.T) {
	s := &StandardScaler{Mean: []float64{1, 2}, Scale: []float64{2, 4}}

	out, err := s.TransformVector([]float64{3, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)

	_, err = s.TransformVector([]float64{1})
	assert.Error(t, err)

	_, err = (&StandardScaler{}).TransformVector([]float64{1})
	assert.ErrorContains(t, err, "not fitted")
}

func TestStandardScaler_FitEmpty(t *testing.T) {
	s := &StandardScaler{}
	assert.Error(t, s.Fit(&mat.Dense{}))
}

func TestLogisticRegression_Defaults(t *testing.T) {
	lr := NewLogisticRegression(0, 0, 0)
	assert.Equal(t, 1.0, lr.C)
	assert.Equal(t, 100, lr.MaxIter)
	assert.Equal(t, 1e-4, lr.Tol)
	assert.False(t, lr.Fitted())
}

func TestLogisticRegression_FitSeparable(t *testing.T) {
	// one informative feature, one noise feature
	X := mat.NewDense(8, 2, []float64{
		-3, 0.1,
		-2, -0.2,
		-1.5, 0.3,
		-1, 0,
		1, 0.2,
		1.5, -0.1,
		2, 0,
		3, -0.3,
	})
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}

	lr := NewLogisticRegression(1, 100, 1e-6)
	require.NoError(t, lr.Fit(X, y))
	require.True(t, lr.Fitted())
	assert.Greater(t, lr.Coef[0], 0.0)
	assert.Greater(t, math.Abs(lr.Coef[0]), math.Abs(lr.Coef[1]))
	assert.NotEmpty(t, lr.Status)

	for i, want := range y {
		row := mat.Row(nil, i, X)
		got, err := lr.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want, got, "row %d", i)

		proba, err := lr.PredictProba(row)
		require.NoError(t, err)
		assert.InDelta(t, 1, proba[0]+proba[1], 1e-12)
	}
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := []int{0, 0, 1, 1}

	weak := NewLogisticRegression(100, 200, 1e-8)
	strong := NewLogisticRegression(0.01, 200, 1e-8)
	require.NoError(t, weak.Fit(X, y))
	require.NoError(t, strong.Fit(X, y))

	assert.Greater(t, math.Abs(weak.Coef[0]), math.Abs(strong.Coef[0]))
}

func TestLogisticRegression_FitErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	tests := []struct {
		name string
		y    []int
	}{
		{"single class", []int{1, 1, 1}},
		{"bad label", []int{0, 2, 1}},
		{"length mismatch", []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := NewLogisticRegression(1, 100, 1e-4)
			assert.Error(t, lr.Fit(X, tt.y))
			assert.False(t, lr.Fitted())
		})
	}
}

func TestLogisticRegression_Unfitted(t *testing.T) {
	lr := NewLogisticRegression(1, 100, 1e-4)
	_, err := lr.PredictProba([]float64{1})
	assert.Error(t, err)
	_, err = lr.Predict([]float64{1})
	assert.Error(t, err)
}

func TestLogisticRegression_DecisionBoundary(t *testing.T) {
	lr := &LogisticRegression{Coef: []float64{1}, Intercept: 0}

	// z == 0 is not positive
	got, err := lr.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = lr.Predict([]float64{1e-9})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSigmoidSoftplusStable(t *testing.T) {
	assert.InDelta(t, 1, sigmoid(800), 1e-12)
	assert.InDelta(t, 0, sigmoid(-800), 1e-12)
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.InDelta(t, 800, softplus(800), 1e-9)
	assert.False(t, math.IsInf(softplus(1000), 0))
	assert.InDelta(t, math.Log(2), softplus(0), 1e-12)
}

func TestModel_ValidateAndRecord(t *testing.T) {
	m := fixedModel("v1", 0)
	require.NoError(t, m.Validate())
	assert.Equal(t, 30, m.NumFeatures())

	rec, err := m.Record()
	require.NoError(t, err)
	assert.Equal(t, "v1", rec.Version)

	restored, err := ModelFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, m.Classifier.Coef, restored.Classifier.Coef)
	assert.Equal(t, m.Scaler.Scale, restored.Scaler.Scale)
	assert.Equal(t, "v1", restored.Metadata.Version)

	proba, err := restored.Score(featuresWith(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.8808, proba[1], 1e-4)
}

func TestModel_ValidateRejects(t *testing.T) {
	var nilModel *Model
	assert.Error(t, nilModel.Validate())

	unfitted := fixedModel("v", 0)
	unfitted.Classifier.Coef = nil
	assert.Error(t, unfitted.Validate())

	mismatched := fixedModel("v", 0)
	mismatched.Scaler.Mean = mismatched.Scaler.Mean[:5]
	assert.Error(t, mismatched.Validate())

	zeroScale := fixedModel("v", 0)
	zeroScale.Scaler.Scale[3] = 0
	assert.Error(t, zeroScale.Validate())
}

func TestEvaluate(t *testing.T) {
	m := fixedModel("v", 0)
	X := [][]float64{featuresWith(-1), featuresWith(-2), featuresWith(1), featuresWith(-0.5)}
	y := []int{0, 0, 1, 1}

	ev, err := Evaluate(m, X, y)
	require.NoError(t, err)
	assert.Equal(t, 4, ev.Samples)
	assert.InDelta(t, 0.75, ev.Accuracy, 1e-12)
	assert.Equal(t, [2][2]int{{2, 0}, {1, 1}}, ev.ConfusionMatrix)
	// malignant positive: tp=2 fp=1 fn=0
	assert.InDelta(t, 2.0/3.0, ev.Precision, 1e-12)
	assert.InDelta(t, 1.0, ev.Recall, 1e-12)
	assert.InDelta(t, 0.8, ev.F1, 1e-12)

	_, err = Evaluate(m, X, y[:2])
	assert.Error(t, err)
	_, err = Evaluate(m, nil, nil)
	assert.Error(t, err)
}

func TestRankImportance(t *testing.T) {
	ranked := rankImportance([]string{"a", "b", "c"}, []float64{0.5, -2, 1}, []float64{0.01, 0.2, 0.05})
	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].Name)
	assert.Equal(t, 2.0, ranked[0].Importance)
	assert.Equal(t, -2.0, ranked[0].Coefficient)
	assert.Equal(t, 0.2, ranked[0].PermutationScore)
	assert.Equal(t, "c", ranked[1].Name)
	assert.Equal(t, "a", ranked[2].Name)

	unnamed := rankImportance(nil, []float64{1}, nil)
	assert.Equal(t, "feature_0", unnamed[0].Name)
}

func TestPermutationImportance(t *testing.T) {
	m := fixedModel("v", 0)
	X := make([][]float64, 40)
	y := make([]int, 40)
	for i := range X {
		v := float64(i - 20)
		if v >= 0 {
			v++
			y[i] = 1
		}
		X[i] = featuresWith(v)
	}

	scores, err := permutationImportance(m, X, y, 7)
	require.NoError(t, err)
	require.Len(t, scores, 30)
	// only feature 0 carries signal
	assert.Greater(t, scores[0], 0.0)
	for j := 1; j < len(scores); j++ {
		assert.Equal(t, 0.0, scores[j], "feature %d", j)
	}
	// input untouched
	assert.Equal(t, -20.0, X[0][0])
}
