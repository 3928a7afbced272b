package ml

import (
	"fmt"

	"cancer-detect/internal/dataset"
)

// Evaluation summarizes a model on a labeled split. Precision, recall and F1
// treat malignant as the positive class.
type Evaluation struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// ConfusionMatrix is indexed [actual][predicted].
	ConfusionMatrix [2][2]int `json:"confusion_matrix"`
}

// Evaluate scores m on every row of X against y.
func Evaluate(m *Model, X [][]float64, y []int) (Evaluation, error) {
	if len(X) != len(y) {
		return Evaluation{}, fmt.Errorf("evaluate: %d samples but %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return Evaluation{}, fmt.Errorf("evaluate: no samples")
	}

	var ev Evaluation
	var correct int
	for i, row := range X {
		scaled, err := m.Scaler.TransformVector(row)
		if err != nil {
			return Evaluation{}, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		pred, err := m.Classifier.Predict(scaled)
		if err != nil {
			return Evaluation{}, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		if y[i] != 0 && y[i] != 1 {
			return Evaluation{}, fmt.Errorf("evaluate row %d: label %d is not 0 or 1", i, y[i])
		}
		ev.ConfusionMatrix[y[i]][pred]++
		if pred == y[i] {
			correct++
		}
	}

	ev.Samples = len(X)
	ev.Accuracy = float64(correct) / float64(len(X))

	tp := ev.ConfusionMatrix[dataset.Malignant][dataset.Malignant]
	fp := ev.ConfusionMatrix[dataset.Benign][dataset.Malignant]
	fn := ev.ConfusionMatrix[dataset.Malignant][dataset.Benign]
	if tp+fp > 0 {
		ev.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		ev.Recall = float64(tp) / float64(tp+fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev, nil
}
