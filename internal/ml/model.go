package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"cancer-detect/internal/storage"
)

// ModelMetadata describes a trained model version.
type ModelMetadata struct {
	Version       string              `json:"version"`
	ModelType     string              `json:"model_type"`
	TrainedAt     time.Time           `json:"trained_at"`
	Features      []string            `json:"features"`
	TrainingRows  int                 `json:"training_rows"`
	TestRows      int                 `json:"test_rows"`
	TrainAccuracy float64             `json:"train_accuracy"`
	TestAccuracy  float64             `json:"test_accuracy"`
	Evaluation    Evaluation          `json:"evaluation"`
	Params        TrainingParams      `json:"params"`
	Importance    []FeatureImportance `json:"feature_importance"`
}

// TrainingParams records the hyperparameters a model was fitted with.
type TrainingParams struct {
	TestSize   float64 `json:"test_size"`
	Seed       int64   `json:"seed"`
	C          float64 `json:"c"`
	MaxIter    int     `json:"max_iter"`
	Iterations int     `json:"iterations"`
	Status     string  `json:"status"`
}

// Model is a fitted scaler and classifier pair plus the metadata of the run
// that produced it.
type Model struct {
	Scaler     *StandardScaler     `json:"scaler"`
	Classifier *LogisticRegression `json:"classifier"`
	Metadata   ModelMetadata       `json:"metadata"`
}

// Validate checks the pair is fitted and dimensionally consistent.
func (m *Model) Validate() error {
	if m == nil || m.Scaler == nil || m.Classifier == nil {
		return fmt.Errorf("model is incomplete")
	}
	if !m.Classifier.Fitted() {
		return fmt.Errorf("classifier is not fitted")
	}
	if len(m.Scaler.Mean) != len(m.Classifier.Coef) || len(m.Scaler.Scale) != len(m.Classifier.Coef) {
		return fmt.Errorf("scaler width %d does not match classifier width %d", len(m.Scaler.Mean), len(m.Classifier.Coef))
	}
	for j, s := range m.Scaler.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("scaler scale %d is invalid", j)
		}
	}
	return nil
}

// NumFeatures returns the input width the model expects.
func (m *Model) NumFeatures() int {
	if m == nil || m.Classifier == nil {
		return 0
	}
	return len(m.Classifier.Coef)
}

// Score scales x and returns [P(malignant), P(benign)].
func (m *Model) Score(x []float64) ([2]float64, error) {
	scaled, err := m.Scaler.TransformVector(x)
	if err != nil {
		return [2]float64{}, err
	}
	return m.Classifier.PredictProba(scaled)
}

// Record serializes the model into a storage record.
func (m *Model) Record() (storage.ModelRecord, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return storage.ModelRecord{}, fmt.Errorf("marshal model: %w", err)
	}
	return storage.ModelRecord{
		Version:   m.Metadata.Version,
		CreatedAt: m.Metadata.TrainedAt,
		Payload:   payload,
	}, nil
}

// ModelFromRecord decodes and validates a stored model.
func ModelFromRecord(rec storage.ModelRecord) (*Model, error) {
	var m Model
	if err := json.Unmarshal(rec.Payload, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model %s: %w", rec.Version, err)
	}
	if m.Metadata.Version == "" {
		m.Metadata.Version = rec.Version
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", rec.Version, err)
	}
	return &m, nil
}
