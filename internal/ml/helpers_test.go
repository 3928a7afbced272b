package ml

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"
)

// MockMetrics implements MetricsInterface and TrainingMetrics for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  map[string]int
	failures     map[string]int
	latencyCount int
	confidences  []float64
	cacheHits    int
	cacheMisses  int
	modelAge     float64
	trainingRuns map[bool]int
	durations    []float64
	accuracy     map[string]float64
}

func newMockMetrics() *MockMetrics {
	return &MockMetrics{
		predictions:  map[string]int{},
		failures:     map[string]int{},
		trainingRuns: map[bool]int{},
		accuracy:     map[string]float64{},
	}
}

func (m *MockMetrics) PredictionsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[label]++
}

func (m *MockMetrics) FailuresInc(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyCount++
}

func (m *MockMetrics) ConfidenceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = append(m.confidences, v)
}

func (m *MockMetrics) CacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) TrainingRunsInc(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRuns[success]++
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, v)
}

func (m *MockMetrics) ModelAccuracySet(split string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy[split] = v
}

// staticSource serves a fixed dataset.
type staticSource struct {
	ds  *dataset.Dataset
	err error
}

func (s staticSource) Load(context.Context) (*dataset.Dataset, error) {
	return s.ds, s.err
}

// syntheticDataset builds two well-separated gaussian clusters with the full
// feature width: malignant rows centered at -1, benign rows at +1.
func syntheticDataset(n int, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &dataset.Dataset{
		FeatureNames: dataset.Names(),
		X:            make([][]float64, n),
		Y:            make([]int, n),
	}
	for i := 0; i < n; i++ {
		label := i % 2
		center := -1.0
		if label == dataset.Benign {
			center = 1.0
		}
		row := make([]float64, common.FeatureCount)
		for j := range row {
			// per-feature offsets and spreads exercise the scaler
			row[j] = float64(j)*10 + float64(j+1)*(center+rng.NormFloat64()*0.8)
		}
		ds.X[i] = row
		ds.Y[i] = label
	}
	return ds
}

// fixedModel returns a model whose decision function is exactly x[0] + bias.
func fixedModel(version string, bias float64) *Model {
	n := common.FeatureCount
	scaler := &StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for j := range scaler.Scale {
		scaler.Scale[j] = 1
	}
	clf := NewLogisticRegression(1, 100, 1e-4)
	clf.Coef = make([]float64, n)
	clf.Coef[0] = 1
	clf.Intercept = bias
	return &Model{
		Scaler:     scaler,
		Classifier: clf,
		Metadata: ModelMetadata{
			Version:   version,
			ModelType: common.ModelTypeName,
			TrainedAt: time.Now().UTC(),
			Features:  dataset.Names(),
		},
	}
}

func featuresWith(first float64) []float64 {
	x := make([]float64, common.FeatureCount)
	x[0] = first
	return x
}
