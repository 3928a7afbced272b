package ml

import (
	"context"
	"fmt"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// DatasetSource yields the labeled training data.
type DatasetSource interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// TrainingMetrics defines metrics methods needed by the trainer
type TrainingMetrics interface {
	TrainingRunsInc(success bool)
	TrainingDurationObserve(float64)
	ModelAccuracySet(split string, v float64)
}

// TrainerConfig contains the split and classifier hyperparameters.
type TrainerConfig struct {
	TestSize float64
	Seed     int64
	C        float64
	MaxIter  int
	Tol      float64
}

// Trainer fits a scaler and classifier on a fresh split of the dataset.
type Trainer struct {
	config  TrainerConfig
	source  DatasetSource
	metrics TrainingMetrics
}

func NewTrainer(config TrainerConfig, source DatasetSource, metrics TrainingMetrics) *Trainer {
	if config.TestSize <= 0 || config.TestSize >= 1 {
		config.TestSize = common.DefaultTestSize
	}
	return &Trainer{config: config, source: source, metrics: metrics}
}

// Train loads the data, splits it, fits the scaler on the train split, fits
// the classifier on the scaled train split and evaluates both splits. The
// returned model is not persisted.
func (t *Trainer) Train(ctx context.Context) (*Model, error) {
	start := time.Now()
	model, err := t.train(ctx)

	if t.metrics != nil {
		t.metrics.TrainingRunsInc(err == nil)
		t.metrics.TrainingDurationObserve(time.Since(start).Seconds())
		if err == nil {
			t.metrics.ModelAccuracySet("train", model.Metadata.TrainAccuracy)
			t.metrics.ModelAccuracySet("test", model.Metadata.TestAccuracy)
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("model training failed")
		return nil, err
	}

	log.Info().
		Str("version", model.Metadata.Version).
		Int("train_rows", model.Metadata.TrainingRows).
		Int("test_rows", model.Metadata.TestRows).
		Float64("train_accuracy", model.Metadata.TrainAccuracy).
		Float64("test_accuracy", model.Metadata.TestAccuracy).
		Int("iterations", model.Classifier.Iterations).
		Dur("took", time.Since(start)).
		Msg("model trained")
	return model, nil
}

func (t *Trainer) train(ctx context.Context) (*Model, error) {
	ds, err := t.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	train, test, err := dataset.Split(ds, t.config.TestSize, t.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	X, err := toDense(train.X)
	if err != nil {
		return nil, err
	}

	scaler := &StandardScaler{}
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}

	clf := NewLogisticRegression(t.config.C, t.config.MaxIter, t.config.Tol)
	if err := clf.Fit(scaled, train.Y); err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := &Model{Scaler: scaler, Classifier: clf}

	trainEval, err := Evaluate(model, train.X, train.Y)
	if err != nil {
		return nil, err
	}
	testEval, err := Evaluate(model, test.X, test.Y)
	if err != nil {
		return nil, err
	}

	permutation, err := permutationImportance(model, test.X, test.Y, t.config.Seed)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	model.Metadata = ModelMetadata{
		Version:       newVersion(now),
		ModelType:     common.ModelTypeName,
		TrainedAt:     now,
		Features:      append([]string(nil), ds.FeatureNames...),
		TrainingRows:  train.Len(),
		TestRows:      test.Len(),
		TrainAccuracy: trainEval.Accuracy,
		TestAccuracy:  testEval.Accuracy,
		Evaluation:    testEval,
		Params: TrainingParams{
			TestSize:   t.config.TestSize,
			Seed:       t.config.Seed,
			C:          clf.C,
			MaxIter:    clf.MaxIter,
			Iterations: clf.Iterations,
			Status:     clf.Status,
		},
		Importance: rankImportance(ds.FeatureNames, clf.Coef, permutation),
	}
	return model, nil
}

func toDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	d := len(rows[0])
	data := make([]float64, 0, len(rows)*d)
	for i, r := range rows {
		if len(r) != d {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(r), d)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), d, data), nil
}

func newVersion(t time.Time) string {
	return t.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}
