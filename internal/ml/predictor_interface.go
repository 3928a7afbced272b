// Package ml provides training and inference for the breast cancer classifier.
// It includes a standardizing scaler, an L2-penalized logistic regression fitted
// with gonum's L-BFGS optimizer, a trainer that evaluates and versions models,
// and a concurrency-safe predictor with hot model swapping and a result cache.
//
// Class 0 is malignant and class 1 is benign throughout the package.
package ml

import "context"

// PredictorInterface defines the interface for predictors used by the HTTP layer.
type PredictorInterface interface {
	// Predict validates and scores one feature vector.
	// Returns ErrModelNotLoaded, ErrInvalidFeatureCount or ErrInvalidFeatureValue
	// (wrapped) on failure.
	Predict(ctx context.Context, features []float64) (Prediction, error)

	// Model returns the active model, or nil when none is loaded.
	Model() *Model

	// NumFeatures is the expected input width.
	NumFeatures() int
}
