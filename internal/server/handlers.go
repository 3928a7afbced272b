package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"
	"cancer-detect/internal/ml"
	"cancer-detect/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes = 1 << 20
	topFeatures  = 5

	msgNotNumeric = "Features must be an array of numbers"
)

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type featuresResponse struct {
	Features []string `json:"features"`
	Count    int      `json:"count"`
}

type modelInfoResponse struct {
	ModelType     string   `json:"model_type"`
	FeaturesCount int      `json:"features_count"`
	Classes       []string `json:"classes"`
	Description   string   `json:"description"`
	ModelLoaded   bool     `json:"model_loaded"`

	Version       string                 `json:"version,omitempty"`
	TrainedAt     *time.Time             `json:"trained_at,omitempty"`
	TrainAccuracy float64                `json:"train_accuracy,omitempty"`
	TestAccuracy  float64                `json:"test_accuracy,omitempty"`
	Evaluation    *ml.Evaluation         `json:"evaluation,omitempty"`
	TopFeatures   []ml.FeatureImportance `json:"top_features,omitempty"`
}

type batchResponse struct {
	Results []ml.Prediction `json:"results"`
	Count   int             `json:"count"`
}

type versionsResponse struct {
	Versions []ml.ModelVersion `json:"versions"`
	Count    int               `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		ModelLoaded: s.predictor.Model() != nil,
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	names := dataset.Names()
	writeJSON(w, http.StatusOK, featuresResponse{Features: names, Count: len(names)})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	resp := modelInfoResponse{
		ModelType:     common.ModelTypeName,
		FeaturesCount: s.predictor.NumFeatures(),
		Classes: []string{
			fmt.Sprintf("%s (%d)", dataset.LabelName(dataset.Malignant), dataset.Malignant),
			fmt.Sprintf("%s (%d)", dataset.LabelName(dataset.Benign), dataset.Benign),
		},
		Description: common.ModelDescription,
	}

	if m := s.predictor.Model(); m != nil {
		md := m.Metadata
		resp.ModelLoaded = true
		resp.Version = md.Version
		resp.TrainedAt = &md.TrainedAt
		resp.TrainAccuracy = md.TrainAccuracy
		resp.TestAccuracy = md.TestAccuracy
		resp.Evaluation = &md.Evaluation
		resp.TopFeatures = md.Importance
		if len(resp.TopFeatures) > topFeatures {
			resp.TopFeatures = resp.TopFeatures[:topFeatures]
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, ok := body["features"]
	if !ok || isNull(raw) {
		writeError(w, http.StatusBadRequest, "No features provided")
		return
	}
	features, ok := decodeFeatures(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, msgNotNumeric)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	pred, err := s.predictor.Predict(ctx, features)
	if err != nil {
		status, msg := s.predictError(err, len(features))
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

// handlePredictBatch scores every sample or none: the first invalid sample
// fails the whole request and is named by index.
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Samples []json.RawMessage `json:"samples"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "No samples provided")
		return
	}
	if len(body.Samples) > common.MaxBatchSamples {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many samples: %d (max %d)", len(body.Samples), common.MaxBatchSamples))
		return
	}
	want := s.predictor.NumFeatures()
	samples := make([][]float64, len(body.Samples))
	for i, raw := range body.Samples {
		sample, ok := decodeFeatures(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Sample %d: %s", i, msgNotNumeric))
			return
		}
		if len(sample) != want {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Sample %d: Expected %d features, got %d", i, want, len(sample)))
			return
		}
		samples[i] = sample
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	results := make([]ml.Prediction, 0, len(samples))
	for i, sample := range samples {
		pred, err := s.predictor.Predict(ctx, sample)
		if err != nil {
			status, msg := s.predictError(err, len(sample))
			writeError(w, status, fmt.Sprintf("Sample %d: %s", i, msg))
			return
		}
		results = append(results, pred)
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	versions, err := s.models.Versions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list model versions")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if versions == nil {
		versions = []ml.ModelVersion{}
	}
	writeJSON(w, http.StatusOK, versionsResponse{Versions: versions, Count: len(versions)})
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	md, err := s.models.Retrain(r.Context())
	if err != nil {
		s.modelError(w, "retrain", err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	md, err := s.models.Activate(version)
	if err != nil {
		s.modelError(w, "activate", err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	md, err := s.models.Rollback()
	if err != nil {
		s.modelError(w, "rollback", err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// predictError maps predictor failures to a status and client message.
func (s *Server) predictError(err error, got int) (int, string) {
	switch {
	case errors.Is(err, ml.ErrInvalidFeatureCount):
		return http.StatusBadRequest, fmt.Sprintf("Expected %d features, got %d", s.predictor.NumFeatures(), got)
	case errors.Is(err, ml.ErrInvalidFeatureValue):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ml.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "Model not loaded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Prediction timed out"
	default:
		log.Error().Err(err).Msg("Prediction failed")
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) modelError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ml.ErrTrainingInProgress),
		errors.Is(err, ml.ErrNoPreviousVersion),
		errors.Is(err, ml.ErrNoActiveVersion):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("op", op).Msg("Model operation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody reads a JSON object. An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("Invalid JSON body: %v", err)
	}
	return nil
}

// decodeFeatures reads a JSON array in which every element is a number.
// Elements that are null or of another type make it fail.
func decodeFeatures(raw json.RawMessage) ([]float64, bool) {
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	features := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			return nil, false
		}
		features[i] = *v
	}
	return features, true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
