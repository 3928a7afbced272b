package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cancer-detect/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrTrainingInProgress is returned when a retrain is requested while another
// one is still running.
var ErrTrainingInProgress = errors.New("training already in progress")

// ModelTrainer produces a freshly fitted model.
type ModelTrainer interface {
	Train(ctx context.Context) (*Model, error)
}

// Manager ties the trainer, the version store and the live predictor together:
// every successful retrain, activation or rollback ends with the predictor
// serving the newly active version.
type Manager struct {
	training  sync.Mutex
	switching sync.Mutex // held across the store switch and predictor.Load
	trainer   ModelTrainer
	models    *ModelManager
	predictor *Predictor
}

func NewManager(trainer ModelTrainer, models *ModelManager, predictor *Predictor) *Manager {
	return &Manager{trainer: trainer, models: models, predictor: predictor}
}

// Bootstrap loads the active stored version into the predictor. It trains a
// new version when nothing is stored or usable, or when retrain is set.
func (m *Manager) Bootstrap(ctx context.Context, retrain bool) error {
	if !retrain {
		current, err := m.models.Current()
		switch {
		case err == nil:
			err := m.predictor.Load(current)
			if err == nil {
				return nil
			}
			log.Warn().Err(err).Msg("active model rejected by predictor, retraining")
		case errors.Is(err, storage.ErrNotFound):
			log.Info().Msg("no active model stored, training")
		default:
			log.Warn().Err(err).Msg("active model unreadable, retraining")
		}
	}

	_, err := m.Retrain(ctx)
	return err
}

// Retrain fits, stores and activates a new version.
func (m *Manager) Retrain(ctx context.Context) (ModelMetadata, error) {
	if !m.training.TryLock() {
		return ModelMetadata{}, ErrTrainingInProgress
	}
	defer m.training.Unlock()

	model, err := m.trainer.Train(ctx)
	if err != nil {
		return ModelMetadata{}, err
	}
	if err := m.models.AddVersion(model); err != nil {
		return ModelMetadata{}, err
	}
	return m.Activate(model.Metadata.Version)
}

// Activate switches the store and the predictor to version.
func (m *Manager) Activate(version string) (ModelMetadata, error) {
	m.switching.Lock()
	defer m.switching.Unlock()

	model, err := m.models.Activate(version)
	if err != nil {
		return ModelMetadata{}, err
	}
	if err := m.predictor.Load(model); err != nil {
		return ModelMetadata{}, fmt.Errorf("activate %s: %w", version, err)
	}
	return model.Metadata, nil
}

// Rollback reactivates the previous version.
func (m *Manager) Rollback() (ModelMetadata, error) {
	m.switching.Lock()
	defer m.switching.Unlock()

	model, err := m.models.Rollback()
	if err != nil {
		return ModelMetadata{}, err
	}
	if err := m.predictor.Load(model); err != nil {
		return ModelMetadata{}, fmt.Errorf("rollback: %w", err)
	}
	return model.Metadata, nil
}

// Versions lists stored versions, newest first.
func (m *Manager) Versions() ([]ModelVersion, error) {
	return m.models.ListVersions()
}
