package ml

import (
	"errors"
	"fmt"
	"sync"

	"cancer-detect/internal/storage"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoPreviousVersion = errors.New("no previous version available for rollback")
	ErrNoActiveVersion   = errors.New("no active version found")
)

// ModelStore is the persistence the model manager needs.
type ModelStore interface {
	SaveModel(rec storage.ModelRecord) error
	GetModel(version string) (storage.ModelRecord, error)
	ListModels() ([]storage.ModelRecord, error)
	SetActive(version string) error
	ActiveVersion() (string, error)
}

// ModelVersion is a stored version as listed to operators.
type ModelVersion struct {
	Version  string        `json:"version"`
	IsActive bool          `json:"is_active"`
	Metadata ModelMetadata `json:"metadata"`
}

// ModelManager handles model versioning and rollback
type ModelManager struct {
	mu    sync.Mutex
	store ModelStore
}

// NewModelManager creates a new model manager
func NewModelManager(store ModelStore) *ModelManager {
	return &ModelManager{store: store}
}

// AddVersion persists m as a new, inactive version.
func (mm *ModelManager) AddVersion(m *Model) error {
	rec, err := m.Record()
	if err != nil {
		return err
	}
	if err := mm.store.SaveModel(rec); err != nil {
		return fmt.Errorf("save model %s: %w", rec.Version, err)
	}
	log.Info().Str("version", rec.Version).Msg("model version stored")
	return nil
}

// Activate marks version active and returns the decoded model.
func (mm *ModelManager) Activate(version string) (*Model, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activate(version)
}

func (mm *ModelManager) activate(version string) (*Model, error) {
	rec, err := mm.store.GetModel(version)
	if err != nil {
		return nil, err
	}
	m, err := ModelFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := mm.store.SetActive(version); err != nil {
		return nil, fmt.Errorf("activate %s: %w", version, err)
	}
	log.Info().Str("version", version).Msg("model version activated")
	return m, nil
}

// Rollback activates the version stored immediately before the active one.
func (mm *ModelManager) Rollback() (*Model, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	records, err := mm.store.ListModels()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrNoPreviousVersion
	}

	active, err := mm.store.ActiveVersion()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoActiveVersion
		}
		return nil, err
	}

	for i, rec := range records {
		if rec.Version != active {
			continue
		}
		// records are newest first, so the previous version is the next one
		if i+1 < len(records) {
			return mm.activate(records[i+1].Version)
		}
		break
	}
	return nil, ErrNoPreviousVersion
}

// Current returns the active model, or storage.ErrNotFound when none is set.
func (mm *ModelManager) Current() (*Model, error) {
	version, err := mm.store.ActiveVersion()
	if err != nil {
		return nil, err
	}
	rec, err := mm.store.GetModel(version)
	if err != nil {
		return nil, err
	}
	return ModelFromRecord(rec)
}

// ListVersions returns all model versions, newest first.
func (mm *ModelManager) ListVersions() ([]ModelVersion, error) {
	records, err := mm.store.ListModels()
	if err != nil {
		return nil, err
	}
	active, err := mm.store.ActiveVersion()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	versions := make([]ModelVersion, 0, len(records))
	for _, rec := range records {
		m, err := ModelFromRecord(rec)
		if err != nil {
			log.Warn().Err(err).Str("version", rec.Version).Msg("skipping unreadable model version")
			continue
		}
		versions = append(versions, ModelVersion{
			Version:  rec.Version,
			IsActive: rec.Version == active,
			Metadata: m.Metadata,
		})
	}
	return versions, nil
}
