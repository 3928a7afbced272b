// Package storage persists trained model versions for the classifier service.
// It uses BoltDB as the underlying storage engine: every version is kept as an
// opaque serialized payload, and a separate bucket records which version is
// active.
//
// The package provides thread-safe operations; BoltDB serializes writers and
// allows concurrent readers.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	modelsBucket = "models" // version -> ModelRecord
	metaBucket   = "meta"   // bookkeeping keys

	activeKey = "active"
)

// ErrNotFound is returned when a version, or the active pointer, is missing.
var ErrNotFound = errors.New("model not found")

// ModelRecord is one stored model version. Payload is produced and consumed by
// the ml package and is not interpreted here.
type ModelRecord struct {
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Store provides persistent storage for model versions using BoltDB.
type Store struct {
	mu sync.RWMutex // guards db; Close takes it exclusively
	db *bbolt.DB
}

// New opens (or creates) the model database under dataPath.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string, file string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, file)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Calling it more than once is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// view and update run fn against the open database. After Close they return
// bbolt.ErrDatabaseNotOpen; Close waits for transactions already running.
func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	return s.db.Update(fn)
}

// SaveModel stores a model version, replacing any record with the same version.
func (s *Store) SaveModel(rec ModelRecord) error {
	if rec.Version == "" {
		return fmt.Errorf("model version is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal model record: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).Put([]byte(rec.Version), data)
	})
}

// GetModel returns the stored record for version.
func (s *Store) GetModel(version string) (ModelRecord, error) {
	var rec ModelRecord
	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(modelsBucket)).Get([]byte(version))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}

// ListModels returns all versions, newest first. Malformed records are skipped.
func (s *Store) ListModels() ([]ModelRecord, error) {
	var records []ModelRecord
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).ForEach(func(_, v []byte) error {
			var rec ModelRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// SetActive marks version as the active model. The version must exist.
func (s *Store) SetActive(version string) error {
	return s.update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(modelsBucket)).Get([]byte(version)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(version))
	})
}

// ActiveVersion returns the active version name, or ErrNotFound.
func (s *Store) ActiveVersion() (string, error) {
	var version string
	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey))
		if v == nil {
			return ErrNotFound
		}
		version = string(v)
		return nil
	})
	return version, err
}

// ActiveModel returns the record of the active version, or ErrNotFound.
func (s *Store) ActiveModel() (ModelRecord, error) {
	version, err := s.ActiveVersion()
	if err != nil {
		return ModelRecord{}, err
	}
	return s.GetModel(version)
}
