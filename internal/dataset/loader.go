package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// LoaderConfig configures where the dataset lives and whether it may be
// downloaded.
type LoaderConfig struct {
	Path     string
	URL      string
	Download bool
	Timeout  time.Duration
}

// Loader reads the dataset from disk, downloading it first when allowed and
// the file is absent.
type Loader struct {
	cfg  LoaderConfig
	rest *resty.Client
}

func NewLoader(cfg LoaderConfig) *Loader {
	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetRetryCount(2).SetRetryWaitTime(500 * time.Millisecond)
	return &Loader{cfg: cfg, rest: r}
}

// Load returns the parsed dataset. A downloaded file is cached on disk only
// after it parses.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	data, err := os.ReadFile(l.cfg.Path)
	downloaded := false
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && l.cfg.Download:
		data, err = l.fetch(ctx)
		if err != nil {
			return nil, err
		}
		downloaded = true
	default:
		return nil, fmt.Errorf("read dataset %s: %w", l.cfg.Path, err)
	}

	ds, err := Parse(bytes.NewReader(data))
	if err != nil {
		if downloaded {
			return nil, fmt.Errorf("parse downloaded dataset %s: %w", l.cfg.URL, err)
		}
		return nil, fmt.Errorf("parse dataset %s: %w", l.cfg.Path, err)
	}
	if downloaded {
		if err := writeAtomic(l.cfg.Path, data); err != nil {
			return nil, fmt.Errorf("cache dataset: %w", err)
		}
	}

	log.Info().
		Str("path", l.cfg.Path).
		Int("samples", ds.Len()).
		Int("features", len(ds.FeatureNames)).
		Msg("dataset loaded")
	return ds, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.cfg.URL == "" {
		return nil, fmt.Errorf("dataset %s not found and no download URL configured", l.cfg.Path)
	}

	log.Info().Str("url", l.cfg.URL).Str("path", l.cfg.Path).Msg("downloading dataset")
	resp, err := l.rest.R().SetContext(ctx).Get(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("download dataset: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download dataset: unexpected status %s", resp.Status())
	}

	return resp.Body(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dataset-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
