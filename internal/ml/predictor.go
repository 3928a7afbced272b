package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionsInc(label string)
	FailuresInc(reason string)
	LatencyObserve(float64)
	ConfidenceObserve(float64)
	CacheHitsInc()
	CacheMissesInc()
	ModelAgeSet(float64)
}

var (
	ErrModelNotLoaded      = errors.New("model not loaded")
	ErrInvalidFeatureCount = errors.New("invalid feature count")
	ErrInvalidFeatureValue = errors.New("invalid feature value")
)

// Probabilities are class probabilities expressed as percentages.
type Probabilities struct {
	Malignant float64 `json:"malignant"`
	Benign    float64 `json:"benign"`
}

// Prediction is the result returned to clients.
type Prediction struct {
	Prediction    int           `json:"prediction"`
	Label         string        `json:"label"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
}

// PredictorConfig contains configuration for the predictor
type PredictorConfig struct {
	NumFeatures int
	CacheSize   int // 0 disables the cache
	CacheTTL    time.Duration
}

// Predictor scores feature vectors against the active model. The model can be
// swapped at any time; in-flight calls finish on the model they started with.
type Predictor struct {
	model       atomic.Pointer[Model]
	cache       *expirable.LRU[string, Prediction]
	metrics     MetricsInterface
	numFeatures int
}

func NewPredictor(config PredictorConfig, metrics MetricsInterface) *Predictor {
	p := &Predictor{
		metrics:     metrics,
		numFeatures: config.NumFeatures,
	}
	if p.numFeatures <= 0 {
		p.numFeatures = common.FeatureCount
	}
	if config.CacheSize > 0 {
		p.cache = expirable.NewLRU[string, Prediction](config.CacheSize, nil, config.CacheTTL)
	}
	return p
}

// Load validates m and makes it the active model.
func (p *Predictor) Load(m *Model) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if m.NumFeatures() != p.numFeatures {
		return fmt.Errorf("load model: expects %d features, predictor serves %d", m.NumFeatures(), p.numFeatures)
	}

	prev := p.model.Swap(m)
	if p.cache != nil {
		p.cache.Purge()
	}

	ev := log.Info().
		Str("version", m.Metadata.Version).
		Float64("test_accuracy", m.Metadata.TestAccuracy)
	if prev != nil {
		ev = ev.Str("previous", prev.Metadata.Version)
	}
	ev.Msg("model loaded")
	return nil
}

// Model returns the active model, or nil.
func (p *Predictor) Model() *Model {
	return p.model.Load()
}

// Loaded reports whether a model is active.
func (p *Predictor) Loaded() bool {
	return p.model.Load() != nil
}

// NumFeatures returns the expected input width.
func (p *Predictor) NumFeatures() int {
	return p.numFeatures
}

// Predict validates features, scales them and returns the class with rounded
// percentage probabilities.
func (p *Predictor) Predict(ctx context.Context, features []float64) (Prediction, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		p.fail("canceled")
		return Prediction{}, err
	}

	m := p.model.Load()
	if m == nil {
		p.fail("not_loaded")
		return Prediction{}, ErrModelNotLoaded
	}
	if err := p.validate(features); err != nil {
		p.fail("invalid_input")
		return Prediction{}, err
	}

	var key string
	if p.cache != nil {
		key = cacheKey(m.Metadata.Version, features)
		if cached, ok := p.cache.Get(key); ok {
			p.observe(m, cached, true)
			return cached, nil
		}
	}

	proba, err := m.Score(features)
	if err != nil {
		p.fail("inference")
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	class := dataset.Malignant
	if proba[dataset.Benign] > proba[dataset.Malignant] {
		class = dataset.Benign
	}
	pred := Prediction{
		Prediction: class,
		Label:      dataset.LabelName(class),
		Confidence: round2(math.Max(proba[0], proba[1]) * 100),
		Probabilities: Probabilities{
			Malignant: round2(proba[dataset.Malignant] * 100),
			Benign:    round2(proba[dataset.Benign] * 100),
		},
	}

	if p.cache != nil {
		p.cache.Add(key, pred)
	}
	p.observe(m, pred, false)
	return pred, nil
}

func (p *Predictor) validate(features []float64) error {
	if len(features) != p.numFeatures {
		return fmt.Errorf("%w: expected %d features, got %d", ErrInvalidFeatureCount, p.numFeatures, len(features))
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: feature %d is not finite", ErrInvalidFeatureValue, i)
		}
	}
	return nil
}

func (p *Predictor) observe(m *Model, pred Prediction, cached bool) {
	if p.metrics == nil {
		return
	}
	if cached {
		p.metrics.CacheHitsInc()
	} else if p.cache != nil {
		p.metrics.CacheMissesInc()
	}
	p.metrics.PredictionsInc(pred.Label)
	p.metrics.ConfidenceObserve(pred.Confidence / 100)
	p.metrics.ModelAgeSet(time.Since(m.Metadata.TrainedAt).Seconds())
}

func (p *Predictor) fail(reason string) {
	if p.metrics != nil {
		p.metrics.FailuresInc(reason)
	}
}

func cacheKey(version string, features []float64) string {
	var b strings.Builder
	b.Grow(len(version) + len(features)*17)
	b.WriteString(version)
	for _, v := range features {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
