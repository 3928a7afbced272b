package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the ml package and
// the HTTP layer depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) FailuresInc(reason string) {
	w.m.Failures.WithLabelValues(reason).Inc()
}

func (w *MetricsWrapper) LatencyObserve(v float64) {
	w.m.Latency.Observe(v)
}

func (w *MetricsWrapper) ConfidenceObserve(v float64) {
	w.m.Confidence.Observe(v)
}

func (w *MetricsWrapper) CacheHitsInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissesInc() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) ModelAgeSet(v float64) {
	w.m.ModelAgeSeconds.Set(v)
}

func (w *MetricsWrapper) TrainingRunsInc(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	w.m.TrainingRuns.WithLabelValues(result).Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(v float64) {
	w.m.TrainingDuration.Observe(v)
}

func (w *MetricsWrapper) ModelAccuracySet(split string, v float64) {
	w.m.ModelAccuracy.WithLabelValues(split).Set(v)
}

// HTTPObserve records one finished request. route is the mux path template,
// not the raw URL, to keep label cardinality bounded.
func (w *MetricsWrapper) HTTPObserve(route, method string, code int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}
