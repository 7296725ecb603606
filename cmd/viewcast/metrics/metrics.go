// Package metrics provides Prometheus instrumentation for the viewcast board.
//
// Metrics exposed:
//   - viewcast_fit_seconds: Histogram of model fit duration
//   - viewcast_training_records: Gauge of records the model was fitted on
//   - viewcast_model_ready: Gauge, 1 once the model is fitted
//   - viewcast_batch_seconds: Histogram of candidate batch scoring duration
//   - viewcast_batch_size: Histogram of candidates per batch
//   - viewcast_predictions_total: Counter of scored candidates by platform and decision
//   - viewcast_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the board.
type Metrics struct {
	FitSeconds       prometheus.Histogram
	TrainingRecords  prometheus.Gauge
	ModelReady       prometheus.Gauge
	BatchSeconds     prometheus.Histogram
	BatchSize        prometheus.Histogram
	PredictionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewcast_fit_seconds",
			Help:    "Time spent fitting the view model",
			Buckets: prometheus.DefBuckets,
		}),

		TrainingRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viewcast_training_records",
			Help: "Number of historical records the model was fitted on",
		}),

		ModelReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viewcast_model_ready",
			Help: "1 when the view model is fitted and serving, 0 otherwise",
		}),

		BatchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewcast_batch_seconds",
			Help:    "Time spent generating and scoring a candidate batch",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewcast_batch_size",
			Help:    "Candidates scored per batch",
			Buckets: []float64{1, 5, 10, 20, 50, 100},
		}),

		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewcast_predictions_total",
			Help: "Scored candidates by platform and decision",
		}, []string{"platform", "decision"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewcast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordFit records a completed model fit.
func (m *Metrics) RecordFit(seconds float64, records int) {
	m.FitSeconds.Observe(seconds)
	m.TrainingRecords.Set(float64(records))
	m.ModelReady.Set(1)
}

// ObserveBatch records the duration and size of a scored batch.
func (m *Metrics) ObserveBatch(size int, seconds float64) {
	m.BatchSize.Observe(float64(size))
	m.BatchSeconds.Observe(seconds)
}

// RecordPrediction counts one scored candidate.
func (m *Metrics) RecordPrediction(platform, decision string) {
	m.PredictionsTotal.WithLabelValues(platform, decision).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
