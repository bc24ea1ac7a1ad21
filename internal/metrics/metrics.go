// Package metrics provides the centralized Prometheus metrics registry for
// the prediction engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	GamesProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cbb_predictor",
		Name:      "games_processed_total",
		Help:      "Total number of games replayed through the team registry",
	})
	GamesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cbb_predictor",
		Name:      "games_skipped_total",
		Help:      "Total number of games skipped for unresolvable team identifiers",
	})
	InvalidMeasurementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cbb_predictor",
		Name:      "invalid_measurements_total",
		Help:      "Total number of non-finite measurement inputs skipped",
	})
	CovarianceResetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cbb_predictor",
		Name:      "covariance_resets_total",
		Help:      "Total number of covariance resets after numerical instability",
	})
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cbb_predictor",
		Name:      "predictions_total",
		Help:      "Total number of predictions produced",
	}, []string{"source", "resolved"})
)

// Gauge metrics
var (
	TrackedTeams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cbb_predictor",
		Name:      "tracked_teams",
		Help:      "Number of teams with an active state filter",
	})
)

// Histogram metrics
var (
	PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cbb_predictor",
		Name:      "prediction_duration_seconds",
		Help:      "Duration of prediction computations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(GamesProcessedTotal)
		registry.MustRegister(GamesSkippedTotal)
		registry.MustRegister(InvalidMeasurementsTotal)
		registry.MustRegister(CovarianceResetsTotal)
		registry.MustRegister(PredictionsTotal)

		registry.MustRegister(TrackedTeams)

		registry.MustRegister(PredictionDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordGameProcessed records a successfully applied two-sided game update.
func RecordGameProcessed() {
	GamesProcessedTotal.Inc()
}

// RecordGameSkipped records a game dropped for an unresolvable team.
func RecordGameSkipped() {
	GamesSkippedTotal.Inc()
}

// RecordInvalidMeasurement records a skipped non-finite measurement input.
func RecordInvalidMeasurement() {
	InvalidMeasurementsTotal.Inc()
}

// RecordCovarianceReset records a covariance reset event.
func RecordCovarianceReset() {
	CovarianceResetsTotal.Inc()
}

// RecordPrediction records a produced prediction.
func RecordPrediction(source string, resolved bool, durationSeconds float64) {
	outcome := "true"
	if !resolved {
		outcome = "false"
	}
	PredictionsTotal.WithLabelValues(source, outcome).Inc()
	PredictionDuration.Observe(durationSeconds)
}

// UpdateTrackedTeams updates the tracked-teams gauge.
func UpdateTrackedTeams(count float64) {
	TrackedTeams.Set(count)
}
