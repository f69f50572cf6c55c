package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dataset load metrics
	DatasetLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "popdash_dataset_load_duration_seconds",
			Help:    "Duration of dataset loads in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	DatasetLoadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popdash_dataset_load_errors_total",
			Help: "Total number of failed dataset loads",
		},
	)

	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popdash_dataset_rows",
			Help: "Number of country rows in the cached dataset",
		},
	)

	// Projection metrics
	ProjectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popdash_projection_duration_seconds",
			Help:    "Duration of projection computations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"view"},
	)

	TrendSkippedCountries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popdash_trend_skipped_countries_total",
			Help: "Selected countries skipped because they were not in the filtered set",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popdash_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popdash_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordDatasetLoad records the outcome of one dataset load.
func RecordDatasetLoad(duration time.Duration, rows int, err error) {
	DatasetLoadDuration.Observe(duration.Seconds())
	if err != nil {
		DatasetLoadErrors.Inc()
		return
	}
	DatasetRows.Set(float64(rows))
}

// ObserveProjection records how long one view took to compute.
func ObserveProjection(view string, start time.Time) {
	ProjectionDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
