package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Round metrics
	roundCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fl_rounds_total",
			Help: "Total number of federated rounds by status",
		},
		[]string{"status"},
	)

	roundDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fl_round_duration_seconds",
			Help:    "Duration of federated rounds in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	distributedLossGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fl_distributed_loss",
			Help: "Example-weighted average client loss of the last round",
		},
	)

	distributedAccuracyGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fl_distributed_accuracy",
			Help: "Example-weighted average client accuracy of the last round",
		},
	)

	// Client metrics
	clientFitCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fl_client_fit_total",
			Help: "Total number of client fit calls by status",
		},
		[]string{"status"},
	)

	clientFitDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fl_client_fit_duration_seconds",
			Help:    "Duration of client fit calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// RecordRound records the outcome and duration of one federated round.
func RecordRound(status string, duration time.Duration) {
	roundCounter.WithLabelValues(status).Inc()
	roundDurationHistogram.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDistributedMetrics updates the last-round loss/accuracy gauges.
func RecordDistributedMetrics(loss, accuracy float64) {
	distributedLossGauge.Set(loss)
	distributedAccuracyGauge.Set(accuracy)
}

// RecordClientFit records the outcome and duration of one client fit call.
func RecordClientFit(status string, duration time.Duration) {
	clientFitCounter.WithLabelValues(status).Inc()
	clientFitDurationHistogram.WithLabelValues(status).Observe(duration.Seconds())
}
