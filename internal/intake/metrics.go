package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formflow_files_total",
			Help: "Files reaching a terminal state",
		},
		[]string{"state"}, // succeeded, failed, skipped_duplicate, skipped_non_image
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formflow_failures_total",
			Help: "Failed files by error code",
		},
		[]string{"code"},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formflow_processing_duration_seconds",
			Help:    "Time from first attempt to a terminal state",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
	)

	queueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "formflow_queue_length",
			Help: "Files waiting to be processed",
		},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formflow_retries_total",
			Help: "Processing attempts after the first",
		},
	)
)

// MetricsObserver exports orchestrator events to Prometheus.
type MetricsObserver struct {
	pending func() int
}

// NewMetricsObserver creates an observer. pending reports the queue length
// and may be nil.
func NewMetricsObserver(pending func() int) *MetricsObserver {
	return &MetricsObserver{pending: pending}
}

func (m *MetricsObserver) OnEvent(e Event) {
	switch {
	case e.State == StateProcessing && e.Attempt > 1:
		retriesTotal.Inc()
	case e.State.Terminal():
		filesTotal.WithLabelValues(string(e.State)).Inc()
		if e.State == StateFailed {
			failuresTotal.WithLabelValues(e.Code).Inc()
		}
		if e.Duration > 0 {
			processingDuration.Observe(e.Duration.Seconds())
		}
	}
	if m.pending != nil {
		queueLength.Set(float64(m.pending()))
	}
}
