package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	drepo "SignalFeed/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal    *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
	archivedTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	connState       prometheus.Gauge
	subscribedCount prometheus.Gauge
	storeSize       prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfeed_signals_total",
				Help: "Total number of signals accepted into the feed",
			},
			[]string{"origin", "symbol"},
		),
		duplicatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfeed_duplicates_total",
				Help: "Total number of signals dropped as duplicates",
			},
			[]string{"origin"},
		),
		archivedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfeed_archived_total",
				Help: "Total number of signals forwarded to the archive backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfeed_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalfeed_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		connState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalfeed_connection_state",
				Help: "Push channel state (0=disconnected 1=connecting 2=connected 3=errored)",
			},
		),
		subscribedCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalfeed_subscribed_symbols",
				Help: "Number of symbols in the active subscription scope",
			},
		),
		storeSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalfeed_store_size",
				Help: "Number of signals held in the feed store",
			},
		),
	}
}

// RecordSignal records a signal accepted into the feed.
func (r *Recorder) RecordSignal(origin, symbol string) {
	r.signalsTotal.WithLabelValues(origin, symbol).Inc()
}

// RecordDuplicate records a signal dropped because its ID was already present.
func (r *Recorder) RecordDuplicate(origin string) {
	r.duplicatesTotal.WithLabelValues(origin).Inc()
}

// RecordArchived records a signal forwarded to an archive backend.
func (r *Recorder) RecordArchived(backend, symbol string) {
	r.archivedTotal.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetConnectionState exports the push channel state machine position.
func (r *Recorder) SetConnectionState(s drepo.ConnState) {
	r.connState.Set(float64(s))
}

// RecordSubscribe records the size of the active subscription scope.
func (r *Recorder) RecordSubscribe(symbols int) {
	r.subscribedCount.Set(float64(symbols))
}

// SetStoreSize records how many signals the feed store currently holds.
func (r *Recorder) SetStoreSize(n int) {
	r.storeSize.Set(float64(n))
}
