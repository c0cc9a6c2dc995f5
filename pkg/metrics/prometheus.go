package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"optionscan/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scanCycles      prometheus.Histogram
	signalsTotal    *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	pendingRequests prometheus.Gauge
	reconnectsTotal prometheus.Counter
	connected       prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		scanCycles: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optionscan_scan_cycle_duration_seconds",
				Help:    "Duration of full watchlist scan cycles",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_signals_total",
				Help: "Total accepted signals by strategy variant",
			},
			[]string{"variant", "symbol"},
		),
		rejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_rejections_total",
				Help: "Total pipeline rejections by variant and reason",
			},
			[]string{"variant", "reason"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionscan_request_duration_seconds",
				Help:    "Correlated gateway request duration by kind",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		requestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_request_errors_total",
				Help: "Correlated gateway requests that timed out or failed",
			},
			[]string{"kind"},
		),
		pendingRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "optionscan_pending_requests",
				Help: "In-flight entries in the request correlation table",
			},
		),
		reconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "optionscan_gateway_reconnects_total",
				Help: "Gateway reconnect attempts",
			},
		),
		connected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "optionscan_gateway_connected",
				Help: "Whether the gateway connection is up (1) or down (0)",
			},
		),
	}
}

// RecordScanCycle records the duration of one full scan cycle.
func (r *Recorder) RecordScanCycle(d time.Duration) {
	r.scanCycles.Observe(d.Seconds())
}

// RecordSignal records an accepted signal.
func (r *Recorder) RecordSignal(variant, symbol string) {
	r.signalsTotal.WithLabelValues(variant, symbol).Inc()
}

// RecordRejection records a pipeline rejection.
func (r *Recorder) RecordRejection(variant string, reason models.RejectReason) {
	r.rejectionsTotal.WithLabelValues(variant, string(reason)).Inc()
}

// RecordRequest records a correlated request's duration and outcome.
func (r *Recorder) RecordRequest(kind string, d time.Duration, ok bool) {
	r.requestDuration.WithLabelValues(kind).Observe(d.Seconds())
	if !ok {
		r.requestErrors.WithLabelValues(kind).Inc()
	}
}

// SetPendingRequests records the correlation table size.
func (r *Recorder) SetPendingRequests(n int) {
	r.pendingRequests.Set(float64(n))
}

// RecordReconnect records one reconnect attempt.
func (r *Recorder) RecordReconnect() {
	r.reconnectsTotal.Inc()
}

// SetConnected records the gateway connection state.
func (r *Recorder) SetConnected(connected bool) {
	if connected {
		r.connected.Set(1)
	} else {
		r.connected.Set(0)
	}
}
