package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "rpc_scanner"

// Recorder exports probe and scan observations as Prometheus collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	probesTotal   *prometheus.CounterVec
	probeAttempts *prometheus.HistogramVec
	probeDuration *prometheus.HistogramVec

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	nodeScore    prometheus.Histogram
	lastScore    *prometheus.GaugeVec
}

// NewRecorder registers the scanner collectors with reg.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,

		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "probe",
				Name:      "total",
				Help:      "Total number of RPC probes, labeled by method and final outcome",
			},
			[]string{"method", "outcome"},
		),
		probeAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "probe",
				Name:      "attempts",
				Help:      "Attempts used per probe",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
			[]string{"method"},
		),
		probeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "probe",
				Name:      "duration_seconds",
				Help:      "Probe duration in seconds, summed over attempts",
				Buckets:   []float64{.05, .1, .25, .5, 1, 1.5, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),

		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "scans_total",
				Help:      "Total number of node scans, labeled by resulting status",
			},
			[]string{"status"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "scan_duration_seconds",
				Help:      "Full node scan duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
		),
		nodeScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "score",
				Help:      "Distribution of node scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 6),
			},
		),
		lastScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "last_score",
				Help:      "Score of the most recent scan, labeled by status",
			},
			[]string{"status"},
		),
	}
}

// ObserveProbe records the outcome of one retried probe.
func (r *Recorder) ObserveProbe(method, outcome string, attempts int, elapsed time.Duration) {
	r.probesTotal.WithLabelValues(method, outcome).Inc()
	r.probeAttempts.WithLabelValues(method).Observe(float64(attempts))
	r.probeDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveScan records a classified node scan.
func (r *Recorder) ObserveScan(status string, score int, elapsed time.Duration) {
	r.scansTotal.WithLabelValues(status).Inc()
	r.scanDuration.Observe(elapsed.Seconds())
	r.nodeScore.Observe(float64(score))
	r.lastScore.WithLabelValues(status).Set(float64(score))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
}
