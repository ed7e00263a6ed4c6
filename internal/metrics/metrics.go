package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	jobsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "jobs_opened_total",
			Help:      "Number of print jobs for which a renderer was started.",
		},
	)
	jobsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "jobs_closed_total",
			Help:      "Number of print jobs finalized, by reason.",
		}, []string{"reason"},
	)
	jobOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lptsplit",
			Name:      "job_open",
			Help:      "1 while a renderer is live, 0 otherwise.",
		},
	)
	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lptsplit",
			Name:      "job_duration_seconds",
			Help:      "Time between opening and closing a job document.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	linesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "lines_total",
			Help:      "Printer lines read from the monitored file.",
		},
	)
	markersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "markers_total",
			Help:      "End-of-job markers seen.",
		},
	)
	renderBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "render_bytes_total",
			Help:      "Bytes written to renderer input.",
		},
	)
	rendererFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "renderer_failures_total",
			Help:      "Renderer failures by kind (spawn, write, exit).",
		}, []string{"kind"},
	)
	idlePolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lptsplit",
			Name:      "idle_polls_total",
			Help:      "Polls that found no new data.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{jobsOpened, jobsClosed, jobOpen, jobDuration, linesTotal, markersTotal, renderBytes, rendererFailures, idlePolls}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncJobOpened() {
	if regOK.Load() {
		jobsOpened.Inc()
	}
}

func IncJobClosed(reason string) {
	if regOK.Load() {
		jobsClosed.WithLabelValues(reason).Inc()
	}
}

func SetJobOpen(open bool) {
	if regOK.Load() {
		var v float64
		if open {
			v = 1
		}
		jobOpen.Set(v)
	}
}

func ObserveJobDuration(seconds float64) {
	if regOK.Load() {
		jobDuration.Observe(seconds)
	}
}

func IncLines() {
	if regOK.Load() {
		linesTotal.Inc()
	}
}

func IncMarkers() {
	if regOK.Load() {
		markersTotal.Inc()
	}
}

func AddRenderBytes(n int) {
	if regOK.Load() && n > 0 {
		renderBytes.Add(float64(n))
	}
}

func IncRendererFailure(kind string) {
	if regOK.Load() {
		rendererFailures.WithLabelValues(kind).Inc()
	}
}

func IncIdlePolls() {
	if regOK.Load() {
		idlePolls.Inc()
	}
}
