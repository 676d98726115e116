package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convotrack"

// Recorder owns a private prometheus registry with the pipeline metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	questions          *prometheus.CounterVec
	routerFallbacks    prometheus.Counter
	degradedRetrievals prometheus.Counter
	stageDuration      *prometheus.HistogramVec
	builds             *prometheus.CounterVec
	indexEntries       prometheus.Gauge
	httpRequests       *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered, by analysis mode and outcome.",
		}, []string{"mode", "outcome"}),
		routerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_fallbacks_total",
			Help:      "Router classifications that fell back to the general mode.",
		}),
		degradedRetrievals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals that returned an empty result because of an error or timeout.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds, by outcome.",
		}, []string{"outcome"}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries in the active index generation.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"route", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.questions,
		r.routerFallbacks,
		r.degradedRetrievals,
		r.stageDuration,
		r.builds,
		r.indexEntries,
		r.httpRequests,
	)
	return r
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Question(mode, outcome string) {
	if r == nil {
		return
	}
	r.questions.WithLabelValues(mode, outcome).Inc()
}

func (r *Recorder) RouterFallback() {
	if r == nil {
		return
	}
	r.routerFallbacks.Inc()
}

func (r *Recorder) RetrievalDegraded() {
	if r == nil {
		return
	}
	r.degradedRetrievals.Inc()
}

// ObserveStage records how long a pipeline stage took since start.
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Recorder) Build(outcome string, entries int) {
	if r == nil {
		return
	}
	r.builds.WithLabelValues(outcome).Inc()
	if outcome == "success" || outcome == "skipped" {
		r.indexEntries.Set(float64(entries))
	}
}

func (r *Recorder) HTTPRequest(route string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}
