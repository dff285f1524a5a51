package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wandermap_sessions_active",
		Help: "Number of open map sessions",
	})
	GeometryLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wandermap_geometry_loads_total",
		Help: "Geometry loads by source and result",
	}, []string{"source", "result"})
	GeometryLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wandermap_geometry_load_duration_ms",
		Help:    "Geometry load and scene build duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	VisitMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wandermap_visit_mutations_total",
		Help: "Visit store mutations by kind",
	}, []string{"kind"})
	PointerEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wandermap_pointer_events_total",
		Help: "Pointer events handled by type",
	}, []string{"type"})
	ResyncsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wandermap_subscriber_resyncs_total",
		Help: "Full-frame resyncs sent to lagging subscribers",
	})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wandermap_exports_total",
		Help: "Map exports by format",
	}, []string{"format"})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wandermap_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(GeometryLoadsTotal)
	prometheus.MustRegister(GeometryLoadDurationMs)
	prometheus.MustRegister(VisitMutationsTotal)
	prometheus.MustRegister(PointerEventsTotal)
	prometheus.MustRegister(ResyncsTotal)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
