package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobilehouse",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mobilehouse",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	SalesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobilehouse",
		Name:      "sales_recorded_total",
		Help:      "Sale records appended, by shop.",
	}, []string{"shop"})

	DashboardCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobilehouse",
		Name:      "dashboard_cache_lookups_total",
		Help:      "Dashboard cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	UndecodableDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobilehouse",
		Name:      "sale_documents_skipped_total",
		Help:      "Stored sale documents skipped because they could not be decoded.",
	}, []string{"backend"})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobilehouse",
		Name:      "sale_events_published_total",
		Help:      "sale.recorded events by publish outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		SalesRecorded,
		DashboardCache,
		UndecodableDocuments,
		EventsPublished,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
