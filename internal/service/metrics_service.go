package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the certificate
// pipeline and the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	certificatesIssued *prometheus.CounterVec
	issuanceDuration   prometheus.Observer
	renderDuration     prometheus.Observer
	renderFailures     prometheus.Counter
	batchStatusChanges *prometheus.CounterVec
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	certificatesIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Certificates issued, by certificate type",
	}, []string{"type"})

	issuanceDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_issuance_duration_seconds",
		Help:    "Duration of batch issuance transactions",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Duration of single certificate PDF renders",
		Buckets: prometheus.DefBuckets,
	})

	renderFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certificate_render_failures_total",
		Help: "Render attempts that exhausted their retries",
	})

	batchStatusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graduation_batch_status_changes_total",
		Help: "Batch lifecycle transitions",
	}, []string{"to"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		certificatesIssued, issuanceDuration, renderDuration, renderFailures, batchStatusChanges, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		certificatesIssued: certificatesIssued,
		issuanceDuration:   issuanceDuration,
		renderDuration:     renderDuration,
		renderFailures:     renderFailures,
		batchStatusChanges: batchStatusChanges,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records one cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordCertificateIssued counts one issued certificate.
func (m *MetricsService) RecordCertificateIssued(certificateType string) {
	if m == nil {
		return
	}
	m.certificatesIssued.WithLabelValues(certificateType).Inc()
}

// ObserveIssuance records the duration of one issuance transaction.
func (m *MetricsService) ObserveIssuance(duration time.Duration) {
	if m == nil {
		return
	}
	m.issuanceDuration.Observe(duration.Seconds())
}

// ObserveRender records the duration of one PDF render.
func (m *MetricsService) ObserveRender(duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(duration.Seconds())
}

// RecordRenderFailure counts a render that exhausted its retries.
func (m *MetricsService) RecordRenderFailure() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}

// RecordBatchTransition counts a batch lifecycle change.
func (m *MetricsService) RecordBatchTransition(to string) {
	if m == nil {
		return
	}
	m.batchStatusChanges.WithLabelValues(to).Inc()
}
