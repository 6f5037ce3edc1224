package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	txDuration      *prometheus.HistogramVec
	provisioning    *prometheus.CounterVec
	cache           *prometheus.CounterVec

	requestCount uint64
	txCount      uint64
}

// MetricsSnapshot is a lightweight summary for the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal     uint64    `json:"requests_total"`
	TransactionsTotal uint64    `json:"transactions_total"`
	Goroutines        int       `json:"goroutines"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Workflow transition attempts by entity, event and outcome code",
	}, []string{"entity", "event", "outcome"})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_transaction_duration_seconds",
		Help:    "Duration of workflow transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	provisioning := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provisioning_jobs_total",
		Help: "Provisioning jobs handled by type and result",
	}, []string{"type", "result"})

	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Read cache lookups by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, txDuration, provisioning, cache, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		txDuration:      txDuration,
		provisioning:    provisioning,
		cache:           cache,
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
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveTransition counts a workflow transition attempt.
func (m *MetricsService) ObserveTransition(entity, event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, event, outcome).Inc()
}

// ObserveDBTransaction records a gateway transaction.
func (m *MetricsService) ObserveDBTransaction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.txCount, 1)
}

// ObserveProvisioning counts a handled provisioning job.
func (m *MetricsService) ObserveProvisioning(jobType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.provisioning.WithLabelValues(jobType, result).Inc()
}

// ObserveCache counts a cache lookup as hit, miss or error.
func (m *MetricsService) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal:     atomic.LoadUint64(&m.requestCount),
		TransactionsTotal: atomic.LoadUint64(&m.txCount),
		Goroutines:        runtime.NumGoroutine(),
		GeneratedAt:       time.Now().UTC(),
	}
}
