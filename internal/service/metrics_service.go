package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Push delivery outcomes recorded by the fan-out engine.
const (
	PushOutcomeSent   = "sent"
	PushOutcomeFailed = "failed"
)

// MetricsService owns the Prometheus registry of the notice board.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	pushDeliveries  *prometheus.CounterVec
	fanoutDuration  prometheus.Observer
	noticeEvents    *prometheus.CounterVec
	subscriptions   *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Listing cache lookups by result",
	}, []string{"result"})

	pushDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_deliveries_total",
		Help: "Web push delivery attempts by outcome",
	}, []string{"outcome"})

	fanoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "push_fanout_duration_seconds",
		Help:    "Time spent delivering one notice to every eligible subscription",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	noticeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notice_events_total",
		Help: "Notice mutations by action",
	}, []string{"action"})

	subscriptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_subscriptions_total",
		Help: "Subscribe calls by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		pushDeliveries, fanoutDuration, noticeEvents, subscriptions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		pushDeliveries:  pushDeliveries,
		fanoutDuration:  fanoutDuration,
		noticeEvents:    noticeEvents,
		subscriptions:   subscriptions,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup result.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPushDelivery counts one delivery attempt.
func (m *MetricsService) RecordPushDelivery(outcome string) {
	if m == nil {
		return
	}
	m.pushDeliveries.WithLabelValues(outcome).Inc()
}

// ObserveFanout records how long a full fan-out took.
func (m *MetricsService) ObserveFanout(duration time.Duration) {
	if m == nil {
		return
	}
	m.fanoutDuration.Observe(duration.Seconds())
}

// RecordNoticeEvent counts a notice create, update or delete.
func (m *MetricsService) RecordNoticeEvent(action string) {
	if m == nil {
		return
	}
	m.noticeEvents.WithLabelValues(action).Inc()
}

// RecordSubscription counts a subscribe call as created, updated or rejected.
func (m *MetricsService) RecordSubscription(result string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(result).Inc()
}
