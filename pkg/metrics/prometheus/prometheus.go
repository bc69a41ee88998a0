package prometheus

import (
	"strconv"
	"time"

	"approval-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Record store
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	// Cache layers
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	cacheLatency       *prometheus.HistogramVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Async writer
	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
	asyncWrites   *prometheus.CounterVec
	asyncLatency  *prometheus.HistogramVec

	// Workflow
	transitions *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	latencyBuckets := prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

	return &PrometheusCollector{
		namespace: namespace,
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of record store operations by backend, operation and result",
			},
			[]string{"backend", "operation", "result"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Record store operation latency",
				Buckets:   latencyBuckets,
			},
			[]string{"backend", "operation"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of record cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of record cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Total number of cache invalidations after writes",
			},
			[]string{"layer", "status"},
		),
		cacheLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_get_duration_seconds",
				Help:      "Record cache get latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per backend",
			},
			[]string{"backend"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per backend (0=closed, 1=open, 2=half-open)",
			},
			[]string{"backend"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_warm_queue_depth",
				Help:      "Current cache warm-up queue depth per layer",
			},
			[]string{"layer"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_warm_dropped_total",
				Help:      "Total number of dropped cache warm-up writes per layer",
			},
			[]string{"layer"},
		),
		asyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_warm_writes_total",
				Help:      "Total number of cache warm-up writes per layer",
			},
			[]string{"layer", "status"},
		),
		asyncLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_warm_duration_seconds",
				Help:      "Cache warm-up write latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Total number of workflow status changes",
			},
			[]string{"workflow", "from", "to"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.storeOps,
		pc.storeLatency,
		pc.cacheHits,
		pc.cacheMisses,
		pc.cacheInvalidations,
		pc.cacheLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedWrites,
		pc.asyncWrites,
		pc.asyncLatency,
		pc.transitions,
		pc.httpRequests,
		pc.httpLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordStoreOp records a record store operation.
func (pc *PrometheusCollector) RecordStoreOp(backend, operation, result string, duration time.Duration) {
	pc.storeOps.WithLabelValues(backend, operation, result).Inc()
	pc.storeLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordCacheGet records a cache layer lookup.
func (pc *PrometheusCollector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	if hit {
		pc.cacheHits.WithLabelValues(layer).Inc()
	} else {
		pc.cacheMisses.WithLabelValues(layer).Inc()
	}
	pc.cacheLatency.WithLabelValues(layer).Observe(duration.Seconds())
}

// RecordCacheInvalidate records a cache invalidation after a write.
func (pc *PrometheusCollector) RecordCacheInvalidate(layer string, success bool) {
	pc.cacheInvalidations.WithLabelValues(layer, statusLabel(success)).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(backend).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(backend).Inc()
	}
}

// RecordQueueDepth records the current warm-up queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(layer string, depth int) {
	pc.queueDepth.WithLabelValues(layer).Set(float64(depth))
}

// RecordWriteDropped records a dropped warm-up write.
func (pc *PrometheusCollector) RecordWriteDropped(layer string) {
	pc.droppedWrites.WithLabelValues(layer).Inc()
}

// RecordAsyncWrite records a completed warm-up write.
func (pc *PrometheusCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	pc.asyncWrites.WithLabelValues(layer, statusLabel(success)).Inc()
	pc.asyncLatency.WithLabelValues(layer).Observe(duration.Seconds())
}

// RecordTransition records a workflow status change.
func (pc *PrometheusCollector) RecordTransition(workflow, from, to string) {
	pc.transitions.WithLabelValues(workflow, from, to).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (pc *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	pc.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pc.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
