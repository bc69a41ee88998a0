package memory

import (
	"sync"
	"time"

	"approval-ledger/pkg/metrics"
)

// MemoryCollector implements MetricsCollector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	stores      map[string]*StoreMetrics
	layers      map[string]*LayerMetrics
	transitions map[Transition]int64
	httpStatus  map[string]map[int]int64
}

// StoreMetrics holds metrics for a single record store backend.
type StoreMetrics struct {
	// Operation results keyed by "operation/result", e.g. "get/not_found".
	Results map[string]int64

	CircuitState metrics.CircuitState
	CircuitOpens int64

	Latencies []time.Duration
}

// LayerMetrics holds metrics for a single cache layer.
type LayerMetrics struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Errors        int64

	QueueDepth    int
	DroppedWrites int64
	AsyncWrites   int64
	AsyncErrors   int64
}

// Transition identifies a workflow status change.
type Transition struct {
	Workflow string
	From     string
	To       string
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.reset()
	return mc
}

func (mc *MemoryCollector) reset() {
	mc.stores = make(map[string]*StoreMetrics)
	mc.layers = make(map[string]*LayerMetrics)
	mc.transitions = make(map[Transition]int64)
	mc.httpStatus = make(map[string]map[int]int64)
}

// store and layer must be called with mc.mu held.
func (mc *MemoryCollector) store(backend string) *StoreMetrics {
	sm, ok := mc.stores[backend]
	if !ok {
		sm = &StoreMetrics{Results: make(map[string]int64)}
		mc.stores[backend] = sm
	}
	return sm
}

func (mc *MemoryCollector) layer(name string) *LayerMetrics {
	lm, ok := mc.layers[name]
	if !ok {
		lm = &LayerMetrics{}
		mc.layers[name] = lm
	}
	return lm
}

// RecordStoreOp records a record store operation.
func (mc *MemoryCollector) RecordStoreOp(backend, operation, result string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(backend)
	sm.Results[operation+"/"+result]++
	sm.Latencies = append(sm.Latencies, duration)
}

// RecordCacheGet records a cache layer lookup.
func (mc *MemoryCollector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
}

// RecordCacheInvalidate records a cache invalidation after a write.
func (mc *MemoryCollector) RecordCacheInvalidate(layer string, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Invalidations++
	if !success {
		lm.Errors++
	}
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(backend)
	if sm.CircuitState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		sm.CircuitOpens++
	}
	sm.CircuitState = state
}

// RecordQueueDepth records the current warm-up queue depth.
func (mc *MemoryCollector) RecordQueueDepth(layer string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layer(layer).QueueDepth = depth
}

// RecordWriteDropped records a dropped warm-up write.
func (mc *MemoryCollector) RecordWriteDropped(layer string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layer(layer).DroppedWrites++
}

// RecordAsyncWrite records a completed warm-up write.
func (mc *MemoryCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.AsyncWrites++
	if !success {
		lm.AsyncErrors++
	}
}

// RecordTransition records a workflow status change.
func (mc *MemoryCollector) RecordTransition(workflow, from, to string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.transitions[Transition{Workflow: workflow, From: from, To: to}]++
}

// RecordHTTPRequest records a served HTTP request.
func (mc *MemoryCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := method + " " + route
	if mc.httpStatus[key] == nil {
		mc.httpStatus[key] = make(map[int]int64)
	}
	mc.httpStatus[key][status]++
}

// GetStoreMetrics returns a copy of the metrics for a backend, or nil.
func (mc *MemoryCollector) GetStoreMetrics(backend string) *StoreMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	sm, ok := mc.stores[backend]
	if !ok {
		return nil
	}
	cp := *sm
	cp.Results = make(map[string]int64, len(sm.Results))
	for k, v := range sm.Results {
		cp.Results[k] = v
	}
	cp.Latencies = append([]time.Duration(nil), sm.Latencies...)
	return &cp
}

// GetLayerMetrics returns a copy of the metrics for a cache layer, or nil.
func (mc *MemoryCollector) GetLayerMetrics(layer string) *LayerMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if lm, ok := mc.layers[layer]; ok {
		cp := *lm
		return &cp
	}
	return nil
}

// Transitions returns how many times workflow moved from one status to another.
func (mc *MemoryCollector) Transitions(workflow, from, to string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.transitions[Transition{Workflow: workflow, From: from, To: to}]
}

// HTTPRequests returns the number of requests served for a method and route template with status.
func (mc *MemoryCollector) HTTPRequests(method, route string, status int) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.httpStatus[method+" "+route][status]
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.reset()
}
