package memory

import (
	"sync"
	"testing"
	"time"

	"approval-ledger/pkg/metrics"
)

var _ metrics.MetricsCollector = (*MemoryCollector)(nil)

func TestMemoryCollector_StoreOps(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordStoreOp("memory", "get", "success", time.Millisecond)
	mc.RecordStoreOp("memory", "get", "not_found", time.Millisecond)
	mc.RecordStoreOp("memory", "get", "not_found", time.Millisecond)

	sm := mc.GetStoreMetrics("memory")
	if sm == nil {
		t.Fatal("Expected store metrics")
	}
	if sm.Results["get/not_found"] != 2 {
		t.Errorf("Expected 2 not_found gets, got %d", sm.Results["get/not_found"])
	}
	if len(sm.Latencies) != 3 {
		t.Errorf("Expected 3 latencies, got %d", len(sm.Latencies))
	}

	// Returned copy must not alias internal state
	sm.Results["get/success"] = 100
	if mc.GetStoreMetrics("memory").Results["get/success"] != 1 {
		t.Error("Snapshot aliases internal map")
	}
}

func TestMemoryCollector_CircuitOpens(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordCircuitState("pg", metrics.CircuitOpen)
	mc.RecordCircuitState("pg", metrics.CircuitOpen)
	mc.RecordCircuitState("pg", metrics.CircuitHalfOpen)
	mc.RecordCircuitState("pg", metrics.CircuitOpen)

	if got := mc.GetStoreMetrics("pg").CircuitOpens; got != 2 {
		t.Errorf("Expected 2 opens, got %d", got)
	}
}

func TestMemoryCollector_TransitionsAndHTTP(t *testing.T) {
	mc := NewMemoryCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.RecordTransition("credential", "Requested", "Created")
			mc.RecordHTTPRequest("POST", "/api/credential-requests/accept", 200, time.Millisecond)
		}()
	}
	wg.Wait()

	if got := mc.Transitions("credential", "Requested", "Created"); got != 10 {
		t.Errorf("Expected 10 transitions, got %d", got)
	}
	if got := mc.HTTPRequests("POST", "/api/credential-requests/accept", 200); got != 10 {
		t.Errorf("Expected 10 requests, got %d", got)
	}

	mc.Reset()
	if mc.Transitions("credential", "Requested", "Created") != 0 {
		t.Error("Expected transitions cleared after Reset")
	}
}
