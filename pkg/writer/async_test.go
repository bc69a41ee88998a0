package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"approval-ledger/pkg/cache/mock"
	metricsmem "approval-ledger/pkg/metrics/memory"
	"approval-ledger/pkg/store"
)

func TestNewAsyncWriter_Defaults(t *testing.T) {
	writer := NewAsyncWriter(mock.NewMockLayer("L1"), AsyncWriterConfig{}, nil)
	defer writer.Close()

	if cap(writer.queue) != 1000 {
		t.Errorf("Expected default queue size 1000, got %d", cap(writer.queue))
	}
	if writer.config.Workers != 2 {
		t.Errorf("Expected default workers 2, got %d", writer.config.Workers)
	}
	if writer.config.MaxWaitTime != 10*time.Millisecond {
		t.Errorf("Expected default MaxWaitTime 10ms, got %v", writer.config.MaxWaitTime)
	}
}

func TestAsyncWriter_Write(t *testing.T) {
	var mu sync.Mutex
	writes := make(map[string]store.Document)

	layer := mock.NewMockLayer("L1")
	layer.SetFunc = func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		writes[key] = doc
		return nil
	}

	writer := NewAsyncWriter(layer, AsyncWriterConfig{QueueSize: 10, Workers: 1}, nil)
	defer writer.Close()

	doc := store.Document{"status": "Pending"}
	if err := writer.Write(context.Background(), "rec:transactions:1", doc, time.Minute, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// the queued copy must not see later caller mutations
	doc["status"] = "Failed"

	if err := writer.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if writes["rec:transactions:1"]["status"] != "Pending" {
		t.Errorf("Expected Pending, got %v", writes["rec:transactions:1"])
	}
	if writer.Stats().TotalWrites != 1 {
		t.Errorf("Expected 1 total write, got %d", writer.Stats().TotalWrites)
	}
}

func TestAsyncWriter_StaleWriteSkipped(t *testing.T) {
	layer := mock.NewMockLayer("L1")
	writer := NewAsyncWriter(layer, AsyncWriterConfig{Workers: 1}, nil)
	defer writer.Close()

	err := writer.Write(context.Background(), "k", store.Document{}, 0, func() bool { return false })
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = writer.Flush(time.Second)

	if layer.SetCalls() != 0 {
		t.Errorf("Expected stale write to be skipped, got %d sets", layer.SetCalls())
	}
	if writer.Stats().SkippedWrites != 1 {
		t.Errorf("Expected 1 skipped write, got %d", writer.Stats().SkippedWrites)
	}
}

func TestAsyncWriter_StaleDuringSetEvicted(t *testing.T) {
	var current int32 = 1
	layer := mock.NewMockLayer("L1")
	layer.SetFunc = func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
		// an invalidation lands while the write is in flight
		atomic.StoreInt32(&current, 0)
		return nil
	}

	writer := NewAsyncWriter(layer, AsyncWriterConfig{Workers: 1}, nil)
	defer writer.Close()

	valid := func() bool { return atomic.LoadInt32(&current) == 1 }
	if err := writer.Write(context.Background(), "k", store.Document{}, 0, valid); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = writer.Flush(time.Second)

	if layer.SetCalls() != 1 {
		t.Errorf("Expected 1 set, got %d", layer.SetCalls())
	}
	if layer.DeleteCalls() != 1 {
		t.Errorf("Expected stale entry to be deleted, got %d deletes", layer.DeleteCalls())
	}
	if writer.Stats().SkippedWrites != 1 {
		t.Errorf("Expected 1 skipped write, got %d", writer.Stats().SkippedWrites)
	}
}

func TestAsyncWriter_ConcurrentWrites(t *testing.T) {
	layer := mock.NewMockLayer("L1")
	writer := NewAsyncWriter(layer, AsyncWriterConfig{QueueSize: 200, Workers: 4}, nil)
	defer writer.Close()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = writer.Write(context.Background(), fmt.Sprintf("key%d", i), store.Document{"i": i}, 0, nil)
		}(i)
	}
	wg.Wait()

	if err := writer.Flush(2 * time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if layer.SetCalls() != 100 {
		t.Errorf("Expected 100 sets, got %d", layer.SetCalls())
	}
}

func TestAsyncWriter_Backpressure(t *testing.T) {
	block := make(chan struct{})
	layer := mock.NewMockLayer("slow")
	layer.SetFunc = func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
		<-block
		return nil
	}

	collector := metricsmem.NewMemoryCollector()
	writer := NewAsyncWriter(layer, AsyncWriterConfig{QueueSize: 1, Workers: 1, MaxWaitTime: time.Millisecond}, collector)

	var dropped int
	for i := 0; i < 10; i++ {
		if err := writer.Write(context.Background(), "k", store.Document{}, 0, nil); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}
	close(block)
	writer.Close()

	if dropped == 0 {
		t.Error("Expected some writes to be dropped")
	}
	if got := writer.Stats().DroppedWrites; got != int64(dropped) {
		t.Errorf("Expected %d dropped in stats, got %d", dropped, got)
	}
	if lm := collector.GetLayerMetrics("slow"); lm == nil || lm.DroppedWrites != int64(dropped) {
		t.Errorf("Expected dropped writes recorded in metrics, got %+v", lm)
	}
}

func TestAsyncWriter_ErrorCounted(t *testing.T) {
	layer := mock.NewMockLayer("L1")
	layer.SetFunc = func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
		return errors.New("boom")
	}

	writer := NewAsyncWriter(layer, AsyncWriterConfig{Workers: 1}, nil)
	_ = writer.Write(context.Background(), "k", store.Document{}, 0, nil)
	_ = writer.Flush(time.Second)
	writer.Close()

	if writer.Stats().FailedWrites != 1 {
		t.Errorf("Expected 1 failed write, got %d", writer.Stats().FailedWrites)
	}
}

func TestAsyncWriter_ContextCancelled(t *testing.T) {
	writer := NewAsyncWriter(mock.NewMockLayer("L1"), AsyncWriterConfig{}, nil)
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := writer.Write(ctx, "k", store.Document{}, 0, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestAsyncWriter_FlushTimeout(t *testing.T) {
	block := make(chan struct{})
	layer := mock.NewMockLayer("L1")
	layer.SetFunc = func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
		<-block
		return nil
	}

	writer := NewAsyncWriter(layer, AsyncWriterConfig{Workers: 1}, nil)
	_ = writer.Write(context.Background(), "k", store.Document{}, 0, nil)

	if err := writer.Flush(20 * time.Millisecond); !errors.Is(err, ErrFlushTimeout) {
		t.Errorf("Expected ErrFlushTimeout, got %v", err)
	}

	close(block)
	writer.Close()
}

func TestAsyncWriter_CloseDrainsAndRejects(t *testing.T) {
	layer := mock.NewMockLayer("L1")
	writer := NewAsyncWriter(layer, AsyncWriterConfig{Workers: 1}, nil)

	for i := 0; i < 5; i++ {
		_ = writer.Write(context.Background(), fmt.Sprintf("k%d", i), store.Document{}, 0, nil)
	}
	writer.Close()
	writer.Close()

	if layer.SetCalls() != 5 {
		t.Errorf("Expected queued writes processed on close, got %d", layer.SetCalls())
	}
	if err := writer.Write(context.Background(), "late", store.Document{}, 0, nil); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
}
