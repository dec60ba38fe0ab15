package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAll_ExecutesEveryIndexOnce(t *testing.T) {
	g, err := New(4)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Release()

	const n = 100
	var mu sync.Mutex
	seen := make(map[int]int)

	err = g.RunAll(context.Background(), n, func(_ context.Context, i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run all: %v", err)
	}

	if len(seen) != n {
		t.Fatalf("expected %d distinct indices, got %d", n, len(seen))
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("index %d ran %d times", i, count)
		}
	}
}

func TestRunAll_RespectsConcurrencyLimit(t *testing.T) {
	const limit = 3
	g, err := New(limit)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Release()

	var inFlight, peak int64

	err = g.RunAll(context.Background(), 50, func(_ context.Context, _ int) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
	})
	if err != nil {
		t.Fatalf("run all: %v", err)
	}

	if p := atomic.LoadInt64(&peak); p > limit {
		t.Errorf("observed %d concurrent tasks, limit is %d", p, limit)
	}
}

func TestRunAll_CancellationSkipsUnstartedWork(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	var started int64

	err = g.RunAll(ctx, 20, func(_ context.Context, i int) {
		atomic.AddInt64(&started, 1)
		if i == 0 {
			cancel()
		}
	})
	if err == nil {
		t.Fatal("expected a cancellation error")
	}

	if s := atomic.LoadInt64(&started); s >= 20 {
		t.Errorf("expected cancellation to skip remaining work, %d tasks started", s)
	}
}

func TestNew_RaisesZeroLimit(t *testing.T) {
	g, err := New(0)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Release()

	if g.Limit() != 1 {
		t.Errorf("expected limit raised to 1, got %d", g.Limit())
	}
}
