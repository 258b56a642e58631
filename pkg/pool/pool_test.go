package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapPreservesOrder(t *testing.T) {
	p := New(3, 0)

	// Later tasks finish first; results must still come back by index.
	delays := []time.Duration{30 * time.Millisecond, 15 * time.Millisecond, time.Millisecond}
	got := Map(context.Background(), p, len(delays), func(ctx context.Context, i int) int {
		time.Sleep(delays[i])
		return i * 10
	})

	for i, v := range got {
		if v != i*10 {
			t.Errorf("results[%d] = %d, want %d", i, v, i*10)
		}
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	p := New(2, 0)

	var running, peak atomic.Int32
	Map(context.Background(), p, 8, func(ctx context.Context, i int) struct{} {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return struct{}{}
	})

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestMapPerTaskTimeout(t *testing.T) {
	p := New(2, 10*time.Millisecond)

	got := Map(context.Background(), p, 2, func(ctx context.Context, i int) string {
		if i == 0 {
			<-ctx.Done()
			return "timed out"
		}
		return "done"
	})

	if got[0] != "timed out" {
		t.Errorf("results[0] = %q", got[0])
	}
	if got[1] != "done" {
		t.Errorf("slow sibling affected fast task: %q", got[1])
	}
}

func TestMapParentCancellation(t *testing.T) {
	p := New(2, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Map(ctx, p, 3, func(ctx context.Context, i int) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
			return true
		}
	})

	for i, v := range got {
		if v {
			t.Errorf("task %d ignored cancelled parent", i)
		}
	}
}

func TestMapEmptyBatch(t *testing.T) {
	p := New(3, 0)
	got := Map(context.Background(), p, 0, func(ctx context.Context, i int) int { return i })
	if len(got) != 0 {
		t.Errorf("len = %d", len(got))
	}
}
