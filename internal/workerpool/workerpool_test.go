package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsTaskOnWorker(t *testing.T) {
	p := New(2, 4)
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	var ran atomic.Bool
	if !p.Submit(func() {
		ran.Store(true)
		wg.Done()
	}) {
		t.Fatal("expected Submit to accept task with free capacity")
	}
	wg.Wait()
	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestSubmitDropsTaskWhenQueueFull(t *testing.T) {
	// A pool whose only worker is blocked never drains its queue, so once
	// the queue is saturated, further submissions must be rejected rather
	// than blocking the caller.
	block := make(chan struct{})
	p := New(1, 1)
	defer close(block)
	defer p.Shutdown()

	if !p.Submit(func() { <-block }) {
		t.Fatal("expected first submit to be accepted")
	}
	// Give the worker a moment to pick up the blocking task so the queue is
	// actually empty-but-busy, then fill the one-slot queue.
	time.Sleep(10 * time.Millisecond)
	if !p.Submit(func() {}) {
		t.Fatal("expected second submit to fill the queue")
	}
	if p.Submit(func() {}) {
		t.Fatal("expected third submit to be dropped, queue is full")
	}
}

func TestNewClampsWorkersAndQueueSize(t *testing.T) {
	p := New(0, 0)
	defer p.Shutdown()
	if cap(p.tasks) < 1 {
		t.Fatalf("expected queue capacity >= 1, got %d", cap(p.tasks))
	}
}

func TestShutdownStopsAcceptingEventually(t *testing.T) {
	p := New(1, 1)
	p.Shutdown()
	// After Shutdown, worker goroutines exit and Submit rejects new tasks
	// instead of enqueueing work that nothing would ever run.
	if p.Submit(func() {}) {
		t.Fatal("expected Submit to reject tasks after Shutdown")
	}
}
