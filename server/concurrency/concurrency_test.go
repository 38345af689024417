package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRoutinePoolRunsAll(t *testing.T) {
	p := NewGoRoutinePool(4, 16)
	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Schedule(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()
	p.Stop()
	if got := atomic.LoadInt32(&count); got != 100 {
		t.Errorf("tasks run = %d, want 100", got)
	}
}

func TestGoRoutinePoolIdleRunsTask(t *testing.T) {
	// A single task on a fresh pool with a deep queue must start a worker, not sit in the queue.
	for i := 0; i < 200; i++ {
		p := NewGoRoutinePool(4, 1024)
		ran := make(chan struct{})
		p.Schedule(func() { close(ran) })
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("iteration %d: task scheduled on an idle pool never ran", i)
		}
		p.Stop()
	}
}

func TestGoRoutinePoolStopRunsQueued(t *testing.T) {
	p := NewGoRoutinePool(1, 8)
	release := make(chan struct{})
	started := make(chan struct{})
	p.Schedule(func() {
		close(started)
		<-release
	})
	<-started

	var count int32
	for i := 0; i < 5; i++ {
		p.Schedule(func() { atomic.AddInt32(&count, 1) })
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	close(release)
	<-stopped

	if got := atomic.LoadInt32(&count); got != 5 {
		t.Errorf("queued tasks run = %d, want 5", got)
	}

	p.Schedule(func() { atomic.AddInt32(&count, 1) })
	if got := atomic.LoadInt32(&count); got != 5 {
		t.Errorf("task scheduled after Stop ran")
	}
}

func TestSimpleMutexLockContext(t *testing.T) {
	m := NewSimpleMutex()
	m.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.LockContext(ctx); err == nil {
		t.Fatal("LockContext acquired a held mutex")
	}
	m.Unlock()
	if err := m.LockContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.TryLock() {
		t.Error("TryLock acquired a held mutex")
	}
	m.Unlock()
}

func TestStripedMutexSameKey(t *testing.T) {
	sm := NewStripedMutex(8)
	a := sm.For("token-1")
	b := sm.For("token-1")
	a.Lock()
	if b.TryLock() {
		t.Error("same key mapped to different stripes")
	}
	a.Unlock()
}
