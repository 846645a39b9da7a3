package swarm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteRunsEveryWorkerOnce(t *testing.T) {
	s := New(4)
	var mu sync.Mutex
	seen := map[int]int{}
	err := s.Execute(func(id, count int) {
		if count != 4 {
			t.Errorf("worker count=%d, want 4", count)
		}
		mu.Lock()
		seen[id]++
		mu.Unlock()
	}).Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct workers, got %v", seen)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("worker %d ran %d times", id, n)
		}
	}
}

func TestExecuteDefaultsToGOMAXPROCS(t *testing.T) {
	if New(0).Workers() < 1 {
		t.Fatal("expected at least one worker")
	}
}

func TestWaitReportsWorkerPanic(t *testing.T) {
	s := New(3)
	var ran atomic.Int32
	err := s.Execute(func(id, _ int) {
		ran.Add(1)
		if id == 1 {
			panic("boom")
		}
	}).Wait(context.Background())
	if !errors.Is(err, ErrWorkerPanic) {
		t.Fatalf("expected ErrWorkerPanic, got %v", err)
	}
	if ran.Load() != 3 {
		t.Fatalf("expected all workers to run, got %d", ran.Load())
	}
}

func TestWaitAbortsOnDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	g := New(2).Execute(func(id, _ int) {
		if id == 0 {
			<-release
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); !errors.Is(err, ErrWaitAborted) {
		t.Fatalf("expected ErrWaitAborted, got %v", err)
	}
	select {
	case <-g.Done():
		t.Fatal("group reported done while a worker was blocked")
	default:
	}
}
