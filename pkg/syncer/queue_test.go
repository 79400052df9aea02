package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskQueueRunsAndWaits(t *testing.T) {
	q := NewTaskQueue(context.Background(), 2, 8)
	defer q.Close()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := q.Submit(func(context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if got := ran.Load(); got != 5 {
		t.Fatalf("expected 5 tasks to run, got %d", got)
	}
}

func TestTaskQueueWaitOnIdleQueue(t *testing.T) {
	q := NewTaskQueue(context.Background(), 1, 1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait on idle queue returned error: %v", err)
	}
}

func TestTaskQueueFull(t *testing.T) {
	q := NewTaskQueue(context.Background(), 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	if err := q.Submit(func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	<-started
	if err := q.Submit(func(context.Context) {}); err != nil {
		t.Fatalf("Submit into free slot returned error: %v", err)
	}
	if err := q.Submit(func(context.Context) {}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to time out while busy, got %v", err)
	}

	close(release)
	q.Close()
	if err := q.Submit(func(context.Context) {}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestTaskQueueSurvivesPanics(t *testing.T) {
	q := NewTaskQueue(context.Background(), 1, 4)
	defer q.Close()

	var ran atomic.Bool
	if err := q.Submit(func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := q.Submit(func(context.Context) { ran.Store(true) }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if !ran.Load() {
		t.Fatal("task after panic did not run")
	}
}

func TestTaskQueuePassesQueueContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "queue")
	q := NewTaskQueue(ctx, 1, 1)
	defer q.Close()

	got := make(chan any, 1)
	if err := q.Submit(func(ctx context.Context) { got <- ctx.Value(key{}) }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	select {
	case v := <-got:
		if v != "queue" {
			t.Fatalf("task saw context value %v", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("task never ran")
	}
}
