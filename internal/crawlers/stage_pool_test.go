package crawlers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStagePool_ProcessesAllItems(t *testing.T) {
	q := NewWorkQueue[int]()
	var sum atomic.Int64

	pool := NewStagePool("test", q, 4, func(ctx context.Context, v int) error {
		sum.Add(int64(v))
		return nil
	}, NewDropPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 1; i <= 100; i++ {
		q.Enqueue(i)
	}
	if err := q.Join(ctx); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	cancel()
	if err := pool.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if sum.Load() != 5050 {
		t.Errorf("sum = %d, want 5050", sum.Load())
	}
	if pool.Processed() != 100 {
		t.Errorf("Processed() = %d, want 100", pool.Processed())
	}
}

func TestStagePool_FailuresAreDropped(t *testing.T) {
	q := NewWorkQueue[int]()
	policy := NewDropPolicy()

	pool := NewStagePool(StageDetail, q, 2, func(ctx context.Context, v int) error {
		if v%2 == 0 {
			return errors.New("boom")
		}
		return nil
	}, policy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}
	if err := q.Join(ctx); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if got := policy.Dropped(StageDetail); got != 5 {
		t.Errorf("Dropped() = %d, want 5", got)
	}
	if got := policy.Dropped(StagePage); got != 0 {
		t.Errorf("其他阶段不应有丢弃: %d", got)
	}
}

func TestStagePool_PanicStillMarksDone(t *testing.T) {
	q := NewWorkQueue[string]()
	policy := NewDropPolicy()

	pool := NewStagePool(StagePage, q, 1, func(ctx context.Context, s string) error {
		if s == "bad" {
			panic("unexpected markup")
		}
		return nil
	}, policy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	q.Enqueue("bad")
	q.Enqueue("good")

	joinCtx, joinCancel := context.WithTimeout(ctx, 2*time.Second)
	defer joinCancel()
	if err := q.Join(joinCtx); err != nil {
		t.Fatalf("handler panic后Join应正常返回: %v", err)
	}
	if policy.Dropped(StagePage) != 1 {
		t.Errorf("Dropped() = %d, want 1", policy.Dropped(StagePage))
	}
}

func TestStagePool_WorkersExitOnCancel(t *testing.T) {
	q := NewWorkQueue[int]()
	pool := NewStagePool("idle", q, 3, func(ctx context.Context, v int) error { return nil }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ctx取消后worker未退出")
	}
}

func TestStagePool_OnItemDone(t *testing.T) {
	q := NewWorkQueue[int]()
	var ticks atomic.Int64
	pool := NewStagePool("progress", q, 2, func(ctx context.Context, v int) error { return nil }, nil)
	pool.OnItemDone(func() { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 7; i++ {
		q.Enqueue(i)
	}
	q.Join(ctx)
	if ticks.Load() != 7 {
		t.Errorf("回调次数 = %d, want 7", ticks.Load())
	}
}
