package crawlers

import (
	"context"
	"sync"
)

// WorkQueue 无界FIFO队列,带完成计数
// 每个出队的元素必须调用一次 MarkDone; Join 在 入队数==完成数 时返回
type WorkQueue[T any] struct {
	mu    sync.Mutex
	items []T

	enqueued int64
	done     int64

	// ready 在下一次入队时关闭,唤醒所有等待的Dequeue
	ready chan struct{}

	// idle 在未完成数归零时关闭
	idle chan struct{}
}

// QueueStats 队列计数快照
type QueueStats struct {
	Enqueued int64 // 累计入队
	Done     int64 // 累计完成
	Queued   int   // 等待出队
}

// InFlight 已出队但未完成的数量
func (s QueueStats) InFlight() int64 {
	return s.Enqueued - s.Done - int64(s.Queued)
}

// NewWorkQueue 创建空队列
func NewWorkQueue[T any]() *WorkQueue[T] {
	idle := make(chan struct{})
	close(idle)
	return &WorkQueue[T]{
		ready: make(chan struct{}),
		idle:  idle,
	}
}

// Enqueue 入队,永不阻塞
func (q *WorkQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.enqueued == q.done {
		q.idle = make(chan struct{})
	}
	q.enqueued++
	q.items = append(q.items, item)

	close(q.ready)
	q.ready = make(chan struct{})
}

// Dequeue 阻塞直到取到元素
// 仅在ctx取消时返回false,队列为空不会返回
func (q *WorkQueue[T]) Dequeue(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-ready:
		}
	}
}

// MarkDone 标记一个元素处理完成 (无论成功失败)
// 完成数超过入队数说明调用方有bug,直接panic
func (q *WorkQueue[T]) MarkDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.done >= q.enqueued {
		panic("crawlers: MarkDone called more times than Enqueue")
	}
	q.done++
	if q.done == q.enqueued {
		close(q.idle)
	}
}

// Join 阻塞直到所有入队的元素都已完成
func (q *WorkQueue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len 等待出队的元素数
func (q *WorkQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats 返回计数快照
func (q *WorkQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Enqueued: q.enqueued,
		Done:     q.done,
		Queued:   len(q.items),
	}
}
