package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// 阶段名称
const (
	StagePage   = "page"
	StageDetail = "detail"
	StageAsset  = "asset"
)

// Handler 处理单个工作项,返回错误交给 FailurePolicy
type Handler[T any] func(ctx context.Context, item T) error

// StagePool 固定数量的worker消费同一个WorkQueue
type StagePool[T any] struct {
	name    string
	queue   *WorkQueue[T]
	workers int
	handler Handler[T]
	policy  FailurePolicy

	// onDone 每处理完一个工作项调用一次 (进度条)
	onDone func()

	processed atomic.Int64
	group     *errgroup.Group
}

// NewStagePool 创建阶段池,workers小于1时按1处理
func NewStagePool[T any](name string, queue *WorkQueue[T], workers int, handler Handler[T], policy FailurePolicy) *StagePool[T] {
	if workers < 1 {
		workers = 1
	}
	if policy == nil {
		policy = NewDropPolicy()
	}
	return &StagePool[T]{
		name:    name,
		queue:   queue,
		workers: workers,
		handler: handler,
		policy:  policy,
	}
}

// OnItemDone 注册完成回调,必须在Start之前调用
func (p *StagePool[T]) OnItemDone(fn func()) {
	p.onDone = fn
}

// Start 启动worker,ctx取消后worker退出
func (p *StagePool[T]) Start(ctx context.Context) {
	p.group = new(errgroup.Group)
	for i := 0; i < p.workers; i++ {
		workerID := i
		p.group.Go(func() error {
			p.work(ctx, workerID)
			return nil
		})
	}
	log.Debug().Str("stage", p.name).Int("workers", p.workers).Msg("阶段池已启动")
}

// Wait 等待所有worker退出
func (p *StagePool[T]) Wait() error {
	if p.group == nil {
		return nil
	}
	return p.group.Wait()
}

// Name 阶段名
func (p *StagePool[T]) Name() string {
	return p.name
}

// Workers worker数量
func (p *StagePool[T]) Workers() int {
	return p.workers
}

// Processed 已处理的工作项数 (含失败)
func (p *StagePool[T]) Processed() int64 {
	return p.processed.Load()
}

func (p *StagePool[T]) work(ctx context.Context, workerID int) {
	for {
		item, ok := p.queue.Dequeue(ctx)
		if !ok {
			log.Debug().Str("stage", p.name).Int("worker", workerID).Msg("worker退出")
			return
		}
		p.process(ctx, item)
	}
}

// process 保证每个出队的工作项都调用一次MarkDone,包括handler panic的情况
func (p *StagePool[T]) process(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			p.policy.OnFailure(p.name, fmt.Sprint(item), fmt.Errorf("panic: %v", r))
		}
		p.processed.Add(1)
		if p.onDone != nil {
			p.onDone()
		}
		p.queue.MarkDone()
	}()

	err := p.handler(ctx, item)
	if err == nil {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Debug().Str("stage", p.name).Str("item", fmt.Sprint(item)).Msg("已取消")
		return
	}
	p.policy.OnFailure(p.name, fmt.Sprint(item), err)
}
