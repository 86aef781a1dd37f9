package crawlers

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// FailurePolicy 决定一个工作项失败后的处理方式
type FailurePolicy interface {
	// OnFailure 在工作项失败时调用,可被多个worker并发调用
	OnFailure(stage string, item string, err error)

	// Dropped 返回某个阶段被丢弃的数量
	Dropped(stage string) int64
}

// DropPolicy 记录警告日志后丢弃,不重试
type DropPolicy struct {
	mu       sync.Mutex
	counters map[string]*atomic.Int64
}

// NewDropPolicy 创建丢弃策略
func NewDropPolicy() *DropPolicy {
	return &DropPolicy{counters: make(map[string]*atomic.Int64)}
}

func (p *DropPolicy) counter(stage string) *atomic.Int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.counters[stage]
	if !ok {
		c = &atomic.Int64{}
		p.counters[stage] = c
	}
	return c
}

// OnFailure 实现 FailurePolicy 接口
func (p *DropPolicy) OnFailure(stage string, item string, err error) {
	n := p.counter(stage).Add(1)
	log.Warn().
		Str("stage", stage).
		Str("item", item).
		Int64("dropped", n).
		Err(err).
		Msg("处理失败,已丢弃")
}

// Dropped 实现 FailurePolicy 接口
func (p *DropPolicy) Dropped(stage string) int64 {
	return p.counter(stage).Load()
}

// Snapshot 所有阶段的丢弃计数
func (p *DropPolicy) Snapshot() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64, len(p.counters))
	for stage, c := range p.counters {
		out[stage] = c.Load()
	}
	return out
}

// Stages 出现过失败的阶段名,有序
func (p *DropPolicy) Stages() []string {
	snap := p.Snapshot()
	stages := make([]string, 0, len(snap))
	for s := range snap {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	return stages
}
