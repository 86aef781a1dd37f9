// Package crawlers 提供采集流水线的并发基础设施和抓取实现
//
// # 概述
//
// 采集分为三个阶段: 列表页 → 详情页 → 卡图。每个阶段由一个 StagePool
// 消费一个 WorkQueue,阶段之间只通过队列传递工作项。
//
// # 核心组件
//
// ## WorkQueue (工作队列)
//
// 无界FIFO,带完成计数。每个出队的工作项必须调用一次 MarkDone,
// Join 在 入队数 == 完成数 时返回。Dequeue 只在ctx取消时返回false,
// 空队列不是停止信号。
//
//	queue := NewWorkQueue[string]()
//	queue.Enqueue("https://example.com/page/2/")
//	item, ok := queue.Dequeue(ctx)
//	queue.MarkDone()
//	err := queue.Join(ctx)
//
// ## StagePool (阶段池)
//
// 固定数量的worker。handler返回的错误交给 FailurePolicy,
// 默认的 DropPolicy 记录警告后丢弃,不重试。handler panic 同样按失败处理,
// MarkDone 始终会被调用。
//
//	pool := NewStagePool(StageDetail, queue, 10, handler, policy)
//	pool.Start(ctx)
//	queue.Join(ctx)
//	cancel()
//	pool.Wait()
//
// ## Fetcher (抓取器)
//
// 静态模式使用 CollyFetcher,动态模式使用 BrowserFetcher (go-rod)。
// 非2xx状态和传输错误都以 *FetchError 返回。
//
// ## PagePool / ResourceMonitor
//
// BrowserFetcher 的标签页池,标签页数量受可用内存和CPU核数限制。
// ResourceMonitor 同时用于 workers=0 时自动计算worker数。
//
// ## AssetStore (卡图存储)
//
// 文件名为卡牌键,扩展名由响应的Content-Type推断。
//
// # 资源配置 (configs/config.yaml)
//
//	resource:
//	  safety_reserve_memory: 1024  # 系统预留内存(MB)
//	  safety_threshold: 500        # 可用内存阈值(MB)
//	  cpu_load_threshold: 80       # CPU负载阈值(%)
//	  max_tabs_limit: 16           # 绝对最大标签页数
//
// # 并发安全
//
//   - WorkQueue: sync.Mutex + channel广播
//   - DropPolicy: 原子计数
//   - PagePool: channel + sync.Mutex
//   - ResourceMonitor: sync.RWMutex
//   - CollyFetcher: 每次请求使用独立的colly.Context
package crawlers
