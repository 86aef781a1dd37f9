package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/arachas/internal/crawlers"
	"github.com/RecoveryAshes/arachas/internal/extract"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/RecoveryAshes/arachas/internal/utils"
	"github.com/schollz/progressbar/v3"
)

const mb = 1024 * 1024

// HarvestResult 一次采集的结果
type HarvestResult struct {
	Cards      []*models.Card // 按名称排序并去重
	Stats      models.HarvestStats
	Collisions []Collision
}

// Keys 结果中所有卡牌的键,与Cards同序
func (r *HarvestResult) Keys() []string {
	keys := make([]string, 0, len(r.Cards))
	for _, c := range r.Cards {
		keys = append(keys, c.Key)
	}
	return keys
}

// Harvester 采集流水线协调器
// 入口页 → 列表页池 → 详情页池 → 卡图池 (可选) → 收集器
type Harvester struct {
	config models.HarvestConfig
	runID  string

	site         extract.Site
	fetcher      crawlers.Fetcher
	assetFetcher crawlers.Fetcher
	policy       crawlers.FailurePolicy
	collision    CollisionPolicy
	workers      int

	monitor  *crawlers.ResourceMonitor
	progress io.Writer

	closers []func() error
}

// HarvesterOption 可选配置
type HarvesterOption func(*Harvester)

// WithFetcher 替换列表页和详情页的抓取器
func WithFetcher(f crawlers.Fetcher) HarvesterOption {
	return func(h *Harvester) { h.fetcher = f }
}

// WithAssetFetcher 替换卡图抓取器
func WithAssetFetcher(f crawlers.Fetcher) HarvesterOption {
	return func(h *Harvester) { h.assetFetcher = f }
}

// WithSite 替换站点解析器
func WithSite(site extract.Site) HarvesterOption {
	return func(h *Harvester) { h.site = site }
}

// WithFailurePolicy 替换失败策略,默认记录后丢弃
func WithFailurePolicy(p crawlers.FailurePolicy) HarvesterOption {
	return func(h *Harvester) { h.policy = p }
}

// WithCollisionPolicy 设置键冲突策略
func WithCollisionPolicy(p CollisionPolicy) HarvesterOption {
	return func(h *Harvester) { h.collision = p }
}

// WithProgress 进度条输出,为nil时不显示
func WithProgress(w io.Writer) HarvesterOption {
	return func(h *Harvester) { h.progress = w }
}

// NewHarvester 创建协调器
// workers为0时按系统资源计算,动态模式下会启动浏览器
func NewHarvester(config models.HarvestConfig, headers models.HeaderProvider, opts ...HarvesterOption) (*Harvester, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("采集配置无效: %w", err)
	}

	h := &Harvester{
		config:    config,
		runID:     models.NewRunID(),
		collision: CollisionWarn,
	}
	for _, opt := range opts {
		opt(h)
	}
	if !config.ShowProgress {
		h.progress = nil
	}

	h.monitor = crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(config.SafetyReserveMemory) * mb,
		SafetyThreshold:     int64(config.SafetyThreshold) * mb,
		CPULoadThreshold:    config.CPULoadThreshold,
		MaxLimit:            config.MaxTabsLimit,
	})

	h.workers = config.Workers
	if h.workers == 0 {
		h.workers = h.monitor.SuggestWorkers()
		utils.Infof("⚙️  根据系统资源自动设置并发数: %d", h.workers)
	}

	if h.site == nil {
		site, err := extract.NewGwentify(config.PagePattern)
		if err != nil {
			return nil, err
		}
		h.site = site
	}
	if h.policy == nil {
		h.policy = crawlers.NewDropPolicy()
	}

	if h.assetFetcher == nil {
		h.assetFetcher = crawlers.NewCollyFetcher(crawlers.FetcherOptions{
			Timeout: config.Timeout,
			Headers: headers,
		})
	}
	if h.fetcher == nil {
		switch config.Mode {
		case models.ModeDynamic:
			h.monitor.StartMonitoring(2 * time.Second)
			h.closers = append(h.closers, func() error { h.monitor.StopMonitoring(); return nil })

			bf, err := crawlers.NewBrowserFetcher(crawlers.BrowserOptions{
				Headless: config.Headless,
				Timeout:  config.Timeout,
				Headers:  headers,
				Monitor:  h.monitor,
			})
			if err != nil {
				h.Close()
				return nil, err
			}
			h.fetcher = bf
			h.closers = append(h.closers, bf.Close)
		default:
			h.fetcher = h.assetFetcher
		}
	}

	return h, nil
}

// RunID 本次运行的ID
func (h *Harvester) RunID() string {
	return h.runID
}

// Workers 每个阶段的worker数
func (h *Harvester) Workers() int {
	return h.workers
}

// Close 释放浏览器等资源
func (h *Harvester) Close() error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.closers = nil
	return firstErr
}

// Harvest 执行一次完整的采集
//  1. 同步抓取入口页并解析全部列表页 (失败即终止)
//  2. 启动列表页池并放入全部列表页
//  3. 启动详情页池和卡图池
//  4. 依次等待三个队列排空
//  5. 停止worker,返回排序去重后的卡牌
func (h *Harvester) Harvest(ctx context.Context) (*HarvestResult, error) {
	start := time.Now()
	stats := models.HarvestStats{RunID: h.runID, StartTime: start}

	utils.Infof("🚀 开始采集: %s", h.config.RootURL)
	utils.Infof("抓取模式: %s, 每阶段并发数: %d", h.config.Mode, h.workers)

	pages, err := h.resolvePages(ctx)
	if err != nil {
		return nil, err
	}
	utils.Infof("📄 共 %d 个列表页", len(pages))

	var assets *crawlers.AssetStore
	if h.config.DownloadAssets {
		assets, err = crawlers.NewAssetStore(h.config.AssetDir, h.assetFetcher)
		if err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageQueue := crawlers.NewWorkQueue[string]()
	detailQueue := crawlers.NewWorkQueue[string]()
	assetQueue := crawlers.NewWorkQueue[models.AssetJob]()
	aggregator := NewAggregator(h.collision)

	pagePool := crawlers.NewStagePool(crawlers.StagePage, pageQueue, h.workers,
		func(ctx context.Context, pageURL string) error {
			resp, err := h.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				return err
			}
			links, err := h.site.ExtractLinks(resp.URL, resp.Body)
			if err != nil {
				return err
			}
			for _, link := range links {
				detailQueue.Enqueue(link)
			}
			return nil
		}, h.policy)

	detailPool := crawlers.NewStagePool(crawlers.StageDetail, detailQueue, h.workers,
		func(ctx context.Context, detailURL string) error {
			resp, err := h.fetcher.Fetch(ctx, detailURL)
			if err != nil {
				return err
			}
			card, err := h.site.ExtractDetail(resp.URL, resp.Body)
			if err != nil {
				return err
			}
			card.Key = utils.NameKey(card.Name)
			if card.Key == "" {
				return &models.LayoutError{URL: detailURL, Element: "卡牌键", Detail: fmt.Sprintf("名称 %q 无法生成键", card.Name)}
			}
			aggregator.Add(card)

			if assets != nil {
				if artURL := card.PrimaryArtURL(); artURL != "" {
					assetQueue.Enqueue(models.AssetJob{Key: card.Key, URL: artURL})
				}
			}
			return nil
		}, h.policy)

	var assetPool *crawlers.StagePool[models.AssetJob]
	if assets != nil {
		assetPool = crawlers.NewStagePool(crawlers.StageAsset, assetQueue, h.workers,
			func(ctx context.Context, job models.AssetJob) error {
				_, err := assets.Download(ctx, job)
				return err
			}, h.policy)
	}

	var bar *progressbar.ProgressBar
	if h.progress != nil {
		bar = utils.NewProgressBar(-1, "采集卡牌", h.progress)
		detailPool.OnItemDone(func() { _ = bar.Add(1) })
	}

	pagePool.Start(runCtx)
	for _, p := range pages {
		pageQueue.Enqueue(p)
	}
	detailPool.Start(runCtx)
	if assetPool != nil {
		assetPool.Start(runCtx)
	}

	// 上游排空后下游才不会再有新的工作项
	joinErr := pageQueue.Join(runCtx)
	if joinErr == nil {
		joinErr = detailQueue.Join(runCtx)
	}
	if joinErr == nil && assetPool != nil {
		joinErr = assetQueue.Join(runCtx)
	}

	cancel()
	pagePool.Wait()
	detailPool.Wait()
	if assetPool != nil {
		assetPool.Wait()
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if joinErr != nil {
		return nil, fmt.Errorf("采集被中断: %w", joinErr)
	}

	cards, err := aggregator.Sorted()
	if err != nil {
		return nil, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(start).Seconds()
	stats.Pages = models.StageStats{Processed: pagePool.Processed(), Dropped: h.policy.Dropped(crawlers.StagePage)}
	stats.Details = models.StageStats{Processed: detailPool.Processed(), Dropped: h.policy.Dropped(crawlers.StageDetail)}
	if assetPool != nil {
		stats.Assets = models.StageStats{Processed: assetPool.Processed(), Dropped: h.policy.Dropped(crawlers.StageAsset)}
	}
	stats.Cards = len(cards)

	collisions := aggregator.Collisions()
	stats.Collided = len(collisions)

	utils.Infof("✅ 采集完成: %d 张卡牌, 耗时 %.2f秒", len(cards), stats.Duration)
	return &HarvestResult{Cards: cards, Stats: stats, Collisions: collisions}, nil
}

// resolvePages 入口页抓取或解析失败都是致命错误
func (h *Harvester) resolvePages(ctx context.Context) ([]string, error) {
	resp, err := h.fetcher.Fetch(ctx, h.config.RootURL)
	if err != nil {
		return nil, fmt.Errorf("获取入口页失败: %w", err)
	}
	pages, err := h.site.EnumeratePages(h.config.RootURL, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析分页失败: %w", err)
	}
	return pages, nil
}
