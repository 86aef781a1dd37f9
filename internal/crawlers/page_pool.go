package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed 标签页池已关闭
var ErrPoolClosed = errors.New("标签页池已关闭")

// maxCleanFailures 清理连续失败达到该次数后销毁标签页
const maxCleanFailures = 2

// PagePool 浏览器标签页池
// 标签页数量受 ResourceMonitor.Capacity 限制,超过时 Acquire 阻塞等待归还
type PagePool struct {
	browser *rod.Browser
	monitor *ResourceMonitor

	available chan *rod.Page

	mu       sync.Mutex
	pages    map[*rod.Page]int // 标签页 -> 连续清理失败次数
	creating int
	closed   bool
}

// NewPagePool 创建标签页池
func NewPagePool(browser *rod.Browser, monitor *ResourceMonitor) *PagePool {
	return &PagePool{
		browser:   browser,
		monitor:   monitor,
		available: make(chan *rod.Page, 64),
		pages:     make(map[*rod.Page]int),
	}
}

// Acquire 获取一个标签页: 优先复用空闲的,未达上限时新建,否则等待
func (pp *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	select {
	case page, ok := <-pp.available:
		if !ok {
			return nil, ErrPoolClosed
		}
		return page, nil
	default:
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, ErrPoolClosed
	}
	limit := pp.monitor.Capacity()
	canCreate := len(pp.pages)+pp.creating < limit
	if canCreate {
		if ok, reason := pp.monitor.CheckAvailability(); !ok && len(pp.pages)+pp.creating > 0 {
			log.Warn().Msgf("资源不足,等待空闲标签页: %s", reason)
			canCreate = false
		}
	}
	if canCreate {
		pp.creating++
	}
	pp.mu.Unlock()

	if !canCreate {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case page, ok := <-pp.available:
			if !ok {
				return nil, ErrPoolClosed
			}
			return page, nil
		}
	}

	page, err := pp.browser.Page(proto.TargetCreateTarget{})

	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.creating--
	if err != nil {
		log.Error().Err(err).Msg("创建标签页失败,浏览器可能已崩溃")
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}
	if pp.closed {
		page.Close()
		return nil, ErrPoolClosed
	}
	pp.pages[page] = 0
	log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", len(pp.pages), limit)
	return page, nil
}

// Release 清理后归还标签页,连续清理失败的标签页被销毁
func (pp *PagePool) Release(page *rod.Page) {
	if page == nil {
		return
	}

	cleanErr := cleanPage(page)

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		page.Close()
		return
	}
	failures, known := pp.pages[page]
	if !known {
		pp.mu.Unlock()
		page.Close()
		return
	}
	if cleanErr != nil {
		failures++
		log.Warn().Err(cleanErr).Msgf("清理标签页状态失败 (第%d次)", failures)
	} else {
		failures = 0
	}
	pp.pages[page] = failures

	// 发送在锁内进行,Close 关闭channel时不会并发写入
	returned := false
	if failures < maxCleanFailures {
		select {
		case pp.available <- page:
			returned = true
		default:
		}
	}
	pp.mu.Unlock()

	if !returned {
		pp.destroy(page)
	}
}

// cleanPage 清空存储和cookie,避免页面之间互相影响
func cleanPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { localStorage.clear(); } catch (e) {}
			try { sessionStorage.clear(); } catch (e) {}
			try {
				document.cookie.split(";").forEach(function (c) {
					var name = c.split("=")[0].trim();
					document.cookie = name + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
				});
			} catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理标签页状态失败: %w", err)
	}
	return nil
}

func (pp *PagePool) destroy(page *rod.Page) {
	pp.mu.Lock()
	delete(pp.pages, page)
	remaining := len(pp.pages)
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁标签页,当前标签页数: %d", remaining)
}

// Size 当前标签页数
func (pp *PagePool) Size() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Close 关闭所有标签页
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil
	}
	pp.closed = true
	pages := pp.pages
	pp.pages = make(map[*rod.Page]int)
	close(pp.available)
	pp.mu.Unlock()

	for page := range pages {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	log.Debug().Msg("标签页池已关闭")
	return nil
}
