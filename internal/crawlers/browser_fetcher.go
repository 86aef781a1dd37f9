package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// BrowserOptions 浏览器抓取器配置
type BrowserOptions struct {
	Headless bool
	Timeout  time.Duration
	Headers  models.HeaderProvider
	Monitor  *ResourceMonitor
}

// BrowserFetcher 用无头浏览器渲染页面后返回HTML,用于依赖JS渲染的目录
type BrowserFetcher struct {
	browser *rod.Browser
	pool    *PagePool
	headers models.HeaderProvider
	timeout time.Duration
}

// NewBrowserFetcher 启动浏览器并创建标签页池
func NewBrowserFetcher(opts BrowserOptions) (*BrowserFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Monitor == nil {
		opts.Monitor = NewResourceMonitor(ResourceMonitorConfig{})
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	log.Debug().Str("control_url", controlURL).Msg("浏览器已启动")

	return &BrowserFetcher{
		browser: browser,
		pool:    NewPagePool(browser, opts.Monitor),
		headers: opts.Headers,
		timeout: opts.Timeout,
	}, nil
}

// Fetch 实现 Fetcher 接口,返回渲染后的HTML
func (bf *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	page, err := bf.pool.Acquire(ctx)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer bf.pool.Release(page)

	p := page.Context(ctx).Timeout(bf.timeout)
	defer p.CancelTimeout()

	if cleanup, err := bf.applyHeaders(p); err != nil {
		log.Warn().Err(err).Msg("设置浏览器请求头部失败")
	} else {
		defer cleanup()
	}

	// 记录主文档的状态码
	status := 0
	wait := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := p.Navigate(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("导航失败: %w", err)}
	}
	wait()

	if err := p.WaitLoad(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("等待页面加载失败: %w", err)}
	}
	if !isSuccess(status) {
		return nil, &FetchError{URL: rawURL, StatusCode: status}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("读取页面HTML失败: %w", err)}
	}

	return &Response{
		URL:        rawURL,
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(html),
	}, nil
}

func (bf *BrowserFetcher) applyHeaders(p *rod.Page) (func(), error) {
	if bf.headers == nil {
		return func() {}, nil
	}
	headers, err := bf.headers.GetHeaders()
	if err != nil {
		return nil, err
	}
	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) > 0 {
			dict = append(dict, name, values[0])
		}
	}
	if len(dict) == 0 {
		return func() {}, nil
	}
	return p.SetExtraHeaders(dict)
}

// Close 关闭标签页池和浏览器
func (bf *BrowserFetcher) Close() error {
	bf.pool.Close()
	if err := bf.browser.Close(); err != nil {
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	log.Debug().Msg("浏览器已关闭")
	return nil
}
