package crawlers

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout 默认请求超时
	DefaultTimeout = 5 * time.Second

	// DefaultMaxBodySize 单个响应体上限 (32MB)
	DefaultMaxBodySize = 32 * 1024 * 1024

	responseKey = "arachas.response"
)

var errNoResponse = errors.New("没有收到响应")

// FetcherOptions 抓取器配置
type FetcherOptions struct {
	Timeout            time.Duration         // 单次请求超时
	Headers            models.HeaderProvider // 请求头部,可为空
	Parallelism        int                   // 同时进行的请求上限,0表示不限制
	MaxBodySize        int                   // 响应体上限
	InsecureSkipVerify bool                  // 跳过TLS证书验证
}

// CollyFetcher 基于colly的同步抓取器,可被多个worker并发调用
type CollyFetcher struct {
	collector *colly.Collector
	headers   models.HeaderProvider
	timeout   time.Duration
}

// NewCollyFetcher 创建抓取器
func NewCollyFetcher(opts FetcherOptions) *CollyFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}

	// 同一URL可能被请求多次 (入口页既用于枚举也作为第一页)
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(opts.MaxBodySize),
	)

	c.SetClient(&http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.InsecureSkipVerify,
			},
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: opts.Timeout,
	})
	c.SetRequestTimeout(opts.Timeout)

	if opts.Parallelism > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: opts.Parallelism,
		}); err != nil {
			log.Warn().Err(err).Msg("设置并发限制失败")
		}
	}

	f := &CollyFetcher{
		collector: c,
		headers:   opts.Headers,
		timeout:   opts.Timeout,
	}
	c.OnRequest(f.applyHeaders)
	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})
	return f
}

// applyHeaders 在每次请求前应用自定义头部
func (f *CollyFetcher) applyHeaders(r *colly.Request) {
	if f.headers == nil {
		return
	}
	headers, err := f.headers.GetHeaders()
	if err != nil {
		log.Warn().Err(err).Msg("获取HTTP头部失败")
		return
	}
	for name, values := range headers {
		if len(values) > 0 {
			r.Headers.Set(name, values[0])
		}
	}
	log.Trace().Str("url", r.URL.String()).Msg("访问")
}

// Fetch 实现 Fetcher 接口
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	cctx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, rawURL, nil, cctx, nil); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	r, ok := cctx.GetAny(responseKey).(*colly.Response)
	if !ok || r == nil {
		return nil, &FetchError{URL: rawURL, Err: errNoResponse}
	}
	if !isSuccess(r.StatusCode) {
		return nil, &FetchError{URL: rawURL, StatusCode: r.StatusCode}
	}

	header := http.Header{}
	if r.Headers != nil {
		header = r.Headers.Clone()
	}
	body, err := decodeBody(header.Get("Content-Encoding"), r.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return &Response{
		URL:        finalURL,
		StatusCode: r.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}
