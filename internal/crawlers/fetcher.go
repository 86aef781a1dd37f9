package crawlers

import (
	"context"
	"fmt"
	"net/http"
)

// Response 一次成功(2xx)抓取的结果
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType 返回Content-Type头部
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Fetcher 执行一次受超时约束的网络读取
// 传输错误和非2xx状态都以 *FetchError 返回
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// FetchError 抓取失败
type FetchError struct {
	URL        string
	StatusCode int // 0 表示传输层错误
	Err        error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("请求失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("请求失败 [%s]: %v", e.URL, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *FetchError) Unwrap() error {
	return e.Err
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
