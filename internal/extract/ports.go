// Package extract 把抓取到的页面解析为页面URL、详情URL和卡牌记录
//
// 三个端口都是纯函数,不做网络访问,可被多个worker并发调用。
package extract

import "github.com/RecoveryAshes/arachas/internal/models"

// PageEnumerator 从入口页解析出全部列表页URL
type PageEnumerator interface {
	// EnumeratePages 返回入口页本身以及第2..N页,入口页在最前
	// 找不到末页链接或链接不匹配模板时返回 *models.LayoutError
	EnumeratePages(rootURL string, body []byte) ([]string, error)
}

// LinkExtractor 从列表页解析出详情页URL,按表格行序
type LinkExtractor interface {
	ExtractLinks(pageURL string, body []byte) ([]string, error)
}

// DetailExtractor 从详情页解析出一张卡牌,不计算Key
type DetailExtractor interface {
	ExtractDetail(pageURL string, body []byte) (*models.Card, error)
}

// Site 一个目录站点的全部解析能力
type Site interface {
	PageEnumerator
	LinkExtractor
	DetailExtractor
}
