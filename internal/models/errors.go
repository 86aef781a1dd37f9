package models

import "fmt"

// LayoutError 页面结构与预期不符
// 枚举分页时为致命错误,详情页缺少必需字段时该条目被丢弃
type LayoutError struct {
	// URL 出错的页面
	URL string

	// Element 缺失或不匹配的元素
	Element string

	// Detail 补充说明 (可选)
	Detail string
}

// Error 实现error接口
func (e *LayoutError) Error() string {
	msg := fmt.Sprintf("页面结构不受支持 [%s]: 缺少 %s", e.URL, e.Element)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	return msg
}
