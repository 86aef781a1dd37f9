package utils

import (
	"net/http"
	"sort"
	"strings"
)

// SensitiveKeywords 名称包含这些关键字的头部在日志中脱敏
var SensitiveKeywords = []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"}

// HeaderRedactor 头部脱敏器
type HeaderRedactor struct {
	keywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{keywords: SensitiveKeywords}
}

// IsSensitive 判断头部是否敏感
func (hr *HeaderRedactor) IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range hr.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个值
func (hr *HeaderRedactor) RedactValue(name, value string) string {
	if !hr.IsSensitive(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Redact 返回脱敏后的头部 (每个头部只取第一个值)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactValue(name, values[0])
	}
	return result
}

// RedactToString 格式: "A: 1, B: 2",按名称排序
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}
