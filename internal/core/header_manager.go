package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/arachas/internal/config"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/RecoveryAshes/arachas/internal/utils"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0"

// HeaderManager 合并默认、配置文件和命令行三层请求头部
// 实现 models.HeaderProvider 接口,可被多个worker并发调用
type HeaderManager struct {
	defaults http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	// 配置文件只加载和验证一次,结果缓存
	once   sync.Once
	merged http.Header
	err    error
}

// NewHeaderManager 创建头部管理器
// configFile 为空时使用 configs/headers.yaml,cliHeaders 格式为 "Name: Value"
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	return &HeaderManager{
		defaults:     getDefaultHeaders(),
		cli:          cli,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}, nil
}

func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"*/*"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

func (hm *HeaderManager) load() {
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		hm.err = err
		return
	}

	fromFile := make(http.Header)
	for name, value := range headerConfig.Headers {
		fromFile.Set(name, value)
	}

	// 验证顺序: 默认 → 配置 → 命令行
	for _, layer := range []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", fromFile},
		{"命令行", hm.cli},
	} {
		if err := hm.validator.Validate(layer.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", layer.name, err)
			hm.err = err
			return
		}
	}

	// default < config < cli
	merged := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, fromFile, hm.cli} {
		for name, values := range layer {
			merged[name] = values
		}
	}
	hm.merged = merged

	utils.Debugf("HTTP头部: %s", hm.redactor.RedactToString(merged))
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(hm.load)
	if hm.err != nil {
		return nil, hm.err
	}
	return hm.merged.Clone(), nil
}

// GetSafeHeaders 返回脱敏后的头部,用于日志
func (hm *HeaderManager) GetSafeHeaders() (map[string]string, error) {
	headers, err := hm.GetHeaders()
	if err != nil {
		return nil, err
	}
	return hm.redactor.Redact(headers), nil
}
