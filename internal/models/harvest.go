package models

import (
	"fmt"
	"time"
)

// FetchMode 抓取模式
type FetchMode string

const (
	ModeStatic  FetchMode = "static"  // HTTP客户端 (colly)
	ModeDynamic FetchMode = "dynamic" // 无头浏览器 (rod)
)

// HarvestConfig 采集配置
type HarvestConfig struct {
	RootURL        string        `json:"root_url"`        // 目录入口URL
	Workers        int           `json:"workers"`         // 每个阶段的工作协程数 (0表示按资源自动计算)
	Timeout        time.Duration `json:"timeout"`         // 单次请求超时
	Mode           FetchMode     `json:"mode"`            // 抓取模式
	Headless       bool          `json:"headless"`        // 动态模式下是否无头
	DownloadAssets bool          `json:"download_assets"` // 是否下载卡图
	AssetDir       string        `json:"asset_dir"`       // 卡图目录
	PagePattern    string        `json:"page_pattern"`    // 分页链接模板正则
	ShowProgress   bool          `json:"show_progress"`   // 是否显示进度条

	// 资源配置 (MB / %)
	SafetyReserveMemory int `json:"safety_reserve_memory"`
	SafetyThreshold     int `json:"safety_threshold"`
	CPULoadThreshold    int `json:"cpu_load_threshold"`
	MaxTabsLimit        int `json:"max_tabs_limit"`
}

// Validate 验证配置
func (c *HarvestConfig) Validate() error {
	if err := ValidateURL(c.RootURL); err != nil {
		return fmt.Errorf("入口URL无效: %w", err)
	}
	if c.Workers < 0 || c.Workers > 100 {
		return fmt.Errorf("并发数必须在0-100之间")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.Mode != ModeStatic && c.Mode != ModeDynamic {
		return fmt.Errorf("无效的抓取模式: %s (有效值: static, dynamic)", c.Mode)
	}
	if c.DownloadAssets && c.AssetDir == "" {
		return fmt.Errorf("启用卡图下载时必须指定卡图目录")
	}
	return nil
}
