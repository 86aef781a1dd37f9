package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/arachas/internal/extract"
	"github.com/RecoveryAshes/arachas/internal/history"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/RecoveryAshes/arachas/internal/utils"
	"github.com/spf13/viper"
)

// DefaultRootURL 默认目录入口
const DefaultRootURL = "http://gwentify.com/cards/?view=table"

// Config 应用程序配置
type Config struct {
	Harvest  HarvestSection  `mapstructure:"harvest"`
	Output   OutputConfig    `mapstructure:"output"`
	Index    IndexConfig     `mapstructure:"index"`
	History  HistoryConfig   `mapstructure:"history"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Resource ResourceSection `mapstructure:"resource"`
}

// HarvestSection 采集配置
type HarvestSection struct {
	RootURL        string `mapstructure:"root_url"`
	Workers        int    `mapstructure:"workers"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Mode           string `mapstructure:"mode"`
	DownloadAssets bool   `mapstructure:"download_assets"`
	AssetDir       string `mapstructure:"asset_dir"`
	Headless       bool   `mapstructure:"headless"`
	PagePattern    string `mapstructure:"page_pattern"`
	ShowProgress   bool   `mapstructure:"show_progress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	FileName string `mapstructure:"file_name"`
	JSONL    bool   `mapstructure:"jsonl"`
}

// IndexConfig 快照索引配置
type IndexConfig struct {
	Path             string `mapstructure:"path"`
	RewriteUnchanged bool   `mapstructure:"rewrite_unchanged"`
	CollisionPolicy  string `mapstructure:"collision_policy"`
}

// HistoryConfig 运行历史配置
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceSection 资源配置 (MB / %)
type ResourceSection struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`
	MaxTabsLimit        int `mapstructure:"max_tabs_limit"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".arachas"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		utils.Debugf("使用配置文件: %s", used)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.root_url", DefaultRootURL)
	v.SetDefault("harvest.workers", 10)
	v.SetDefault("harvest.timeout_seconds", 5)
	v.SetDefault("harvest.mode", string(models.ModeStatic))
	v.SetDefault("harvest.download_assets", false)
	v.SetDefault("harvest.asset_dir", "media")
	v.SetDefault("harvest.headless", true)
	v.SetDefault("harvest.page_pattern", extract.DefaultPagePattern)
	v.SetDefault("harvest.show_progress", true)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.file_name", "latest")
	v.SetDefault("output.jsonl", true)

	v.SetDefault("index.path", ".card_index")
	v.SetDefault("index.rewrite_unchanged", false)
	v.SetDefault("index.collision_policy", string(CollisionWarn))

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", history.DefaultDir())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 80)
	v.SetDefault("resource.max_tabs_limit", 16)
}

// HarvestConfig 转换为采集配置
func (c *Config) HarvestConfig() models.HarvestConfig {
	return models.HarvestConfig{
		RootURL:             c.Harvest.RootURL,
		Workers:             c.Harvest.Workers,
		Timeout:             time.Duration(c.Harvest.TimeoutSeconds) * time.Second,
		Mode:                models.FetchMode(c.Harvest.Mode),
		Headless:            c.Harvest.Headless,
		DownloadAssets:      c.Harvest.DownloadAssets,
		AssetDir:            c.Harvest.AssetDir,
		PagePattern:         c.Harvest.PagePattern,
		ShowProgress:        c.Harvest.ShowProgress,
		SafetyReserveMemory: c.Resource.SafetyReserveMemory,
		SafetyThreshold:     c.Resource.SafetyThreshold,
		CPULoadThreshold:    c.Resource.CPULoadThreshold,
		MaxTabsLimit:        c.Resource.MaxTabsLimit,
	}
}

// LogConfig 转换为日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// IndexOptions 转换为索引选项
func (c *Config) IndexOptions() IndexOptions {
	return IndexOptions{
		Path:             c.Index.Path,
		RewriteUnchanged: c.Index.RewriteUnchanged,
	}
}

// CLIOverrides 命令行参数,零值表示未指定
type CLIOverrides struct {
	RootURL        string
	OutputName     string
	Workers        int
	Mode           string
	DownloadAssets bool
	RewriteIndex   bool
	NoProgress     bool
	LogLevel       string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.RootURL != "" {
		c.Harvest.RootURL = o.RootURL
	}
	if o.OutputName != "" {
		c.Output.FileName = o.OutputName
	}
	if o.Workers > 0 {
		c.Harvest.Workers = o.Workers
	}
	if o.Mode != "" {
		c.Harvest.Mode = o.Mode
	}
	if o.DownloadAssets {
		c.Harvest.DownloadAssets = true
	}
	if o.RewriteIndex {
		c.Index.RewriteUnchanged = true
	}
	if o.NoProgress {
		c.Harvest.ShowProgress = false
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}
