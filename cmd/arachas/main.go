package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/RecoveryAshes/arachas/internal/core"
	"github.com/RecoveryAshes/arachas/internal/history"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/RecoveryAshes/arachas/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string

	// HTTP头部参数
	headers          []string
	headerConfigFile string
	validateConfig   bool

	// 采集参数
	rootURL         string
	outputName      string
	downloadImages  bool
	workers         int
	mode            string
	rewriteIndex    bool
	noProgress      bool
	collisionPolicy string
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "arachas",
	Short: "卡牌目录采集工具",
	Long: `arachas - 卡牌目录采集工具

从分页的卡牌目录网站采集全部卡牌:
  • 解析全部列表页和详情页,生成按名称排序的JSON/JSONL
  • 可选下载卡图
  • 与上一次运行比较,报告新增和移除的卡牌
  • 静态(HTTP)和动态(无头浏览器)两种抓取模式

示例:
  arachas
  arachas -o cards --image
  arachas --url http://example.com/cards/?view=table -H "User-Agent: MyBot/1.0"
  arachas history --limit 5

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(core.CLIOverrides{
			RootURL:        rootURL,
			OutputName:     outputName,
			Workers:        workers,
			Mode:           mode,
			DownloadAssets: downloadImages,
			RewriteIndex:   rewriteIndex,
			NoProgress:     noProgress,
			LogLevel:       logLevel,
		})
		if collisionPolicy != "" {
			config.Index.CollisionPolicy = collisionPolicy
		}
		appConfig = config

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Ctrl+C 取消采集,worker通过ctx退出
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(headerConfigFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return runValidateConfig(headerManager)
		}

		if err := ValidateFlags(appConfig.Harvest.Workers, appConfig.Harvest.Mode, appConfig.Output.FileName); err != nil {
			return err
		}
		policy, err := core.ParseCollisionPolicy(appConfig.Index.CollisionPolicy)
		if err != nil {
			return err
		}

		harvester, err := core.NewHarvester(appConfig.HarvestConfig(), headerManager,
			core.WithCollisionPolicy(policy),
			core.WithProgress(os.Stderr),
		)
		if err != nil {
			return fmt.Errorf("创建采集器失败: %w", err)
		}
		defer harvester.Close()

		result, err := harvester.Harvest(ctx)
		if err != nil {
			return fmt.Errorf("采集失败: %w", err)
		}

		reporter := utils.NewReporter(appConfig.Output.Dir)
		if _, err := reporter.SaveCards(appConfig.Output.FileName, result.Cards, appConfig.Output.JSONL); err != nil {
			return fmt.Errorf("保存结果失败: %w", err)
		}
		if _, err := reporter.SaveStats(&result.Stats); err != nil {
			utils.Warnf("保存统计失败: %v", err)
		}

		utils.Info("🔍 加载索引...")
		report, err := core.NewIndexer(appConfig.IndexOptions()).Update(result.Keys())
		if err != nil {
			return fmt.Errorf("更新索引失败: %w", err)
		}
		utils.PrintChangeReport(os.Stdout, report)

		if appConfig.History.Enabled {
			if err := recordHistory(ctx, appConfig.History.Dir, result, report); err != nil {
				utils.Warnf("记录运行历史失败: %v", err)
			}
		}

		printSummary(os.Stdout, result)
		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("arachas %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func runValidateConfig(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	safeHeaders, err := hm.GetSafeHeaders()
	if err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}

func recordHistory(ctx context.Context, dir string, result *core.HarvestResult, report *models.ChangeReport) error {
	store, err := history.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	stats := result.Stats
	_, err = store.Record(ctx, &history.Run{
		RunID:     stats.RunID,
		StartedAt: stats.StartTime,
		Duration:  stats.Duration,
		Cards:     stats.Cards,
		Dropped:   stats.Pages.Dropped + stats.Details.Dropped + stats.Assets.Dropped,
		FirstRun:  report.FirstRun,
		Added:     report.Added,
		Removed:   report.Removed,
	})
	if err == nil {
		utils.Debugf("运行记录已写入: %s", store.Path())
	}
	return err
}

func printSummary(w io.Writer, result *core.HarvestResult) {
	stats := result.Stats
	fmt.Fprintln(w, "\n==================================================")
	fmt.Fprintln(w, "📊 采集统计")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "🆔 运行ID: %s\n", stats.RunID)
	fmt.Fprintf(w, "✅ 列表页: %d (丢弃 %d)\n", stats.Pages.Processed, stats.Pages.Dropped)
	fmt.Fprintf(w, "✅ 详情页: %d (丢弃 %d)\n", stats.Details.Processed, stats.Details.Dropped)
	if stats.Assets.Processed > 0 {
		fmt.Fprintf(w, "🖼️  卡图: %d (丢弃 %d)\n", stats.Assets.Processed, stats.Assets.Dropped)
	}
	fmt.Fprintf(w, "🃏 卡牌数: %d\n", stats.Cards)
	if stats.Collided > 0 {
		fmt.Fprintf(w, "⚠️  键冲突: %d\n", stats.Collided)
	}
	fmt.Fprintf(w, "⏱️  总耗时: %.2f秒\n", stats.Duration)
	fmt.Fprintln(w, "==================================================")
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().StringVar(&headerConfigFile, "header-config", "", "HTTP头部配置文件 (默认 configs/headers.yaml)")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置")

	// 采集参数
	rootCmd.Flags().StringVarP(&rootURL, "url", "u", "", "目录入口URL (覆盖配置文件)")
	rootCmd.Flags().StringVarP(&outputName, "output", "o", "", "输出文件名 (不含扩展名)")
	rootCmd.Flags().BoolVar(&downloadImages, "image", false, "下载全部卡图")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "每个阶段的并发数 (1-100,默认读取配置)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "抓取模式 (static|dynamic)")
	rootCmd.Flags().BoolVar(&rewriteIndex, "rewrite-index", false, "没有变化时也重写索引")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	rootCmd.Flags().StringVar(&collisionPolicy, "collision", "", "键冲突策略 (warn|ignore|reject)")

	historyCmd.Flags().Int("limit", 10, "显示的记录数,0表示全部")
	historyCmd.Flags().Bool("json", false, "以JSON格式输出")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
