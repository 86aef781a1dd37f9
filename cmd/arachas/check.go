package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RecoveryAshes/arachas/internal/core"
	"github.com/RecoveryAshes/arachas/internal/crawlers"
	"github.com/RecoveryAshes/arachas/internal/history"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

// checkResult 一项环境检查的结果
type checkResult struct {
	Name     string
	OK       bool
	Required bool // 必需项失败时返回非零退出码
	Detail   string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查运行环境",
	RunE: func(cmd *cobra.Command, args []string) error {
		results := runChecks(appConfig)
		if !printChecks(cmd.OutOrStdout(), results) {
			return fmt.Errorf("环境检查未通过")
		}
		return nil
	},
}

func runChecks(config *core.Config) []checkResult {
	results := []checkResult{{
		Name:   "运行环境",
		OK:     true,
		Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	if path, ok := launcher.LookPath(); ok {
		results = append(results, checkResult{Name: "浏览器", OK: true, Detail: path})
	} else {
		results = append(results, checkResult{
			Name:     "浏览器",
			Required: config.Harvest.Mode == string(models.ModeDynamic),
			Detail:   "未找到Chromium,动态模式首次运行时会自动下载",
		})
	}

	results = append(results, checkWritable("输出目录", config.Output.Dir))
	results = append(results, checkWritable("日志目录", config.Logging.LogDir))
	if config.Harvest.DownloadAssets {
		results = append(results, checkWritable("卡图目录", config.Harvest.AssetDir))
	}
	results = append(results, checkWritable("索引目录", filepath.Dir(config.Index.Path)))

	if config.History.Enabled {
		r := checkResult{Name: "历史数据库", Required: true}
		if store, err := history.Open(config.History.Dir); err != nil {
			r.Detail = err.Error()
		} else {
			r.OK = true
			r.Detail = store.Path()
			store.Close()
		}
		results = append(results, r)
	}

	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(config.Resource.SafetyReserveMemory) * 1024 * 1024,
		SafetyThreshold:     int64(config.Resource.SafetyThreshold) * 1024 * 1024,
		CPULoadThreshold:    config.Resource.CPULoadThreshold,
		MaxLimit:            config.Resource.MaxTabsLimit,
	})
	ok, reason := monitor.CheckAvailability()
	detail := fmt.Sprintf("建议并发数 %d, 标签页上限 %d", monitor.SuggestWorkers(), monitor.Capacity())
	if !ok {
		detail += ", " + reason
	}
	results = append(results, checkResult{Name: "系统资源", OK: ok, Detail: detail})

	return results
}

// checkWritable 目录不存在时创建,并尝试写入一个临时文件
func checkWritable(name, dir string) checkResult {
	r := checkResult{Name: name, Required: true, Detail: dir}
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.Detail = fmt.Sprintf("%s: %v", dir, err)
		return r
	}
	f, err := os.CreateTemp(dir, ".arachas-check-*")
	if err != nil {
		r.Detail = fmt.Sprintf("%s: 不可写 (%v)", dir, err)
		return r
	}
	f.Close()
	os.Remove(f.Name())
	r.OK = true
	return r
}

// printChecks 打印检查结果,必需项全部通过时返回true
func printChecks(w io.Writer, results []checkResult) bool {
	fmt.Fprintln(w, "==============================================")
	fmt.Fprintln(w, "  arachas 环境检查")
	fmt.Fprintln(w, "==============================================")

	allOK := true
	for _, r := range results {
		switch {
		case r.OK:
			fmt.Fprintf(w, "✅ %s: %s\n", r.Name, r.Detail)
		case r.Required:
			fmt.Fprintf(w, "❌ %s: %s\n", r.Name, r.Detail)
			allOK = false
		default:
			fmt.Fprintf(w, "⚠️  %s: %s\n", r.Name, r.Detail)
		}
	}

	fmt.Fprintln(w, "==============================================")
	if allOK {
		fmt.Fprintln(w, "✅ 环境检查通过")
	} else {
		fmt.Fprintln(w, "❌ 环境检查失败,请解决上述问题")
	}
	return allOK
}
