package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 负责把采集结果写入输出目录
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// SaveCards 保存卡牌列表
// 写入 <dir>/<name>.json,jsonl为true时同时写入 <dir>/<name>.jsonl
// 返回写入的文件路径
func (r *Reporter) SaveCards(name string, cards []*models.Card, jsonl bool) ([]string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	base := filepath.Join(r.outputDir, name)
	paths := make([]string, 0, 2)

	data, err := MarshalCards(cards)
	if err != nil {
		return nil, err
	}
	if err := models.WriteFileAtomic(base+".json", data); err != nil {
		return nil, fmt.Errorf("写入JSON文件失败: %w", err)
	}
	paths = append(paths, base+".json")

	if jsonl {
		data, err := MarshalCardsJSONL(cards)
		if err != nil {
			return nil, err
		}
		if err := models.WriteFileAtomic(base+".jsonl", data); err != nil {
			return nil, fmt.Errorf("写入JSONL文件失败: %w", err)
		}
		paths = append(paths, base+".jsonl")
	}

	Infof("💾 已保存 %d 张卡牌: %s", len(cards), strings.Join(paths, ", "))
	return paths, nil
}

// SaveStats 保存运行统计
func (r *Reporter) SaveStats(stats *models.HarvestStats) (string, error) {
	data, err := stats.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化统计失败: %w", err)
	}
	path := filepath.Join(r.outputDir, "reports", "harvest_stats.json")
	if err := models.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("写入统计文件失败: %w", err)
	}
	Debugf("保存报告: %s", path)
	return path, nil
}

// MarshalCards 两空格缩进,不转义HTML字符
func MarshalCards(cards []*models.Card) ([]byte, error) {
	if cards == nil {
		cards = []*models.Card{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		return nil, fmt.Errorf("序列化JSON失败: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalCardsJSONL 每行一条记录
func MarshalCardsJSONL(cards []*models.Card) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, c := range cards {
		if err := enc.Encode(c); err != nil {
			return nil, fmt.Errorf("序列化JSONL失败 [%s]: %w", c.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// PrintChangeReport 打印变更摘要
func PrintChangeReport(w io.Writer, report *models.ChangeReport) {
	fmt.Fprintln(w, "\n==================================================")
	fmt.Fprintln(w, "📋 变更摘要")
	fmt.Fprintln(w, "==================================================")

	if report.FirstRun {
		fmt.Fprintln(w, "🆕 首次运行,已建立索引")
		fmt.Fprintln(w, "==================================================")
		return
	}
	if !report.HasChanges() {
		fmt.Fprintln(w, "✅ 没有变化")
		fmt.Fprintln(w, "==================================================")
		return
	}

	fmt.Fprintf(w, "➕ 新增: %d\n", len(report.Added))
	for _, k := range report.Added {
		fmt.Fprintf(w, "  + %s\n", k)
	}
	fmt.Fprintf(w, "➖ 移除: %d\n", len(report.Removed))
	for _, k := range report.Removed {
		fmt.Fprintf(w, "  - %s\n", k)
	}
	if report.PossibleRename {
		fmt.Fprintln(w, "⚠️  同时存在新增和移除,可能有卡牌被改名")
	}
	fmt.Fprintln(w, "==================================================")
}

// NewProgressBar 创建进度条,max为-1时显示为计数器
func NewProgressBar(max int, description string, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = os.Stderr
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
