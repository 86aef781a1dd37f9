package core

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/RecoveryAshes/arachas/internal/utils"
)

// IndexOptions 快照索引选项
type IndexOptions struct {
	// Path 快照文件路径
	Path string

	// RewriteUnchanged 键集合没有变化时是否仍重写快照
	RewriteUnchanged bool
}

// Indexer 比较本次和上一次运行的键集合,并保存新快照
type Indexer struct {
	opts IndexOptions
	now  func() time.Time
}

// NewIndexer 创建索引器
func NewIndexer(opts IndexOptions) *Indexer {
	if opts.Path == "" {
		opts.Path = ".card_index"
	}
	return &Indexer{opts: opts, now: time.Now}
}

// Path 快照文件路径
func (ix *Indexer) Path() string {
	return ix.opts.Path
}

// Update 加载上一次的快照,与keys比较,按需写入新快照
// 没有旧快照时只建立基线 (FirstRun)
func (ix *Indexer) Update(keys []string) (*models.ChangeReport, error) {
	current := models.NewSnapshot(keys, ix.now())

	previous, err := models.LoadSnapshotFromFile(ix.opts.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("加载索引失败: %w", err)
		}
		utils.Infof("🆕 没有找到索引,创建新索引: %s", ix.opts.Path)
		if err := current.SaveToFile(ix.opts.Path); err != nil {
			return nil, fmt.Errorf("保存索引失败: %w", err)
		}
		return &models.ChangeReport{
			Added:     []string{},
			Removed:   []string{},
			FirstRun:  true,
			Rewritten: true,
		}, nil
	}

	report := Diff(previous, current)
	if report.HasChanges() || ix.opts.RewriteUnchanged {
		if err := current.SaveToFile(ix.opts.Path); err != nil {
			return nil, fmt.Errorf("保存索引失败: %w", err)
		}
		report.Rewritten = true
		utils.Debugf("索引已更新: %s (%d 个键)", ix.opts.Path, current.Count)
	}
	return report, nil
}

// Diff 计算两个快照之间的变化,结果有序
func Diff(previous, current *models.Snapshot) *models.ChangeReport {
	report := &models.ChangeReport{
		Added:   []string{},
		Removed: []string{},
	}
	for key := range current.Cards {
		if _, ok := previous.Cards[key]; !ok {
			report.Added = append(report.Added, key)
		}
	}
	for key := range previous.Cards {
		if _, ok := current.Cards[key]; !ok {
			report.Removed = append(report.Removed, key)
		}
	}
	sort.Strings(report.Added)
	sort.Strings(report.Removed)

	report.PossibleRename = len(report.Added) > 0 && len(report.Removed) > 0
	return report
}
