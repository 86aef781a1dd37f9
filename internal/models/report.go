package models

import (
	"encoding/json"
	"time"
)

// ChangeReport 两次运行之间的键集合变化
type ChangeReport struct {
	Added   []string `json:"added"`   // 新增的键 (有序)
	Removed []string `json:"removed"` // 移除的键 (有序)

	// FirstRun 之前没有快照,本次仅建立基线
	FirstRun bool `json:"first_run"`

	// PossibleRename 同时存在新增和移除,可能是改名
	PossibleRename bool `json:"possible_rename"`

	// Rewritten 快照文件是否被重写
	Rewritten bool `json:"rewritten"`
}

// HasChanges 是否有新增或移除
func (r *ChangeReport) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// StageStats 单个阶段的计数
type StageStats struct {
	Processed int64 `json:"processed"` // 已处理 (含失败)
	Dropped   int64 `json:"dropped"`   // 失败后丢弃
}

// HarvestStats 一次采集运行的统计
type HarvestStats struct {
	RunID     string     `json:"run_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Duration  float64    `json:"duration"` // 秒
	Pages     StageStats `json:"pages"`
	Details   StageStats `json:"details"`
	Assets    StageStats `json:"assets"`
	Cards     int        `json:"cards"`      // 去重后的记录数
	Collided  int        `json:"collisions"` // 键冲突数
}

// ToJSON 序列化为JSON
func (s *HarvestStats) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
