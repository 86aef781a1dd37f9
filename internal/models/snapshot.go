package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// utf8BOM 旧版本写入的索引文件可能带有BOM
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SnapshotTimeLayout 快照时间戳格式
const SnapshotTimeLayout = "2006-01-02 15:04:05.000000"

// Snapshot 上一次运行的键集合,两次运行之间唯一的持久化状态
type Snapshot struct {
	Cards     map[string]bool `json:"cards"`     // 键集合
	Count     int             `json:"count"`     // 键数量
	CreatedOn string          `json:"createdOn"` // 创建时间 (UTC)
}

// NewSnapshot 根据键列表创建快照
func NewSnapshot(keys []string, now time.Time) *Snapshot {
	cards := make(map[string]bool, len(keys))
	for _, k := range keys {
		cards[k] = true
	}
	return &Snapshot{
		Cards:     cards,
		Count:     len(cards),
		CreatedOn: now.UTC().Format(SnapshotTimeLayout),
	}
}

// Keys 返回有序的键列表
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Cards))
	for k := range s.Cards {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToJSON 序列化为JSON
func (s *Snapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化,容忍UTF-8 BOM
func (s *Snapshot) FromJSON(data []byte) error {
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := json.Unmarshal(data, s); err != nil {
		return err
	}
	if s.Cards == nil {
		s.Cards = make(map[string]bool)
	}
	return nil
}

// SaveToFile 原子写入: 先写临时文件再重命名
func (s *Snapshot) SaveToFile(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// LoadSnapshotFromFile 从文件加载快照
// 文件不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)
func LoadSnapshotFromFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := s.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析快照失败 [%s]: %w", path, err)
	}
	return &s, nil
}

// WriteFileAtomic 写入同目录临时文件后重命名,读者不会看到半写的文件
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}
