package models

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com/cards/?view=table", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHarvestConfig_Validate(t *testing.T) {
	valid := HarvestConfig{
		RootURL: "http://example.com/cards/",
		Workers: 10,
		Timeout: 5 * time.Second,
		Mode:    ModeStatic,
	}

	tests := []struct {
		name    string
		mutate  func(c *HarvestConfig)
		wantErr bool
	}{
		{"有效配置", func(c *HarvestConfig) {}, false},
		{"自动并发", func(c *HarvestConfig) { c.Workers = 0 }, false},
		{"并发过大", func(c *HarvestConfig) { c.Workers = 101 }, true},
		{"超时为0", func(c *HarvestConfig) { c.Timeout = 0 }, true},
		{"无效模式", func(c *HarvestConfig) { c.Mode = "all" }, true},
		{"下载卡图但无目录", func(c *HarvestConfig) { c.DownloadAssets = true }, true},
		{"无效入口", func(c *HarvestConfig) { c.RootURL = "example.com" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCard_JSONKeysSorted(t *testing.T) {
	card := NewCard("Geralt")
	card.Key = "geralt"
	card.SourceURL = "http://example.com/geralt"

	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if _, ok := raw["flavor"]; ok {
		t.Error("缺失的flavor应被省略")
	}
	if _, ok := raw["info"]; ok {
		t.Error("缺失的info应被省略")
	}
	if strings.Contains(string(data), "example.com") {
		t.Error("SourceURL不应被序列化")
	}

	want := `{"categories":[],"faction":"","key":"geralt","loyalty":[],"name":"Geralt","positions":[],"strength":0,"type":"",` +
		`"variations":[{"art":{"fullsizeImage":"","thumbnailImage":""},"availability":"available",` +
		`"craft":{"normal":-1,"premium":-1},"mill":{"normal":-1,"premium":-1},"rarity":""}]}`
	if string(data) != want {
		t.Errorf("序列化结果 =\n%s\nwant\n%s", data, want)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".card_index")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	snap := NewSnapshot([]string{"b", "a", "c", "a"}, now)
	if snap.Count != 3 {
		t.Fatalf("Count = %d, want 3", snap.Count)
	}
	if err := snap.SaveToFile(path); err != nil {
		t.Fatalf("保存快照失败: %v", err)
	}

	loaded, err := LoadSnapshotFromFile(path)
	if err != nil {
		t.Fatalf("加载快照失败: %v", err)
	}
	if loaded.Count != snap.Count {
		t.Errorf("Count = %d, want %d", loaded.Count, snap.Count)
	}
	if got := strings.Join(loaded.Keys(), ","); got != "a,b,c" {
		t.Errorf("Keys() = %s, want a,b,c", got)
	}
	if loaded.CreatedOn != "2024-01-02 03:04:05.000000" {
		t.Errorf("CreatedOn = %s", loaded.CreatedOn)
	}

	// 目录中不应残留临时文件
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("目录中有 %d 个文件, want 1", len(entries))
	}
}

func TestSnapshot_LoadWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".card_index")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"cards":{"roach":true},"createdOn":"2018-01-01 00:00:00","count":1}`)...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}

	snap, err := LoadSnapshotFromFile(path)
	if err != nil {
		t.Fatalf("加载带BOM的快照失败: %v", err)
	}
	if !snap.Cards["roach"] || snap.Count != 1 {
		t.Errorf("快照内容不正确: %+v", snap)
	}
}

func TestLoadSnapshotFromFile_NotExist(t *testing.T) {
	_, err := LoadSnapshotFromFile(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("期望 fs.ErrNotExist, 实际: %v", err)
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{"单个头部", []string{"User-Agent: Bot/1.0"}, map[string]string{"User-Agent": "Bot/1.0"}, false},
		{"值包含冒号", []string{"Referer: http://a.com"}, map[string]string{"Referer": "http://a.com"}, false},
		{"后者覆盖", []string{"X-A: 1", "x-a: 2"}, map[string]string{"X-A": "2"}, false},
		{"缺少冒号", []string{"Invalid"}, nil, true},
		{"名称为空", []string{": value"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CliHeaders(tt.input).Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			for k, v := range tt.want {
				if got.Get(k) != v {
					t.Errorf("%s = %q, want %q", k, got.Get(k), v)
				}
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := errors.New("底层错误")
	err := &ConfigError{FilePath: "configs/headers.yaml", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is 应能找到底层错误")
	}
}
