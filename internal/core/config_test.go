package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/arachas/internal/extract"
	"github.com/RecoveryAshes/arachas/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	hc := config.HarvestConfig()
	if hc.RootURL != DefaultRootURL || hc.Workers != 10 || hc.Timeout != 5*time.Second {
		t.Errorf("HarvestConfig = %+v", hc)
	}
	if hc.Mode != models.ModeStatic || hc.PagePattern != extract.DefaultPagePattern {
		t.Errorf("Mode/PagePattern = %s/%s", hc.Mode, hc.PagePattern)
	}
	if config.Output.FileName != "latest" || config.Output.Dir != "output" || !config.Output.JSONL {
		t.Errorf("Output = %+v", config.Output)
	}
	if config.Index.Path != ".card_index" || config.Index.RewriteUnchanged || config.Index.CollisionPolicy != "warn" {
		t.Errorf("Index = %+v", config.Index)
	}
	if config.History.Dir == "" {
		t.Error("History.Dir 不应为空")
	}
	if err := hc.Validate(); err != nil {
		t.Errorf("默认配置应通过验证: %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
harvest:
  root_url: http://example.com/cards/
  workers: 4
  timeout_seconds: 9
  mode: dynamic
index:
  rewrite_unchanged: true
  collision_policy: reject
logging:
  level: debug
  rotation:
    max_size: 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	hc := config.HarvestConfig()
	if hc.RootURL != "http://example.com/cards/" || hc.Workers != 4 || hc.Timeout != 9*time.Second || hc.Mode != models.ModeDynamic {
		t.Errorf("HarvestConfig = %+v", hc)
	}
	if !config.IndexOptions().RewriteUnchanged || config.Index.CollisionPolicy != "reject" {
		t.Errorf("Index = %+v", config.Index)
	}
	lc := config.LogConfig()
	if lc.Level != "debug" || lc.MaxSize != 50 || lc.MaxBackups != 3 {
		t.Errorf("LogConfig = %+v", lc)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("harvest: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("无效的YAML应返回错误")
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	config := &Config{}
	config.Harvest.Workers = 10
	config.Harvest.ShowProgress = true
	config.Output.FileName = "latest"

	config.MergeCLIFlags(CLIOverrides{
		OutputName:     "cards",
		DownloadAssets: true,
		RewriteIndex:   true,
		NoProgress:     true,
		Mode:           "dynamic",
	})

	if config.Output.FileName != "cards" || !config.Harvest.DownloadAssets || !config.Index.RewriteUnchanged {
		t.Errorf("合并后 = %+v", config)
	}
	if config.Harvest.Workers != 10 {
		t.Errorf("未指定的参数不应覆盖配置: workers = %d", config.Harvest.Workers)
	}
	if config.Harvest.ShowProgress || config.Harvest.Mode != "dynamic" {
		t.Errorf("Harvest = %+v", config.Harvest)
	}
}
