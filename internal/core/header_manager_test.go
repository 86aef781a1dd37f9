package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/arachas/internal/models"
)

func TestHeaderManager_MergePriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.yaml")
	content := "headers:\n  Accept: text/html\n  X-Token: config-secret-value\n  Referer: http://from-config/\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	hm, err := NewHeaderManager(path, []string{"Referer: http://from-cli/"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}

	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"默认头部", "User-Agent", DefaultUserAgent},
		{"配置文件覆盖默认", "Accept", "text/html"},
		{"命令行覆盖配置文件", "Referer", "http://from-cli/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headers.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}

	safe, err := hm.GetSafeHeaders()
	if err != nil {
		t.Fatal(err)
	}
	if v := safe["X-Token"]; v == "config-secret-value" || v == "" {
		t.Errorf("敏感头部未脱敏: %q", v)
	}
}

func TestHeaderManager_Errors(t *testing.T) {
	if _, err := NewHeaderManager("", []string{"no-colon"}); err == nil {
		t.Error("格式错误的命令行头部应返回错误")
	}

	path := filepath.Join(t.TempDir(), "headers.yaml")
	hm, err := NewHeaderManager(path, []string{"Host: evil"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = hm.GetHeaders()
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("禁止的头部应返回 ValidationError, 实际: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("配置模板应被生成: %v", err)
	}
}

func TestHeaderManager_GetHeadersReturnsCopy(t *testing.T) {
	hm, err := NewHeaderManager(filepath.Join(t.TempDir(), "headers.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	first, _ := hm.GetHeaders()
	first.Set("User-Agent", "changed")

	second, err := hm.GetHeaders()
	if err != nil {
		t.Fatal(err)
	}
	if second.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("GetHeaders() 应返回副本, 实际 %q", second.Get("User-Agent"))
	}
}
