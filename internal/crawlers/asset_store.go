package crawlers

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/rs/zerolog/log"
)

// 同一类型有多个扩展名时优先使用的扩展名
var preferredExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AssetStore 下载卡图并写入目录,文件名为卡牌键加扩展名
type AssetStore struct {
	dir     string
	fetcher Fetcher
}

// NewAssetStore 创建卡图存储,目录不存在时创建
func NewAssetStore(dir string, fetcher Fetcher) (*AssetStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建卡图目录失败: %w", err)
	}
	return &AssetStore{dir: dir, fetcher: fetcher}, nil
}

// Dir 卡图目录
func (s *AssetStore) Dir() string {
	return s.dir
}

// Download 抓取并保存一个卡图,返回写入的文件路径
func (s *AssetStore) Download(ctx context.Context, job models.AssetJob) (string, error) {
	resp, err := s.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return "", err
	}
	return s.Save(job.Key, resp)
}

// Save 把响应体写入 <dir>/<key><ext>
func (s *AssetStore) Save(key string, resp *Response) (string, error) {
	name := assetFileName(key)
	if name == "" {
		return "", fmt.Errorf("无效的卡牌键: %q", key)
	}

	ext := AssetExtension(resp.ContentType(), resp.URL)
	target := filepath.Join(s.dir, name+ext)
	if err := models.WriteFileAtomic(target, resp.Body); err != nil {
		return "", fmt.Errorf("保存卡图失败: %w", err)
	}

	log.Debug().Str("key", key).Str("file", target).Int("bytes", len(resp.Body)).Msg("卡图已保存")
	return target, nil
}

// assetFileName 把键中的路径分隔符替换掉,避免写出目录之外
func assetFileName(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// AssetExtension 由Content-Type推断扩展名
// 无法推断时使用URL路径中的扩展名,仍然没有则为 .bin
func AssetExtension(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := preferredExtensions[mediaType]; ok {
			return ext
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 6 {
			return strings.ToLower(ext)
		}
	}
	return ".bin"
}
